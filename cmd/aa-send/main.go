package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/joho/godotenv"

	"aa-wallet.backend/internal/client"
	"aa-wallet.backend/internal/config"
	"aa-wallet.backend/internal/infrastructure/blockchain"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/crypto"
	"aa-wallet.backend/pkg/logger"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	factory    = blockchain.NewClientFactory()
	getNetwork = factory.GetEVMClient
	stdout     io.Writer = os.Stdout
)

type options struct {
	rpcURL    string
	keys      string
	from      string
	to        string
	value     string
	data      string
	setLimit  string
	paymaster string
	token     string
	allowance string
	gasLimit  uint64
	wait      time.Duration
}

func main() {
	_ = loadDotenv()
	logger.Init("development")
	defer factory.Close()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func parseFlags(args []string, cfg *config.Config) (*options, error) {
	fs := flag.NewFlagSet("aa-send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := &options{}
	fs.StringVar(&o.rpcURL, "rpc", cfg.Client.RPCURL, "ledger JSON-RPC URL")
	fs.StringVar(&o.keys, "keys", cfg.Client.PrivateKey, "comma-separated owner private keys")
	fs.StringVar(&o.from, "from", "", "wallet account address")
	fs.StringVar(&o.to, "to", "", "destination address (defaults to the wallet for -set-limit)")
	fs.StringVar(&o.value, "value", "0", "native value in base units")
	fs.StringVar(&o.data, "data", "", "hex calldata")
	fs.StringVar(&o.setLimit, "set-limit", "", "token:amount, sends setSpendingLimit to the wallet itself")
	fs.StringVar(&o.paymaster, "paymaster", "", "approval-based paymaster address")
	fs.StringVar(&o.token, "token", "", "token the paymaster accepts")
	fs.StringVar(&o.allowance, "allowance", "0", "minimal allowance offered to the paymaster")
	fs.Uint64Var(&o.gasLimit, "gas", 0, "gas limit, estimated when 0")
	fs.DurationVar(&o.wait, "wait", 30*time.Second, "how long to wait for the receipt, 0 to skip")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func buildRequest(o *options) (client.Request, error) {
	var req client.Request
	if !common.IsHexAddress(o.from) {
		return req, fmt.Errorf("invalid -from address %q", o.from)
	}
	req.From = common.HexToAddress(o.from)

	value, ok := new(big.Int).SetString(o.value, 10)
	if !ok || value.Sign() < 0 {
		return req, fmt.Errorf("invalid -value %q", o.value)
	}
	req.Value = value

	switch {
	case o.setLimit != "":
		parts := strings.SplitN(o.setLimit, ":", 2)
		if len(parts) != 2 || !common.IsHexAddress(parts[0]) {
			return req, fmt.Errorf("invalid -set-limit %q, want token:amount", o.setLimit)
		}
		amount, ok := new(big.Int).SetString(parts[1], 10)
		if !ok {
			return req, fmt.Errorf("invalid -set-limit amount %q", parts[1])
		}
		data, err := usecases.EncodeWalletCall("setSpendingLimit", common.HexToAddress(parts[0]), amount)
		if err != nil {
			return req, err
		}
		req.To = req.From
		req.Data = data
	case o.data != "":
		data, err := hexutil.Decode(o.data)
		if err != nil {
			return req, fmt.Errorf("invalid -data: %w", err)
		}
		req.Data = data
	}

	if o.setLimit == "" || o.to != "" {
		if !common.IsHexAddress(o.to) {
			return req, fmt.Errorf("invalid -to address %q", o.to)
		}
		req.To = common.HexToAddress(o.to)
	}

	if o.paymaster != "" {
		if !common.IsHexAddress(o.paymaster) || !common.IsHexAddress(o.token) {
			return req, errors.New("-paymaster needs valid -paymaster and -token addresses")
		}
		allowance, ok := new(big.Int).SetString(o.allowance, 10)
		if !ok || allowance.Sign() < 0 {
			return req, fmt.Errorf("invalid -allowance %q", o.allowance)
		}
		req.Paymaster = &client.Paymaster{
			Address:          common.HexToAddress(o.paymaster),
			Token:            common.HexToAddress(o.token),
			MinimalAllowance: allowance,
		}
	}
	if o.gasLimit > 0 {
		req.GasLimit = new(big.Int).SetUint64(o.gasLimit)
	}
	return req, nil
}

func parseSigners(keys string) ([]*crypto.Signer, error) {
	var signers []*crypto.Signer
	for _, k := range strings.Split(keys, ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s, err := crypto.NewSigner(k)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}
	if len(signers) == 0 {
		return nil, client.ErrNoSigners
	}
	return signers, nil
}

func run(ctx context.Context, args []string) error {
	cfg := loadCfg()
	o, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}
	req, err := buildRequest(o)
	if err != nil {
		return err
	}
	signers, err := parseSigners(o.keys)
	if err != nil {
		return err
	}

	network, err := getNetwork(o.rpcURL)
	if err != nil {
		return err
	}
	sender, err := client.NewSender(network, signers, cfg.Ledger.GasPerPubdata)
	if err != nil {
		return err
	}

	hash, err := sender.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Fprintf(stdout, "tx hash: %s\n", hash.Hex())
	if o.wait <= 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.wait)
	defer cancel()
	receipt, err := sender.WaitForReceipt(waitCtx, hash)
	if err != nil {
		return fmt.Errorf("wait for receipt: %w", err)
	}
	status := "SUCCESS"
	if !receipt.Succeeded() {
		status = "REVERTED"
	}
	fmt.Fprintf(stdout, "status: %s fee: %s\n", status, receipt.Fee.ToInt())
	if receipt.RevertReason != nil {
		fmt.Fprintf(stdout, "revert reason: %s\n", *receipt.RevertReason)
	}
	return nil
}
