package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/txcodec"
)

var stdout io.Writer = os.Stdout

type selector struct {
	contract string
	sig      string
	id       string
}

func collect(contract, def string) ([]selector, error) {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("%s abi: %w", contract, err)
	}
	out := make([]selector, 0, len(parsed.Methods))
	for _, m := range parsed.Methods {
		out = append(out, selector{contract: contract, sig: m.Sig, id: hexutil.Encode(m.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sig < out[j].sig })
	return out, nil
}

func run() error {
	var all []selector
	for _, c := range []struct{ name, def string }{
		{"wallet", usecases.WalletABI},
		{"erc20", usecases.ERC20ABI},
	} {
		sels, err := collect(c.name, c.def)
		if err != nil {
			return err
		}
		all = append(all, sels...)
	}
	all = append(all,
		selector{contract: "paymaster", sig: "approvalBased(address,uint256,bytes)", id: hexutil.Encode(txcodec.ApprovalBasedSelector())},
		selector{contract: "paymaster", sig: "general(bytes)", id: hexutil.Encode(txcodec.GeneralSelector())},
	)

	for _, s := range all {
		fmt.Fprintf(stdout, "%-10s %s  %s\n", s.contract, s.id, s.sig)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
