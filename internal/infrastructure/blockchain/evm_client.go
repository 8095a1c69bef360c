package blockchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	domainerrors "aa-wallet.backend/internal/domain/errors"
)

var (
	dialRPC          = rpc.DialContext
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
)

// Network is the ledger-facing RPC surface the sender needs.
type Network interface {
	ChainID() *big.Int
	GetNonce(ctx context.Context, address common.Address) (uint64, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call CallRequest) (uint64, error)
	Submit(ctx context.Context, raw []byte) (common.Hash, error)
	GetReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// PaymasterParams is the eip712Meta paymaster block of a call.
type PaymasterParams struct {
	Paymaster      common.Address `json:"paymaster"`
	PaymasterInput hexutil.Bytes  `json:"paymasterInput"`
}

// CallRequest is an eth_estimateGas call.
type CallRequest struct {
	From      common.Address
	To        common.Address
	Value     *big.Int
	Data      []byte
	Paymaster *PaymasterParams
}

type callArg struct {
	From       common.Address `json:"from"`
	To         common.Address `json:"to"`
	Value      *hexutil.Big   `json:"value,omitempty"`
	Data       hexutil.Bytes  `json:"data,omitempty"`
	EIP712Meta *eip712Meta    `json:"eip712Meta,omitempty"`
}

type eip712Meta struct {
	GasPerPubdata   *hexutil.Big     `json:"gasPerPubdata,omitempty"`
	PaymasterParams *PaymasterParams `json:"paymasterParams,omitempty"`
}

// Receipt is the ledger's eth_getTransactionReceipt result.
type Receipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	From            common.Address `json:"from"`
	To              common.Address `json:"to"`
	Nonce           hexutil.Uint64 `json:"nonce"`
	Status          hexutil.Uint64 `json:"status"`
	Fee             *hexutil.Big   `json:"fee"`
	Paymaster       *string        `json:"paymaster,omitempty"`
	RevertReason    *string        `json:"revertReason,omitempty"`
}

// Succeeded reports a status of 1.
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}

// RemoteError is a ledger rejection decoded from a JSON-RPC error.
// errors.Is matches the sentinel of its kind.
type RemoteError struct {
	Kind    domainerrors.Kind
	Message string
	err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.err }

// EVMClient talks to the ledger's JSON-RPC endpoint
type EVMClient struct {
	rpc     *rpc.Client
	client  *ethclient.Client
	chainID *big.Int
	rpcURL  string
}

// NewEVMClient dials rpcURL and caches its chain id
func NewEVMClient(rpcURL string) (*EVMClient, error) {
	ctx := context.Background()
	rc, err := dialRPC(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	client := ethclient.NewClient(rc)

	chainID, err := getClientChainID(client, ctx)
	if err != nil {
		client.Close()
		return nil, decodeError(err)
	}

	return &EVMClient{
		rpc:     rc,
		client:  client,
		chainID: chainID,
		rpcURL:  rpcURL,
	}, nil
}

// ChainID returns the chain ID
func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

// GetNonce returns the committed nonce of an address
func (c *EVMClient) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.client.NonceAt(ctx, address, nil)
	return nonce, decodeError(err)
}

// GetGasPrice returns the ledger gas price
func (c *EVMClient) GetGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.client.SuggestGasPrice(ctx)
	return price, decodeError(err)
}

// GetBalance gets the native balance of an address
func (c *EVMClient) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	bal, err := c.client.BalanceAt(ctx, address, nil)
	return bal, decodeError(err)
}

// EstimateGas estimates gas for a call, forwarding paymaster params in eip712Meta
func (c *EVMClient) EstimateGas(ctx context.Context, call CallRequest) (uint64, error) {
	arg := callArg{From: call.From, To: call.To, Data: call.Data}
	if call.Value != nil && call.Value.Sign() > 0 {
		arg.Value = (*hexutil.Big)(call.Value)
	}
	if call.Paymaster != nil {
		arg.EIP712Meta = &eip712Meta{PaymasterParams: call.Paymaster}
	}
	var gas hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &gas, "eth_estimateGas", arg); err != nil {
		return 0, decodeError(err)
	}
	return uint64(gas), nil
}

// Submit sends a serialized typed transaction and returns its hash
func (c *EVMClient) Submit(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, decodeError(err)
	}
	return hash, nil
}

// GetReceipt returns the receipt of a processed transaction
func (c *EVMClient) GetReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var receipt *Receipt
	if err := c.rpc.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, decodeError(err)
	}
	if receipt == nil {
		return nil, domainerrors.ErrNotFound
	}
	return receipt, nil
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// decodeError turns a ledger rejection back into its sentinel.
func decodeError(err error) error {
	if err == nil {
		return nil
	}
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return err
	}
	kind, ok := dataErr.ErrorData().(string)
	if !ok {
		return err
	}
	sentinel, ok := domainerrors.ErrorForKind(domainerrors.Kind(kind))
	if !ok {
		return err
	}
	return &RemoteError{Kind: domainerrors.Kind(kind), Message: dataErr.Error(), err: sentinel}
}
