package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EIP712TxType is the typed transaction type carrying the extension block.
const EIP712TxType = 0x71

// DefaultGasPerPubdata is the gas-per-pubdata-byte limit clients put in the extension block.
const DefaultGasPerPubdata = 50000

// NativeTokenAddress is the pseudo-token identity of the native asset in spending limits.
var NativeTokenAddress = common.Address{}

// Extension is the typed extension block of a transaction.
// A nil Paymaster means the sender pays its own fee.
type Extension struct {
	GasPerPubdata  *big.Int        `json:"gasPerPubdata"`
	Paymaster      *common.Address `json:"paymaster,omitempty"`
	PaymasterInput []byte          `json:"paymasterInput,omitempty"`
}

// Transaction is a typed account-abstraction transaction.
type Transaction struct {
	ChainID   *big.Int       `json:"chainId"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Value     *big.Int       `json:"value"`
	Data      []byte         `json:"data"`
	Nonce     *big.Int       `json:"nonce"`
	GasLimit  *big.Int       `json:"gasLimit"`
	GasPrice  *big.Int       `json:"gasPrice"`
	Extension Extension      `json:"extension"`
	Signature []byte         `json:"signature,omitempty"`
}

// HasPaymaster reports whether the transaction names a fee sponsor.
func (tx *Transaction) HasPaymaster() bool {
	return tx.Extension.Paymaster != nil && *tx.Extension.Paymaster != (common.Address{})
}

// Fee returns gasLimit * gasPrice, the fee owed for admitting the transaction.
func (tx *Transaction) Fee() *big.Int {
	return new(big.Int).Mul(bigOrZero(tx.GasLimit), bigOrZero(tx.GasPrice))
}

// ValueOrZero returns the transferred native value, never nil.
func (tx *Transaction) ValueOrZero() *big.Int {
	return bigOrZero(tx.Value)
}

// WithSignature returns a shallow copy of tx carrying sig.
func (tx *Transaction) WithSignature(sig []byte) *Transaction {
	cpy := *tx
	cpy.Signature = common.CopyBytes(sig)
	return &cpy
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// ApprovalBasedParams is the decoded paymaster input of the approval-based flow.
type ApprovalBasedParams struct {
	Token            common.Address `json:"token"`
	MinimalAllowance *big.Int       `json:"minimalAllowance"`
	InnerInput       []byte         `json:"innerInput"`
}
