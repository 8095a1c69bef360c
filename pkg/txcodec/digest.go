// Package txcodec encodes account-abstraction transactions: the EIP-712 signing
// digest, the 0x71 typed wire format and the paymaster input flows.
package txcodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
)

const (
	DomainName    = "zkSync"
	DomainVersion = "2"

	primaryType = "Transaction"
)

// ErrMalformedField is returned when a field does not fit its declared width.
var ErrMalformedField = domainerrors.ErrMalformedField

var typedTransaction = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	primaryType: {
		{Name: "txType", Type: "uint256"},
		{Name: "from", Type: "uint256"},
		{Name: "to", Type: "uint256"},
		{Name: "gasLimit", Type: "uint256"},
		{Name: "gasPerPubdataByteLimit", Type: "uint256"},
		{Name: "maxFeePerGas", Type: "uint256"},
		{Name: "maxPriorityFeePerGas", Type: "uint256"},
		{Name: "paymaster", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "factoryDeps", Type: "bytes32[]"},
		{Name: "paymasterInput", Type: "bytes"},
	},
}

// Digest returns the domain-separated EIP-712 hash the owner signs.
// The signature field is not part of the digest.
func Digest(tx *entities.Transaction) (common.Hash, error) {
	data, err := TypedData(tx)
	if err != nil {
		return common.Hash{}, err
	}
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrMalformedField, err)
	}
	return common.BytesToHash(hash), nil
}

// TypedData builds the EIP-712 structure for tx after validating field widths.
func TypedData(tx *entities.Transaction) (apitypes.TypedData, error) {
	if err := Validate(tx); err != nil {
		return apitypes.TypedData{}, err
	}
	paymaster := new(big.Int)
	if tx.HasPaymaster() {
		paymaster.SetBytes(tx.Extension.Paymaster.Bytes())
	}
	paymasterInput := tx.Extension.PaymasterInput
	if paymasterInput == nil {
		paymasterInput = []byte{}
	}
	data := tx.Data
	if data == nil {
		data = []byte{}
	}
	return apitypes.TypedData{
		Types:       typedTransaction,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    DomainName,
			Version: DomainVersion,
			ChainId: (*math.HexOrDecimal256)(new(big.Int).Set(tx.ChainID)),
		},
		Message: apitypes.TypedDataMessage{
			"txType":                 big.NewInt(entities.EIP712TxType),
			"from":                   new(big.Int).SetBytes(tx.From.Bytes()),
			"to":                     new(big.Int).SetBytes(tx.To.Bytes()),
			"gasLimit":               orZero(tx.GasLimit),
			"gasPerPubdataByteLimit": gasPerPubdata(tx),
			"maxFeePerGas":           orZero(tx.GasPrice),
			"maxPriorityFeePerGas":   orZero(tx.GasPrice),
			"paymaster":              paymaster,
			"nonce":                  orZero(tx.Nonce),
			"value":                  orZero(tx.Value),
			"data":                   data,
			"factoryDeps":            []interface{}{},
			"paymasterInput":         paymasterInput,
		},
	}, nil
}

// Validate checks every integer field against its uint256 width.
func Validate(tx *entities.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", ErrMalformedField)
	}
	if tx.ChainID == nil || tx.ChainID.Sign() <= 0 {
		return fmt.Errorf("%w: chainId must be positive", ErrMalformedField)
	}
	fields := []struct {
		name  string
		value *big.Int
	}{
		{"chainId", tx.ChainID},
		{"value", tx.Value},
		{"nonce", tx.Nonce},
		{"gasLimit", tx.GasLimit},
		{"gasPrice", tx.GasPrice},
		{"gasPerPubdata", tx.Extension.GasPerPubdata},
	}
	for _, f := range fields {
		if err := checkUint256(f.name, f.value); err != nil {
			return err
		}
	}
	if tx.Nonce != nil && !tx.Nonce.IsUint64() {
		return fmt.Errorf("%w: nonce %s out of range", ErrMalformedField, tx.Nonce)
	}
	return nil
}

func checkUint256(name string, v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s is negative", ErrMalformedField, name)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", ErrMalformedField, name)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func gasPerPubdata(tx *entities.Transaction) *big.Int {
	if tx.Extension.GasPerPubdata == nil {
		return big.NewInt(entities.DefaultGasPerPubdata)
	}
	return new(big.Int).Set(tx.Extension.GasPerPubdata)
}
