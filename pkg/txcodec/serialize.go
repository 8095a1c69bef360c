package txcodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"aa-wallet.backend/internal/domain/entities"
)

// envelope is the RLP field layout following the 0x71 type byte.
// The ECDSA v/r/s slots carry chainId and two empty strings: authorization
// travels in CustomSignature.
type envelope struct {
	Nonce                *big.Int
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	GasLimit             *big.Int
	To                   common.Address
	Value                *big.Int
	Data                 []byte
	V                    *big.Int
	R                    []byte
	S                    []byte
	ChainID              *big.Int
	From                 common.Address
	GasPerPubdata        *big.Int
	FactoryDeps          [][]byte
	CustomSignature      []byte
	PaymasterParams      rlp.RawValue
}

type paymasterParams struct {
	Paymaster common.Address
	Input     []byte
}

var emptyList = rlp.RawValue{0xc0}

// Serialize produces the wire format of a signed transaction.
func Serialize(tx *entities.Transaction) ([]byte, error) {
	if err := Validate(tx); err != nil {
		return nil, err
	}
	if len(tx.Signature) == 0 {
		return nil, fmt.Errorf("%w: signature is empty", ErrMalformedField)
	}
	params := emptyList
	if tx.HasPaymaster() {
		input := tx.Extension.PaymasterInput
		if input == nil {
			input = []byte{}
		}
		enc, err := rlp.EncodeToBytes(&paymasterParams{Paymaster: *tx.Extension.Paymaster, Input: input})
		if err != nil {
			return nil, err
		}
		params = enc
	}
	data := tx.Data
	if data == nil {
		data = []byte{}
	}
	env := &envelope{
		Nonce:                orZero(tx.Nonce),
		MaxPriorityFeePerGas: orZero(tx.GasPrice),
		MaxFeePerGas:         orZero(tx.GasPrice),
		GasLimit:             orZero(tx.GasLimit),
		To:                   tx.To,
		Value:                orZero(tx.Value),
		Data:                 data,
		V:                    new(big.Int).Set(tx.ChainID),
		R:                    []byte{},
		S:                    []byte{},
		ChainID:              new(big.Int).Set(tx.ChainID),
		From:                 tx.From,
		GasPerPubdata:        gasPerPubdata(tx),
		FactoryDeps:          [][]byte{},
		CustomSignature:      tx.Signature,
		PaymasterParams:      params,
	}
	body, err := rlp.EncodeToBytes(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedField, err)
	}
	return append([]byte{entities.EIP712TxType}, body...), nil
}

// Deserialize parses the wire format back into a transaction.
func Deserialize(raw []byte) (*entities.Transaction, error) {
	if len(raw) < 2 || raw[0] != entities.EIP712TxType {
		return nil, fmt.Errorf("%w: not a 0x%x typed transaction", ErrMalformedField, entities.EIP712TxType)
	}
	var env envelope
	if err := rlp.DecodeBytes(raw[1:], &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedField, err)
	}
	if len(env.FactoryDeps) != 0 {
		return nil, fmt.Errorf("%w: factory deps are not supported", ErrMalformedField)
	}
	if len(env.CustomSignature) == 0 {
		return nil, fmt.Errorf("%w: signature is empty", ErrMalformedField)
	}
	if env.MaxFeePerGas.Cmp(env.MaxPriorityFeePerGas) != 0 {
		return nil, fmt.Errorf("%w: maxPriorityFeePerGas must equal maxFeePerGas", ErrMalformedField)
	}
	tx := &entities.Transaction{
		ChainID:  env.ChainID,
		From:     env.From,
		To:       env.To,
		Value:    env.Value,
		Data:     env.Data,
		Nonce:    env.Nonce,
		GasLimit: env.GasLimit,
		GasPrice: env.MaxFeePerGas,
		Extension: entities.Extension{
			GasPerPubdata: env.GasPerPubdata,
		},
		Signature: env.CustomSignature,
	}
	if len(env.PaymasterParams) > 0 && !isEmptyList(env.PaymasterParams) {
		var p paymasterParams
		if err := rlp.DecodeBytes(env.PaymasterParams, &p); err != nil {
			return nil, fmt.Errorf("%w: paymaster params: %v", ErrMalformedField, err)
		}
		paymaster := p.Paymaster
		tx.Extension.Paymaster = &paymaster
		tx.Extension.PaymasterInput = p.Input
	}
	if err := Validate(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Hash returns the transaction id: keccak256 of the serialized bytes.
func Hash(raw []byte) common.Hash {
	return crypto.Keccak256Hash(raw)
}

func isEmptyList(v rlp.RawValue) bool {
	return len(v) == 1 && v[0] == 0xc0
}
