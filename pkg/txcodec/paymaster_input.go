package txcodec

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
)

const paymasterFlowABI = `[
	{"type":"function","name":"approvalBased","inputs":[
		{"name":"_token","type":"address"},
		{"name":"_minAllowance","type":"uint256"},
		{"name":"_innerInput","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"general","inputs":[
		{"name":"input","type":"bytes"}
	],"outputs":[]}
]`

var paymasterFlow = mustParseABI(paymasterFlowABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ApprovalBasedSelector returns the 4-byte selector of approvalBased(address,uint256,bytes).
func ApprovalBasedSelector() []byte {
	return common.CopyBytes(paymasterFlow.Methods["approvalBased"].ID)
}

// GeneralSelector returns the 4-byte selector of general(bytes).
func GeneralSelector() []byte {
	return common.CopyBytes(paymasterFlow.Methods["general"].ID)
}

// EncodeApprovalBased builds paymaster input for the approval-based flow.
func EncodeApprovalBased(token common.Address, minimalAllowance *big.Int, inner []byte) ([]byte, error) {
	if inner == nil {
		inner = []byte{}
	}
	if err := checkUint256("minimalAllowance", minimalAllowance); err != nil {
		return nil, err
	}
	return paymasterFlow.Pack("approvalBased", token, orZero(minimalAllowance), inner)
}

// EncodeGeneral builds paymaster input for the general flow.
func EncodeGeneral(inner []byte) ([]byte, error) {
	if inner == nil {
		inner = []byte{}
	}
	return paymasterFlow.Pack("general", inner)
}

// DecodePaymasterInput parses approval-based paymaster input.
// Any other flow, including general, is reported as ErrMalformedField.
func DecodePaymasterInput(input []byte) (*entities.ApprovalBasedParams, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("%w: paymaster input shorter than a selector", ErrMalformedField)
	}
	if !bytes.Equal(input[:4], ApprovalBasedSelector()) {
		return nil, fmt.Errorf("%w: unsupported paymaster flow 0x%x", ErrMalformedField, input[:4])
	}
	values, err := paymasterFlow.Methods["approvalBased"].Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: paymaster input: %v", ErrMalformedField, err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("%w: paymaster input has %d values", ErrMalformedField, len(values))
	}
	token, ok1 := values[0].(common.Address)
	minAllowance, ok2 := values[1].(*big.Int)
	inner, ok3 := values[2].([]byte)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: paymaster input types", ErrMalformedField)
	}
	return &entities.ApprovalBasedParams{
		Token:            token,
		MinimalAllowance: minAllowance,
		InnerInput:       inner,
	}, nil
}
