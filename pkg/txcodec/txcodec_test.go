package txcodec

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/pkg/crypto"
)

const testKey = "7726827caac94a7f9e1b160f7ea819f172f7b6f9d2a97f992c38edeab82d4110"

func sampleTx() *entities.Transaction {
	return &entities.Transaction{
		ChainID:  big.NewInt(270),
		From:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:    big.NewInt(1000),
		Data:     []byte{},
		Nonce:    big.NewInt(0),
		GasLimit: big.NewInt(21000),
		GasPrice: big.NewInt(250000000),
		Extension: entities.Extension{
			GasPerPubdata: big.NewInt(entities.DefaultGasPerPubdata),
		},
	}
}

func TestDigest_Deterministic(t *testing.T) {
	a, err := Digest(sampleTx())
	require.NoError(t, err)
	b, err := Digest(sampleTx())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Hash{}, a)
}

func TestDigest_IgnoresSignature(t *testing.T) {
	tx := sampleTx()
	unsigned, err := Digest(tx)
	require.NoError(t, err)

	signed, err := Digest(tx.WithSignature([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, unsigned, signed)
}

func TestDigest_EveryFieldChangesDigest(t *testing.T) {
	base, err := Digest(sampleTx())
	require.NoError(t, err)

	paymaster := common.HexToAddress("0x3333333333333333333333333333333333333333")
	mutations := map[string]func(tx *entities.Transaction){
		"chainId":        func(tx *entities.Transaction) { tx.ChainID = big.NewInt(271) },
		"from":           func(tx *entities.Transaction) { tx.From = common.HexToAddress("0x01") },
		"to":             func(tx *entities.Transaction) { tx.To = common.HexToAddress("0x02") },
		"value":          func(tx *entities.Transaction) { tx.Value = big.NewInt(1001) },
		"data":           func(tx *entities.Transaction) { tx.Data = []byte{0xde, 0xad} },
		"nonce":          func(tx *entities.Transaction) { tx.Nonce = big.NewInt(1) },
		"gasLimit":       func(tx *entities.Transaction) { tx.GasLimit = big.NewInt(21001) },
		"gasPrice":       func(tx *entities.Transaction) { tx.GasPrice = big.NewInt(1) },
		"gasPerPubdata":  func(tx *entities.Transaction) { tx.Extension.GasPerPubdata = big.NewInt(800) },
		"paymaster":      func(tx *entities.Transaction) { tx.Extension.Paymaster = &paymaster },
		"paymasterInput": func(tx *entities.Transaction) { tx.Extension.PaymasterInput = []byte{1} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tx := sampleTx()
			mutate(tx)
			got, err := Digest(tx)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestDigest_MalformedFields(t *testing.T) {
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)

	cases := map[string]func(tx *entities.Transaction){
		"nil chain":         func(tx *entities.Transaction) { tx.ChainID = nil },
		"negative value":    func(tx *entities.Transaction) { tx.Value = big.NewInt(-1) },
		"value too wide":    func(tx *entities.Transaction) { tx.Value = tooWide },
		"gas limit wide":    func(tx *entities.Transaction) { tx.GasLimit = tooWide },
		"nonce beyond u64":  func(tx *entities.Transaction) { tx.Nonce = new(big.Int).Lsh(big.NewInt(1), 64) },
		"negative gasPrice": func(tx *entities.Transaction) { tx.GasPrice = big.NewInt(-5) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tx := sampleTx()
			mutate(tx)
			_, err := Digest(tx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrMalformedField))
		})
	}

	_, err := Digest(nil)
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)
}

func TestSerialize_RoundTrip(t *testing.T) {
	signer, err := crypto.NewSigner(testKey)
	require.NoError(t, err)

	tx := sampleTx()
	tx.From = signer.Address()
	digest, err := Digest(tx)
	require.NoError(t, err)
	sig, err := signer.Sign(digest)
	require.NoError(t, err)

	raw, err := Serialize(tx.WithSignature(sig))
	require.NoError(t, err)
	assert.Equal(t, byte(entities.EIP712TxType), raw[0])

	decoded, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.From, decoded.From)
	assert.Equal(t, tx.To, decoded.To)
	assert.Equal(t, 0, tx.Value.Cmp(decoded.Value))
	assert.Equal(t, 0, tx.Nonce.Cmp(decoded.Nonce))
	assert.Equal(t, 0, tx.GasPrice.Cmp(decoded.GasPrice))
	assert.False(t, decoded.HasPaymaster())
	assert.Equal(t, sig, decoded.Signature)

	again, err := Digest(decoded)
	require.NoError(t, err)
	assert.Equal(t, digest, again)

	recovered, err := crypto.RecoverAddress(again, decoded.Signature)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestSerialize_WithPaymaster(t *testing.T) {
	token := common.HexToAddress("0x4444444444444444444444444444444444444444")
	paymaster := common.HexToAddress("0x5555555555555555555555555555555555555555")
	input, err := EncodeApprovalBased(token, big.NewInt(1), nil)
	require.NoError(t, err)

	tx := sampleTx()
	tx.Extension.Paymaster = &paymaster
	tx.Extension.PaymasterInput = input
	tx.Signature = make([]byte, 65)

	raw, err := Serialize(tx)
	require.NoError(t, err)

	decoded, err := Deserialize(raw)
	require.NoError(t, err)
	require.True(t, decoded.HasPaymaster())
	assert.Equal(t, paymaster, *decoded.Extension.Paymaster)
	assert.Equal(t, input, decoded.Extension.PaymasterInput)
	assert.Equal(t, Hash(raw), Hash(raw))
}

func TestSerialize_RequiresSignature(t *testing.T) {
	_, err := Serialize(sampleTx())
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)
}

func TestDeserialize_Garbage(t *testing.T) {
	_, err := Deserialize(nil)
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)

	_, err = Deserialize([]byte{0x02, 0xc0})
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)

	_, err = Deserialize([]byte{entities.EIP712TxType, 0xff, 0x01})
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)
}

func TestPaymasterInput(t *testing.T) {
	token := common.HexToAddress("0x4444444444444444444444444444444444444444")
	input, err := EncodeApprovalBased(token, big.NewInt(7), []byte{0xaa})
	require.NoError(t, err)
	assert.Equal(t, ApprovalBasedSelector(), input[:4])

	params, err := DecodePaymasterInput(input)
	require.NoError(t, err)
	assert.Equal(t, token, params.Token)
	assert.Equal(t, int64(7), params.MinimalAllowance.Int64())
	assert.Equal(t, []byte{0xaa}, params.InnerInput)

	general, err := EncodeGeneral(nil)
	require.NoError(t, err)
	assert.Equal(t, GeneralSelector(), general[:4])
	_, err = DecodePaymasterInput(general)
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)

	_, err = DecodePaymasterInput([]byte{1, 2})
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)

	_, err = EncodeApprovalBased(token, big.NewInt(-1), nil)
	assert.ErrorIs(t, err, domainerrors.ErrMalformedField)
}
