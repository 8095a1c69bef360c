package entities

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_FeeAndPaymaster(t *testing.T) {
	tx := &Transaction{GasLimit: big.NewInt(21000), GasPrice: big.NewInt(3)}
	assert.Equal(t, int64(63000), tx.Fee().Int64())
	assert.Equal(t, int64(0), tx.ValueOrZero().Int64())
	assert.False(t, tx.HasPaymaster())

	zero := common.Address{}
	tx.Extension.Paymaster = &zero
	assert.False(t, tx.HasPaymaster())

	pm := common.HexToAddress("0x99")
	tx.Extension.Paymaster = &pm
	assert.True(t, tx.HasPaymaster())

	sig := []byte{1, 2}
	signed := tx.WithSignature(sig)
	sig[0] = 9
	assert.Equal(t, []byte{1, 2}, signed.Signature)
	assert.Nil(t, tx.Signature)
}

func TestPaymaster_TokenAmountRoundsUp(t *testing.T) {
	pm := &Paymaster{}
	assert.Equal(t, int64(7), pm.TokenAmountFor(big.NewInt(7)).Int64())

	pm.RateNumerator = big.NewInt(1)
	pm.RateDenominator = big.NewInt(3)
	assert.Equal(t, int64(3), pm.TokenAmountFor(big.NewInt(7)).Int64())
	assert.Equal(t, int64(2), pm.TokenAmountFor(big.NewInt(6)).Int64())

	pm.RateNumerator = big.NewInt(5)
	pm.RateDenominator = big.NewInt(2)
	assert.Equal(t, int64(18), pm.TokenAmountFor(big.NewInt(7)).Int64())
}

func TestAccount_WindowAndClone(t *testing.T) {
	acc := NewAccount(common.HexToAddress("0x01"))
	assert.False(t, acc.IsWallet())
	assert.True(t, acc.CanSend())
	assert.False(t, (&Account{Kind: AccountKindPaymaster}).CanSend())
	assert.Equal(t, DefaultLimitWindow, acc.Window())

	acc.Kind = AccountKindMultiSig
	acc.LimitWindow = time.Minute
	acc.Owners = []common.Address{common.HexToAddress("0x02")}
	assert.True(t, acc.IsWallet())
	assert.True(t, acc.CanSend())
	assert.Equal(t, time.Minute, acc.Window())

	cpy := acc.Clone()
	cpy.Balance.SetInt64(10)
	cpy.Owners[0] = common.HexToAddress("0x03")
	assert.Equal(t, int64(0), acc.Balance.Int64())
	assert.Equal(t, common.HexToAddress("0x02"), acc.Owners[0])
}
