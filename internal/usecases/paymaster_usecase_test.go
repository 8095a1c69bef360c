package usecases_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/txcodec"
)

var (
	pmAddr       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	pmToken      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	pmPayer      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	pmCollector  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	otherTokenPM = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func activePaymaster() *entities.Paymaster {
	return &entities.Paymaster{
		Address:          pmAddr,
		AcceptedToken:    pmToken,
		MinimalAllowance: big.NewInt(1),
		RateNumerator:    big.NewInt(1),
		RateDenominator:  big.NewInt(1),
		IsActive:         true,
	}
}

func approvalInput(t *testing.T, token common.Address, minimal int64) []byte {
	t.Helper()
	input, err := txcodec.EncodeApprovalBased(token, big.NewInt(minimal), []byte{})
	require.NoError(t, err)
	return input
}

func fundedLedger(allowance, tokens, native int64) *memLedger {
	l := newMemLedger()
	l.SetAllowance(pmToken, pmPayer, pmAddr, big.NewInt(allowance))
	l.tokens[tokenKey{pmToken, pmPayer}] = big.NewInt(tokens)
	l.native[pmAddr] = big.NewInt(native)
	return l
}

func TestPaymasterUsecase_Sponsor_Success(t *testing.T) {
	repo := new(MockPaymasterRepository)
	repo.On("GetByAddress", mock.Anything, pmAddr).Return(activePaymaster(), nil)
	uc := usecases.NewPaymasterUsecase(repo, pmCollector)

	ledger := fundedLedger(150, 500, 1000)
	outcome, err := uc.Sponsor(ledger, pmAddr, pmPayer, approvalInput(t, pmToken, 1), big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, int64(100), outcome.TokenAmount.Int64())
	assert.Equal(t, int64(100), outcome.FeeAdvanced.Int64())
	assert.Equal(t, pmToken, outcome.Token)

	allowance, _ := ledger.Allowance(pmToken, pmPayer, pmAddr)
	payerTokens, _ := ledger.TokenBalance(pmToken, pmPayer)
	pmTokens, _ := ledger.TokenBalance(pmToken, pmAddr)
	pmNative, _ := ledger.NativeBalance(pmAddr)
	collected, _ := ledger.NativeBalance(pmCollector)
	assert.Equal(t, int64(50), allowance.Int64())
	assert.Equal(t, int64(400), payerTokens.Int64())
	assert.Equal(t, int64(100), pmTokens.Int64())
	assert.Equal(t, int64(900), pmNative.Int64())
	assert.Equal(t, int64(100), collected.Int64())
	repo.AssertExpectations(t)
}

func TestPaymasterUsecase_Sponsor_ExchangeRateRoundsUp(t *testing.T) {
	pm := activePaymaster()
	pm.RateNumerator = big.NewInt(1)
	pm.RateDenominator = big.NewInt(3)
	repo := new(MockPaymasterRepository)
	repo.On("GetByAddress", mock.Anything, pmAddr).Return(pm, nil)
	uc := usecases.NewPaymasterUsecase(repo, pmCollector)

	ledger := fundedLedger(100, 100, 100)
	outcome, err := uc.Sponsor(ledger, pmAddr, pmPayer, approvalInput(t, pmToken, 1), big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(34), outcome.TokenAmount.Int64())
}

func TestPaymasterUsecase_Sponsor_Rejections(t *testing.T) {
	inactive := activePaymaster()
	inactive.IsActive = false
	highThreshold := activePaymaster()
	highThreshold.MinimalAllowance = big.NewInt(1000)

	tests := []struct {
		name    string
		pm      *entities.Paymaster
		repoErr error
		input   func(t *testing.T) []byte
		ledger  *memLedger
		fee     int64
		wantErr error
	}{
		{
			name:    "unknown paymaster",
			repoErr: domainerrors.ErrNotFound,
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 1) },
			ledger:  fundedLedger(1000, 1000, 1000),
			fee:     10,
			wantErr: domainerrors.ErrNotFound,
		},
		{
			name:    "inactive paymaster",
			pm:      inactive,
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 1) },
			ledger:  fundedLedger(1000, 1000, 1000),
			fee:     10,
			wantErr: domainerrors.ErrPaymasterInactive,
		},
		{
			name: "general flow input",
			pm:   activePaymaster(),
			input: func(t *testing.T) []byte {
				in, err := txcodec.EncodeGeneral([]byte{})
				require.NoError(t, err)
				return in
			},
			ledger:  fundedLedger(1000, 1000, 1000),
			fee:     10,
			wantErr: domainerrors.ErrMalformedField,
		},
		{
			name:    "wrong token",
			pm:      activePaymaster(),
			input:   func(t *testing.T) []byte { return approvalInput(t, otherTokenPM, 1) },
			ledger:  fundedLedger(1000, 1000, 1000),
			fee:     10,
			wantErr: domainerrors.ErrUnsupportedToken,
		},
		{
			name:    "allowance below requested minimum",
			pm:      activePaymaster(),
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 500) },
			ledger:  fundedLedger(499, 1000, 1000),
			fee:     10,
			wantErr: domainerrors.ErrInsufficientAllowance,
		},
		{
			name:    "allowance below paymaster threshold",
			pm:      highThreshold,
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 1) },
			ledger:  fundedLedger(999, 5000, 1000),
			fee:     10,
			wantErr: domainerrors.ErrInsufficientAllowance,
		},
		{
			name:    "allowance below token cost",
			pm:      activePaymaster(),
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 1) },
			ledger:  fundedLedger(99, 1000, 1000),
			fee:     100,
			wantErr: domainerrors.ErrInsufficientAllowance,
		},
		{
			name:    "payer token balance short",
			pm:      activePaymaster(),
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 1) },
			ledger:  fundedLedger(1000, 99, 1000),
			fee:     100,
			wantErr: domainerrors.ErrInsufficientFunds,
		},
		{
			name:    "paymaster underfunded",
			pm:      activePaymaster(),
			input:   func(t *testing.T) []byte { return approvalInput(t, pmToken, 1) },
			ledger:  fundedLedger(1000, 1000, 99),
			fee:     100,
			wantErr: domainerrors.ErrPaymasterUnderfunded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPaymasterRepository)
			if tt.repoErr != nil {
				repo.On("GetByAddress", mock.Anything, pmAddr).Return(nil, tt.repoErr)
			} else {
				repo.On("GetByAddress", mock.Anything, pmAddr).Return(tt.pm, nil)
			}
			uc := usecases.NewPaymasterUsecase(repo, pmCollector)

			allowanceBefore, _ := tt.ledger.Allowance(pmToken, pmPayer, pmAddr)
			tokensBefore, _ := tt.ledger.TokenBalance(pmToken, pmPayer)
			nativeBefore, _ := tt.ledger.NativeBalance(pmAddr)

			_, err := uc.Sponsor(tt.ledger, pmAddr, pmPayer, tt.input(t), big.NewInt(tt.fee))
			assert.ErrorIs(t, err, tt.wantErr)

			allowanceAfter, _ := tt.ledger.Allowance(pmToken, pmPayer, pmAddr)
			tokensAfter, _ := tt.ledger.TokenBalance(pmToken, pmPayer)
			nativeAfter, _ := tt.ledger.NativeBalance(pmAddr)
			assert.Equal(t, allowanceBefore, allowanceAfter, "allowance untouched")
			assert.Equal(t, tokensBefore, tokensAfter, "payer tokens untouched")
			assert.Equal(t, nativeBefore, nativeAfter, "paymaster balance untouched")
		})
	}
}

func TestPaymasterUsecase_QueriesAndToggle(t *testing.T) {
	repo := new(MockPaymasterRepository)
	pm := activePaymaster()
	pm.RateNumerator = big.NewInt(3)
	pm.RateDenominator = big.NewInt(2)
	repo.On("GetByAddress", mock.Anything, pmAddr).Return(pm, nil)
	repo.On("List", mock.Anything).Return([]*entities.Paymaster{pm}, nil)
	repo.On("SetActive", mock.Anything, pmAddr, false).Return(nil)
	uc := usecases.NewPaymasterUsecase(repo, pmCollector)
	ctx := context.Background()

	quote, err := uc.Quote(ctx, pmAddr, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, int64(8), quote.Int64())

	got, err := uc.GetPaymaster(ctx, pmAddr)
	require.NoError(t, err)
	assert.Equal(t, pmAddr, got.Address)

	list, err := uc.ListPaymasters(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, uc.SetActive(ctx, pmAddr, false))
	repo.AssertExpectations(t)
}

func TestSequencer_RunsHooksAfterCommit(t *testing.T) {
	uow := new(MockUnitOfWork)
	ctx := context.Background()
	uow.On("WithLock", ctx).Return(ctx)
	uow.On("Do", ctx, mock.Anything).Return(nil)
	seq := usecases.NewSequencer(uow)

	var order []string
	err := seq.Run(ctx, func(context.Context) error {
		order = append(order, "fn")
		return nil
	}, func() { order = append(order, "hook") })
	require.NoError(t, err)
	assert.Equal(t, []string{"fn", "hook"}, order)

	order = nil
	err = seq.Run(ctx, func(context.Context) error {
		return domainerrors.ErrInvalidNonce
	}, func() { order = append(order, "hook") })
	assert.ErrorIs(t, err, domainerrors.ErrInvalidNonce)
	assert.Empty(t, order)
}
