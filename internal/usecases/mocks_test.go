package usecases_test

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

func (m *MockUnitOfWork) WithLock(ctx context.Context) context.Context {
	args := m.Called(ctx)
	return args.Get(0).(context.Context)
}

// Mock PaymasterRepository
type MockPaymasterRepository struct {
	mock.Mock
}

func (m *MockPaymasterRepository) GetByAddress(ctx context.Context, address common.Address) (*entities.Paymaster, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Paymaster), args.Error(1)
}

func (m *MockPaymasterRepository) List(ctx context.Context) ([]*entities.Paymaster, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Paymaster), args.Error(1)
}

func (m *MockPaymasterRepository) Create(ctx context.Context, pm *entities.Paymaster) error {
	args := m.Called(ctx, pm)
	return args.Error(0)
}

func (m *MockPaymasterRepository) SetActive(ctx context.Context, address common.Address, active bool) error {
	args := m.Called(ctx, address, active)
	return args.Error(0)
}

type tokenKey struct{ token, holder common.Address }
type allowKey struct{ token, owner, spender common.Address }

// memLedger is an in-memory SponsorLedger
type memLedger struct {
	native     map[common.Address]*big.Int
	tokens     map[tokenKey]*big.Int
	allowances map[allowKey]*big.Int
}

func newMemLedger() *memLedger {
	return &memLedger{
		native:     map[common.Address]*big.Int{},
		tokens:     map[tokenKey]*big.Int{},
		allowances: map[allowKey]*big.Int{},
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func (l *memLedger) Context() context.Context { return context.Background() }

func (l *memLedger) NativeBalance(addr common.Address) (*big.Int, error) {
	return orZero(l.native[addr]), nil
}

func (l *memLedger) TransferNative(from, to common.Address, amount *big.Int) error {
	if orZero(l.native[from]).Cmp(amount) < 0 {
		return domainerrors.ErrInsufficientFunds
	}
	l.native[from] = new(big.Int).Sub(orZero(l.native[from]), amount)
	l.native[to] = new(big.Int).Add(orZero(l.native[to]), amount)
	return nil
}

func (l *memLedger) TokenBalance(token, holder common.Address) (*big.Int, error) {
	return orZero(l.tokens[tokenKey{token, holder}]), nil
}

func (l *memLedger) TransferToken(token, from, to common.Address, amount *big.Int) error {
	fk, tk := tokenKey{token, from}, tokenKey{token, to}
	if orZero(l.tokens[fk]).Cmp(amount) < 0 {
		return domainerrors.ErrInsufficientFunds
	}
	l.tokens[fk] = new(big.Int).Sub(orZero(l.tokens[fk]), amount)
	l.tokens[tk] = new(big.Int).Add(orZero(l.tokens[tk]), amount)
	return nil
}

func (l *memLedger) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	return orZero(l.allowances[allowKey{token, owner, spender}]), nil
}

func (l *memLedger) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	l.allowances[allowKey{token, owner, spender}] = orZero(amount)
}
