package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/domain/repositories"
)

type limitKey struct {
	account common.Address
	token   common.Address
}

type balanceKey struct {
	token  common.Address
	holder common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type ledgerStore struct {
	accounts repositories.AccountRepository
	limits   repositories.SpendingLimitRepository
	tokens   repositories.TokenRepository
}

// changeset stages ledger mutations in memory. Reads fall through to the
// parent layer and then to the store; nothing is written until commit.
// A forked child is either merged into its parent or dropped.
type changeset struct {
	ctx    context.Context
	store  *ledgerStore
	parent *changeset

	accounts     map[common.Address]*entities.Account
	accountOrder []common.Address
	limits       map[limitKey]*entities.SpendingLimit
	limitOrder   []limitKey
	balances     map[balanceKey]*big.Int
	balanceOrder []balanceKey
	allowances   map[allowanceKey]*big.Int
	allowOrder   []allowanceKey
	events       []*entities.LedgerEvent
}

func newChangeset(ctx context.Context, store *ledgerStore) *changeset {
	return &changeset{
		ctx:        ctx,
		store:      store,
		accounts:   map[common.Address]*entities.Account{},
		limits:     map[limitKey]*entities.SpendingLimit{},
		balances:   map[balanceKey]*big.Int{},
		allowances: map[allowanceKey]*big.Int{},
	}
}

func (c *changeset) fork() *changeset {
	child := newChangeset(c.ctx, c.store)
	child.parent = c
	return child
}

// merge moves every staged entry of c into its parent.
func (c *changeset) merge() {
	p := c.parent
	for _, addr := range c.accountOrder {
		p.putAccount(c.accounts[addr])
	}
	for _, k := range c.limitOrder {
		p.putLimit(k, c.limits[k])
	}
	for _, k := range c.balanceOrder {
		p.putBalance(k, c.balances[k])
	}
	for _, k := range c.allowOrder {
		p.putAllowance(k, c.allowances[k])
	}
	p.events = append(p.events, c.events...)
}

func (c *changeset) putAccount(acc *entities.Account) {
	if _, ok := c.accounts[acc.Address]; !ok {
		c.accountOrder = append(c.accountOrder, acc.Address)
	}
	c.accounts[acc.Address] = acc
}

func (c *changeset) putLimit(k limitKey, l *entities.SpendingLimit) {
	if _, ok := c.limits[k]; !ok {
		c.limitOrder = append(c.limitOrder, k)
	}
	c.limits[k] = l
}

func (c *changeset) putBalance(k balanceKey, v *big.Int) {
	if _, ok := c.balances[k]; !ok {
		c.balanceOrder = append(c.balanceOrder, k)
	}
	c.balances[k] = v
}

func (c *changeset) putAllowance(k allowanceKey, v *big.Int) {
	if _, ok := c.allowances[k]; !ok {
		c.allowOrder = append(c.allowOrder, k)
	}
	c.allowances[k] = v
}

func (c *changeset) lookupAccount(addr common.Address) (*entities.Account, error) {
	if acc, ok := c.accounts[addr]; ok {
		return acc, nil
	}
	if c.parent != nil {
		return c.parent.lookupAccount(addr)
	}
	return c.store.accounts.GetForUpdate(c.ctx, addr)
}

// account returns a staged, mutable copy of the account at addr.
func (c *changeset) account(addr common.Address) (*entities.Account, error) {
	if acc, ok := c.accounts[addr]; ok {
		return acc, nil
	}
	acc, err := c.lookupAccount(addr)
	if err != nil {
		return nil, err
	}
	cpy := acc.Clone()
	c.putAccount(cpy)
	return cpy, nil
}

// accountOrNew is account, creating an empty EOA entry for unknown addresses.
func (c *changeset) accountOrNew(addr common.Address) (*entities.Account, error) {
	acc, err := c.account(addr)
	if errors.Is(err, domainerrors.ErrNotFound) {
		acc = entities.NewAccount(addr)
		c.putAccount(acc)
		return acc, nil
	}
	return acc, err
}

func (c *changeset) lookupLimit(k limitKey) (*entities.SpendingLimit, error) {
	if l, ok := c.limits[k]; ok {
		return l, nil
	}
	if c.parent != nil {
		return c.parent.lookupLimit(k)
	}
	l, err := c.store.limits.Get(c.ctx, k.account, k.token)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return entities.NewSpendingLimit(k.account, k.token), nil
	}
	return l, err
}

// limit returns a staged copy of the (account, token) entry; never-set entries are disabled.
func (c *changeset) limit(account, token common.Address) (*entities.SpendingLimit, error) {
	k := limitKey{account: account, token: token}
	if l, ok := c.limits[k]; ok {
		return l, nil
	}
	l, err := c.lookupLimit(k)
	if err != nil {
		return nil, err
	}
	cpy := l.Clone()
	c.putLimit(k, cpy)
	return cpy, nil
}

func (c *changeset) tokenBalance(token, holder common.Address) (*big.Int, error) {
	k := balanceKey{token: token, holder: holder}
	for layer := c; layer != nil; layer = layer.parent {
		if v, ok := layer.balances[k]; ok {
			return new(big.Int).Set(v), nil
		}
	}
	return c.store.tokens.GetBalance(c.ctx, token, holder)
}

func (c *changeset) setTokenBalance(token, holder common.Address, v *big.Int) {
	c.putBalance(balanceKey{token: token, holder: holder}, new(big.Int).Set(v))
}

func (c *changeset) allowance(token, owner, spender common.Address) (*big.Int, error) {
	k := allowanceKey{token: token, owner: owner, spender: spender}
	for layer := c; layer != nil; layer = layer.parent {
		if v, ok := layer.allowances[k]; ok {
			return new(big.Int).Set(v), nil
		}
	}
	return c.store.tokens.GetAllowance(c.ctx, token, owner, spender)
}

func (c *changeset) setAllowance(token, owner, spender common.Address, v *big.Int) {
	c.putAllowance(allowanceKey{token: token, owner: owner, spender: spender}, new(big.Int).Set(v))
}

// transferNative moves native balance; a shortfall is ErrInsufficientFunds.
func (c *changeset) transferNative(from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	src, err := c.account(from)
	if err != nil {
		return err
	}
	if src.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", domainerrors.ErrInsufficientFunds, from.Hex(), src.Balance, amount)
	}
	dst, err := c.accountOrNew(to)
	if err != nil {
		return err
	}
	src.Balance = new(big.Int).Sub(src.Balance, amount)
	dst.Balance = new(big.Int).Add(dst.Balance, amount)
	return nil
}

// transferToken moves token balance; a shortfall is ErrInsufficientFunds.
func (c *changeset) transferToken(token, from, to common.Address, amount *big.Int) error {
	fromBal, err := c.tokenBalance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			domainerrors.ErrInsufficientFunds, from.Hex(), fromBal, token.Hex(), amount)
	}
	c.setTokenBalance(token, from, new(big.Int).Sub(fromBal, amount))
	toBal, err := c.tokenBalance(token, to)
	if err != nil {
		return err
	}
	c.setTokenBalance(token, to, new(big.Int).Add(toBal, amount))
	return nil
}

func (c *changeset) emit(event *entities.LedgerEvent) {
	c.events = append(c.events, event)
}

// commit writes every staged entry through the store. It must run inside the
// unit of work that produced ctx and only on a root changeset.
func (c *changeset) commit() error {
	if c.parent != nil {
		return errors.New("commit called on a forked changeset")
	}
	for _, addr := range c.accountOrder {
		if err := c.store.accounts.Save(c.ctx, c.accounts[addr]); err != nil {
			return fmt.Errorf("save account %s: %w", addr.Hex(), err)
		}
	}
	for _, k := range c.limitOrder {
		l := c.limits[k]
		if !l.IsEnabled && l.Limit.Sign() == 0 {
			continue
		}
		if err := c.store.limits.Save(c.ctx, l); err != nil {
			return fmt.Errorf("save spending limit: %w", err)
		}
	}
	for _, k := range c.balanceOrder {
		if err := c.store.tokens.SetBalance(c.ctx, k.token, k.holder, c.balances[k]); err != nil {
			return fmt.Errorf("save token balance: %w", err)
		}
	}
	for _, k := range c.allowOrder {
		if err := c.store.tokens.SetAllowance(c.ctx, k.token, k.owner, k.spender, c.allowances[k]); err != nil {
			return fmt.Errorf("save allowance: %w", err)
		}
	}
	return nil
}

// SponsorLedger is the staged ledger view a sponsorship runs against.
type SponsorLedger interface {
	Context() context.Context
	NativeBalance(addr common.Address) (*big.Int, error)
	TransferNative(from, to common.Address, amount *big.Int) error
	TokenBalance(token, holder common.Address) (*big.Int, error)
	TransferToken(token, from, to common.Address, amount *big.Int) error
	Allowance(token, owner, spender common.Address) (*big.Int, error)
	SetAllowance(token, owner, spender common.Address, amount *big.Int)
}

var _ SponsorLedger = (*changeset)(nil)

func (c *changeset) Context() context.Context { return c.ctx }

func (c *changeset) NativeBalance(addr common.Address) (*big.Int, error) {
	acc, err := c.account(addr)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

func (c *changeset) TransferNative(from, to common.Address, amount *big.Int) error {
	return c.transferNative(from, to, amount)
}

func (c *changeset) TokenBalance(token, holder common.Address) (*big.Int, error) {
	return c.tokenBalance(token, holder)
}

func (c *changeset) TransferToken(token, from, to common.Address, amount *big.Int) error {
	return c.transferToken(token, from, to, amount)
}

func (c *changeset) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	return c.allowance(token, owner, spender)
}

func (c *changeset) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	c.setAllowance(token, owner, spender, amount)
}
