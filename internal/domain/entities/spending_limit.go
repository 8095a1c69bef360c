package entities

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	domainerrors "aa-wallet.backend/internal/domain/errors"
)

// DefaultLimitWindow is the length of a spending-limit window.
const DefaultLimitWindow = 24 * time.Hour

// SpendingLimit is the per-token spending ceiling of a wallet account.
// Transitions never read a clock; callers pass the current time.
type SpendingLimit struct {
	Account   common.Address `json:"account"`
	Token     common.Address `json:"token"`
	Limit     *big.Int       `json:"limit"`
	Available *big.Int       `json:"available"`
	ResetTime int64          `json:"resetTime"`
	IsEnabled bool           `json:"isEnabled"`
}

// NewSpendingLimit returns the zero entry for (account, token): disabled, never set.
func NewSpendingLimit(account, token common.Address) *SpendingLimit {
	return &SpendingLimit{
		Account:   account,
		Token:     token,
		Limit:     new(big.Int),
		Available: new(big.Int),
	}
}

// Clone returns a deep copy.
func (l *SpendingLimit) Clone() *SpendingLimit {
	cpy := *l
	cpy.Limit = new(big.Int).Set(bigOrZero(l.Limit))
	cpy.Available = new(big.Int).Set(bigOrZero(l.Available))
	return &cpy
}

// Set enables the limit with a full window starting at now.
// Prior consumption is discarded.
func (l *SpendingLimit) Set(limit *big.Int, now time.Time, window time.Duration) error {
	if limit == nil || limit.Sign() <= 0 {
		return fmt.Errorf("%w: limit must be positive", domainerrors.ErrMalformedField)
	}
	l.Limit = new(big.Int).Set(limit)
	l.Available = new(big.Int).Set(limit)
	l.ResetTime = now.Add(window).Unix()
	l.IsEnabled = true
	return nil
}

// Remove disables enforcement. Limit and Available stay in place.
func (l *SpendingLimit) Remove() {
	l.IsEnabled = false
}

// Reenable turns a removed limit back on with its previous ceiling and
// remaining balance, provided its window has not rolled over yet.
func (l *SpendingLimit) Reenable(now time.Time) error {
	if l.IsEnabled {
		return nil
	}
	if bigOrZero(l.Limit).Sign() == 0 {
		return fmt.Errorf("%w: limit was never set for %s", domainerrors.ErrNotFound, l.Token.Hex())
	}
	if now.Unix() >= l.ResetTime {
		return domainerrors.ErrLimitWindowExpired
	}
	l.IsEnabled = true
	return nil
}

// CheckAndUpdate debits amount from the current window.
// On ErrLimitExceeded the entry is left exactly as it was.
func (l *SpendingLimit) CheckAndUpdate(amount *big.Int, now time.Time, window time.Duration) error {
	if !l.IsEnabled {
		return nil
	}
	available := bigOrZero(l.Available)
	resetTime := l.ResetTime
	if now.Unix() >= resetTime {
		available = bigOrZero(l.Limit)
		resetTime = now.Add(window).Unix()
	}
	if bigOrZero(amount).Cmp(available) > 0 {
		return fmt.Errorf("%w: token %s amount %s available %s",
			domainerrors.ErrLimitExceeded, l.Token.Hex(), bigOrZero(amount), available)
	}
	l.Available = new(big.Int).Sub(available, bigOrZero(amount))
	l.ResetTime = resetTime
	return nil
}
