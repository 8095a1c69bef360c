package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Paymaster is an approval-based fee sponsor. Its native balance lives on its Account.
type Paymaster struct {
	Address          common.Address `json:"address"`
	Owner            common.Address `json:"owner"`
	AcceptedToken    common.Address `json:"acceptedToken"`
	MinimalAllowance *big.Int       `json:"minimalAllowance"`
	RateNumerator    *big.Int       `json:"rateNumerator"`
	RateDenominator  *big.Int       `json:"rateDenominator"`
	IsActive         bool           `json:"isActive"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// TokenAmountFor converts a native fee into the token amount the paymaster pulls,
// rounding up so the paymaster is never short-changed.
func (p *Paymaster) TokenAmountFor(fee *big.Int) *big.Int {
	num := bigOrOne(p.RateNumerator)
	den := bigOrOne(p.RateDenominator)
	amount := new(big.Int).Mul(bigOrZero(fee), num)
	q, r := new(big.Int).QuoRem(amount, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func bigOrOne(v *big.Int) *big.Int {
	if v == nil || v.Sign() == 0 {
		return big.NewInt(1)
	}
	return v
}

// SponsorOutcome records a successful sponsorship.
type SponsorOutcome struct {
	Paymaster   common.Address `json:"paymaster"`
	Payer       common.Address `json:"payer"`
	Token       common.Address `json:"token"`
	TokenAmount *big.Int       `json:"tokenAmount"`
	FeeAdvanced *big.Int       `json:"feeAdvanced"`
}

// RegisterPaymasterInput describes a paymaster to create.
type RegisterPaymasterInput struct {
	Owner            string `json:"owner" binding:"required"`
	AcceptedToken    string `json:"acceptedToken" binding:"required"`
	MinimalAllowance string `json:"minimalAllowance"`
	RateNumerator    string `json:"rateNumerator"`
	RateDenominator  string `json:"rateDenominator"`
	Salt             string `json:"salt"`
}
