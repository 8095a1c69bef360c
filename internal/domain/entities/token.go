package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20-style token hosted by the ledger.
type Token struct {
	Address   common.Address `json:"address"`
	Name      string         `json:"name"`
	Symbol    string         `json:"symbol"`
	Decimals  int            `json:"decimals"`
	Mintable  bool           `json:"mintable"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TokenBalance is a holder's balance of a token.
type TokenBalance struct {
	Token  common.Address `json:"token"`
	Holder common.Address `json:"holder"`
	Amount *big.Int       `json:"amount"`
}

// TokenAllowance is what owner permits spender to pull.
type TokenAllowance struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

// RegisterTokenInput describes a token to create.
type RegisterTokenInput struct {
	Name     string `json:"name" binding:"required"`
	Symbol   string `json:"symbol" binding:"required"`
	Decimals int    `json:"decimals"`
	Mintable bool   `json:"mintable"`
	Salt     string `json:"salt"`
}
