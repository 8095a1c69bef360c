package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AccountKind distinguishes plain addresses from programmable accounts.
type AccountKind string

const (
	AccountKindEOA         AccountKind = "EOA"
	AccountKindSingleOwner AccountKind = "SINGLE_OWNER"
	AccountKindMultiSig    AccountKind = "MULTISIG"
	AccountKindPaymaster   AccountKind = "PAYMASTER"
)

// Account is the ledger state of an address. Wallet kinds carry their owners.
type Account struct {
	Address     common.Address   `json:"address"`
	Kind        AccountKind      `json:"kind"`
	Balance     *big.Int         `json:"balance"`
	Nonce       uint64           `json:"nonce"`
	Owners      []common.Address `json:"owners,omitempty"`
	Quorum      int              `json:"quorum,omitempty"`
	LimitWindow time.Duration    `json:"limitWindow,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewAccount returns an empty EOA entry for address.
func NewAccount(address common.Address) *Account {
	return &Account{
		Address: address,
		Kind:    AccountKindEOA,
		Balance: new(big.Int),
	}
}

// IsWallet reports whether the account validates its own transactions.
func (a *Account) IsWallet() bool {
	return a.Kind == AccountKindSingleOwner || a.Kind == AccountKindMultiSig
}

// CanSend reports whether the account may originate transactions.
// Paymasters only ever sponsor.
func (a *Account) CanSend() bool {
	return a.IsWallet() || a.Kind == AccountKindEOA
}

// Window returns the spending-limit window, falling back to DefaultLimitWindow.
func (a *Account) Window() time.Duration {
	if a.LimitWindow <= 0 {
		return DefaultLimitWindow
	}
	return a.LimitWindow
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	cpy := *a
	cpy.Balance = new(big.Int).Set(bigOrZero(a.Balance))
	cpy.Owners = append([]common.Address(nil), a.Owners...)
	return &cpy
}

// DeployAccountInput describes a wallet account to create.
type DeployAccountInput struct {
	Owners []string `json:"owners" binding:"required"`
	Quorum int      `json:"quorum"`
	Salt   string   `json:"salt"`
}

// FundInput credits native balance to an address.
type FundInput struct {
	Amount string `json:"amount" binding:"required"`
}
