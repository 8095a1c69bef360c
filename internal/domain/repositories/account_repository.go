package repositories

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
)

// AccountRepository defines ledger account operations
type AccountRepository interface {
	GetByAddress(ctx context.Context, address common.Address) (*entities.Account, error)
	// GetForUpdate loads the account and locks its row for the surrounding transaction.
	GetForUpdate(ctx context.Context, address common.Address) (*entities.Account, error)
	ListByKind(ctx context.Context, kind entities.AccountKind) ([]*entities.Account, error)
	Create(ctx context.Context, account *entities.Account) error
	// Save inserts or updates every mutable column of the account.
	Save(ctx context.Context, account *entities.Account) error
}
