package repositories

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
)

// SpendingLimitRepository persists per-token limit entries. Entries are never deleted.
type SpendingLimitRepository interface {
	Get(ctx context.Context, account, token common.Address) (*entities.SpendingLimit, error)
	ListByAccount(ctx context.Context, account common.Address) ([]*entities.SpendingLimit, error)
	Save(ctx context.Context, limit *entities.SpendingLimit) error
}
