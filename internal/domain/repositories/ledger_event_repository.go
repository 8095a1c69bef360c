package repositories

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
	"aa-wallet.backend/pkg/utils"
)

type LedgerEventRepository interface {
	Create(ctx context.Context, event *entities.LedgerEvent) error
	ListByAccount(ctx context.Context, account common.Address, pagination utils.PaginationParams) ([]*entities.LedgerEvent, int64, error)
	ListByTxHash(ctx context.Context, txHash common.Hash) ([]*entities.LedgerEvent, error)
}
