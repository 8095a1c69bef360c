package repositories

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
)

// ReceiptRepository stores the outcome of every admitted transaction
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entities.Receipt) error
	GetByHash(ctx context.Context, hash common.Hash) (*entities.Receipt, error)
}
