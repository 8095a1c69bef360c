package repositories

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
)

// PaymasterRepository defines paymaster registry operations
type PaymasterRepository interface {
	GetByAddress(ctx context.Context, address common.Address) (*entities.Paymaster, error)
	List(ctx context.Context) ([]*entities.Paymaster, error)
	Create(ctx context.Context, paymaster *entities.Paymaster) error
	SetActive(ctx context.Context, address common.Address, active bool) error
}
