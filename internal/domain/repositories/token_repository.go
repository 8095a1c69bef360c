package repositories

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
)

// TokenRepository defines hosted token, balance and allowance operations.
// Missing balances and allowances read as zero.
type TokenRepository interface {
	GetByAddress(ctx context.Context, address common.Address) (*entities.Token, error)
	GetAll(ctx context.Context) ([]*entities.Token, error)
	Create(ctx context.Context, token *entities.Token) error

	GetBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, token, holder common.Address, amount *big.Int) error
	GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	SetAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
}
