package repositories

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/infrastructure/models"
)

// TokenRepository implements hosted token operations
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetByAddress gets a token by address
func (r *TokenRepository) GetByAddress(ctx context.Context, address common.Address) (*entities.Token, error) {
	var m models.Token
	if err := GetDB(ctx, r.db).Where("address = ?", address.Hex()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toTokenEntity(&m), nil
}

// GetAll lists all tokens
func (r *TokenRepository) GetAll(ctx context.Context) ([]*entities.Token, error) {
	var ms []models.Token
	if err := GetDB(ctx, r.db).Order("symbol ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.Token, 0, len(ms))
	for i := range ms {
		out = append(out, toTokenEntity(&ms[i]))
	}
	return out, nil
}

// Create registers a token
func (r *TokenRepository) Create(ctx context.Context, token *entities.Token) error {
	now := time.Now()
	token.CreatedAt = now
	m := &models.Token{
		Address:   token.Address.Hex(),
		Name:      token.Name,
		Symbol:    token.Symbol,
		Decimals:  token.Decimals,
		Mintable:  token.Mintable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result := GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

// GetBalance returns holder's balance of token, zero when absent
func (r *TokenRepository) GetBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	var m models.TokenBalance
	err := LockedDB(ctx, r.db).
		Where("token = ? AND holder = ?", token.Hex(), holder.Hex()).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(m.Amount), nil
}

// SetBalance upserts holder's balance of token
func (r *TokenRepository) SetBalance(ctx context.Context, token, holder common.Address, amount *big.Int) error {
	m := &models.TokenBalance{
		Token:     token.Hex(),
		Holder:    holder.Hex(),
		Amount:    bigString(amount),
		UpdatedAt: time.Now(),
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(m).Error
}

// GetAllowance returns what owner permits spender to pull, zero when absent
func (r *TokenRepository) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var m models.TokenAllowance
	err := LockedDB(ctx, r.db).
		Where("token = ? AND owner = ? AND spender = ?", token.Hex(), owner.Hex(), spender.Hex()).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(m.Amount), nil
}

// SetAllowance upserts an allowance
func (r *TokenRepository) SetAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	m := &models.TokenAllowance{
		Token:     token.Hex(),
		Owner:     owner.Hex(),
		Spender:   spender.Hex(),
		Amount:    bigString(amount),
		UpdatedAt: time.Now(),
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}, {Name: "owner"}, {Name: "spender"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(m).Error
}

func toTokenEntity(m *models.Token) *entities.Token {
	return &entities.Token{
		Address:   common.HexToAddress(m.Address),
		Name:      m.Name,
		Symbol:    m.Symbol,
		Decimals:  m.Decimals,
		Mintable:  m.Mintable,
		CreatedAt: m.CreatedAt,
	}
}
