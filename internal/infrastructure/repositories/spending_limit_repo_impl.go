package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/infrastructure/models"
)

// SpendingLimitRepository implements spending limit persistence
type SpendingLimitRepository struct {
	db *gorm.DB
}

// NewSpendingLimitRepository creates a new spending limit repository
func NewSpendingLimitRepository(db *gorm.DB) *SpendingLimitRepository {
	return &SpendingLimitRepository{db: db}
}

// Get returns the entry for (account, token) or ErrNotFound
func (r *SpendingLimitRepository) Get(ctx context.Context, account, token common.Address) (*entities.SpendingLimit, error) {
	var m models.SpendingLimit
	err := LockedDB(ctx, r.db).
		Where("account = ? AND token = ?", account.Hex(), token.Hex()).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toSpendingLimitEntity(&m), nil
}

// ListByAccount lists all limit entries of an account
func (r *SpendingLimitRepository) ListByAccount(ctx context.Context, account common.Address) ([]*entities.SpendingLimit, error) {
	var ms []models.SpendingLimit
	if err := GetDB(ctx, r.db).
		Where("account = ?", account.Hex()).
		Order("token ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.SpendingLimit, 0, len(ms))
	for i := range ms {
		out = append(out, toSpendingLimitEntity(&ms[i]))
	}
	return out, nil
}

// Save upserts an entry
func (r *SpendingLimitRepository) Save(ctx context.Context, limit *entities.SpendingLimit) error {
	now := time.Now()
	m := &models.SpendingLimit{
		Account:     limit.Account.Hex(),
		Token:       limit.Token.Hex(),
		LimitAmount: bigString(limit.Limit),
		Available:   bigString(limit.Available),
		ResetTime:   limit.ResetTime,
		IsEnabled:   limit.IsEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"limit_amount", "available", "reset_time", "is_enabled", "updated_at"}),
	}).Create(m).Error
}

func toSpendingLimitEntity(m *models.SpendingLimit) *entities.SpendingLimit {
	return &entities.SpendingLimit{
		Account:   common.HexToAddress(m.Account),
		Token:     common.HexToAddress(m.Token),
		Limit:     parseBig(m.LimitAmount),
		Available: parseBig(m.Available),
		ResetTime: m.ResetTime,
		IsEnabled: m.IsEnabled,
	}
}
