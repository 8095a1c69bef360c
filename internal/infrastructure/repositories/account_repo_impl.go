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

// AccountRepository implements ledger account operations
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByAddress gets an account by address
func (r *AccountRepository) GetByAddress(ctx context.Context, address common.Address) (*entities.Account, error) {
	return r.get(GetDB(ctx, r.db), address)
}

// GetForUpdate gets an account and locks its row when the context asks for it
func (r *AccountRepository) GetForUpdate(ctx context.Context, address common.Address) (*entities.Account, error) {
	return r.get(LockedDB(ctx, r.db), address)
}

func (r *AccountRepository) get(db *gorm.DB, address common.Address) (*entities.Account, error) {
	var m models.Account
	if err := db.Where("address = ?", address.Hex()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// ListByKind lists accounts of one kind
func (r *AccountRepository) ListByKind(ctx context.Context, kind entities.AccountKind) ([]*entities.Account, error) {
	var ms []models.Account
	if err := GetDB(ctx, r.db).
		Where("kind = ?", string(kind)).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	accounts := make([]*entities.Account, 0, len(ms))
	for i := range ms {
		accounts = append(accounts, r.toEntity(&ms[i]))
	}
	return accounts, nil
}

// Create creates a new account; the address must be unused
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	m := r.toModel(account)
	result := GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

// Save upserts an account. Created-at is kept on conflict.
func (r *AccountRepository) Save(ctx context.Context, account *entities.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	m := r.toModel(account)
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "balance", "nonce", "owners", "quorum", "limit_window_seconds", "updated_at",
		}),
	}).Create(m).Error
}

func (r *AccountRepository) toModel(a *entities.Account) *models.Account {
	return &models.Account{
		Address:            a.Address.Hex(),
		Kind:               string(a.Kind),
		Balance:            bigString(a.Balance),
		Nonce:              a.Nonce,
		Owners:             addressList(a.Owners),
		Quorum:             a.Quorum,
		LimitWindowSeconds: int64(a.LimitWindow / time.Second),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (r *AccountRepository) toEntity(m *models.Account) *entities.Account {
	return &entities.Account{
		Address:     common.HexToAddress(m.Address),
		Kind:        entities.AccountKind(m.Kind),
		Balance:     parseBig(m.Balance),
		Nonce:       m.Nonce,
		Owners:      addressesOf(m.Owners),
		Quorum:      m.Quorum,
		LimitWindow: time.Duration(m.LimitWindowSeconds) * time.Second,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
