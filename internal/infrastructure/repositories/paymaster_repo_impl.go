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

// PaymasterRepository implements paymaster registry operations
type PaymasterRepository struct {
	db *gorm.DB
}

// NewPaymasterRepository creates a new paymaster repository
func NewPaymasterRepository(db *gorm.DB) *PaymasterRepository {
	return &PaymasterRepository{db: db}
}

// GetByAddress gets a paymaster by address
func (r *PaymasterRepository) GetByAddress(ctx context.Context, address common.Address) (*entities.Paymaster, error) {
	var m models.Paymaster
	if err := GetDB(ctx, r.db).Where("address = ?", address.Hex()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toPaymasterEntity(&m), nil
}

// List lists all paymasters
func (r *PaymasterRepository) List(ctx context.Context) ([]*entities.Paymaster, error) {
	var ms []models.Paymaster
	if err := GetDB(ctx, r.db).Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.Paymaster, 0, len(ms))
	for i := range ms {
		out = append(out, toPaymasterEntity(&ms[i]))
	}
	return out, nil
}

// Create registers a paymaster
func (r *PaymasterRepository) Create(ctx context.Context, pm *entities.Paymaster) error {
	now := time.Now()
	pm.CreatedAt = now
	pm.UpdatedAt = now
	m := &models.Paymaster{
		Address:          pm.Address.Hex(),
		Owner:            pm.Owner.Hex(),
		AcceptedToken:    pm.AcceptedToken.Hex(),
		MinimalAllowance: bigString(pm.MinimalAllowance),
		RateNumerator:    bigString(pm.RateNumerator),
		RateDenominator:  bigString(pm.RateDenominator),
		IsActive:         pm.IsActive,
		CreatedAt:        pm.CreatedAt,
		UpdatedAt:        pm.UpdatedAt,
	}
	result := GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	// gorm skips zero-value bools on insert when a default exists
	if !pm.IsActive {
		return r.SetActive(ctx, pm.Address, false)
	}
	return nil
}

// SetActive toggles whether the paymaster sponsors transactions
func (r *PaymasterRepository) SetActive(ctx context.Context, address common.Address, active bool) error {
	result := GetDB(ctx, r.db).Model(&models.Paymaster{}).
		Where("address = ?", address.Hex()).
		Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func toPaymasterEntity(m *models.Paymaster) *entities.Paymaster {
	return &entities.Paymaster{
		Address:          common.HexToAddress(m.Address),
		Owner:            common.HexToAddress(m.Owner),
		AcceptedToken:    common.HexToAddress(m.AcceptedToken),
		MinimalAllowance: parseBig(m.MinimalAllowance),
		RateNumerator:    parseBig(m.RateNumerator),
		RateDenominator:  parseBig(m.RateDenominator),
		IsActive:         m.IsActive,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
