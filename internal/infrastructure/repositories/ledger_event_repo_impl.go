package repositories

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"aa-wallet.backend/internal/domain/entities"
	"aa-wallet.backend/internal/infrastructure/models"
	"aa-wallet.backend/pkg/utils"
)

// LedgerEventRepository implements ledger event persistence
type LedgerEventRepository struct {
	db *gorm.DB
}

// NewLedgerEventRepository creates a new ledger event repository
func NewLedgerEventRepository(db *gorm.DB) *LedgerEventRepository {
	return &LedgerEventRepository{db: db}
}

// Create records an event
func (r *LedgerEventRepository) Create(ctx context.Context, event *entities.LedgerEvent) error {
	if event.ID == uuid.Nil {
		event.ID = utils.GenerateUUIDv7()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	m := &models.LedgerEvent{
		ID:        event.ID,
		TxHash:    event.TxHash.Hex(),
		Account:   event.Account.Hex(),
		EventType: string(event.Type),
		Token:     event.Token,
		Amount:    event.Amount,
		Detail:    event.Detail,
		CreatedAt: event.CreatedAt,
	}
	return GetDB(ctx, r.db).Create(m).Error
}

// ListByAccount lists an account's events, newest first
func (r *LedgerEventRepository) ListByAccount(ctx context.Context, account common.Address, pagination utils.PaginationParams) ([]*entities.LedgerEvent, int64, error) {
	db := GetDB(ctx, r.db)
	var total int64
	if err := db.Model(&models.LedgerEvent{}).Where("account = ?", account.Hex()).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := db.Where("account = ?", account.Hex()).Order("created_at DESC").Order("id DESC")
	if pagination.Limit > 0 {
		query = query.Limit(pagination.Limit).Offset(pagination.CalculateOffset())
	}
	var ms []models.LedgerEvent
	if err := query.Find(&ms).Error; err != nil {
		return nil, 0, err
	}
	return toLedgerEvents(ms), total, nil
}

// ListByTxHash lists the events a transaction produced
func (r *LedgerEventRepository) ListByTxHash(ctx context.Context, txHash common.Hash) ([]*entities.LedgerEvent, error) {
	var ms []models.LedgerEvent
	if err := GetDB(ctx, r.db).
		Where("tx_hash = ?", txHash.Hex()).
		Order("created_at ASC").Order("id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toLedgerEvents(ms), nil
}

func toLedgerEvents(ms []models.LedgerEvent) []*entities.LedgerEvent {
	out := make([]*entities.LedgerEvent, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.LedgerEvent{
			ID:        m.ID,
			TxHash:    common.HexToHash(m.TxHash),
			Account:   common.HexToAddress(m.Account),
			Type:      entities.LedgerEventType(m.EventType),
			Token:     m.Token,
			Amount:    m.Amount,
			Detail:    m.Detail,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
