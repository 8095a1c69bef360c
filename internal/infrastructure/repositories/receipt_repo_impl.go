package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/infrastructure/models"
)

// ReceiptRepository implements receipt persistence
type ReceiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Create stores a receipt; a second receipt for one hash is ErrAlreadyExists
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entities.Receipt) error {
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now()
	}
	db := GetDB(ctx, r.db)
	var count int64
	if err := db.Model(&models.Receipt{}).Where("tx_hash = ?", receipt.TxHash.Hex()).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domainerrors.ErrAlreadyExists
	}
	return db.Create(&models.Receipt{
		TxHash:       receipt.TxHash.Hex(),
		FromAddress:  receipt.From.Hex(),
		ToAddress:    receipt.To.Hex(),
		Nonce:        receipt.Nonce,
		Status:       string(receipt.Status),
		Fee:          receipt.Fee,
		Paymaster:    receipt.Paymaster,
		RevertReason: receipt.RevertReason,
		CreatedAt:    receipt.CreatedAt,
	}).Error
}

// GetByHash gets a receipt by transaction hash
func (r *ReceiptRepository) GetByHash(ctx context.Context, hash common.Hash) (*entities.Receipt, error) {
	var m models.Receipt
	if err := GetDB(ctx, r.db).Where("tx_hash = ?", hash.Hex()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.Receipt{
		TxHash:       common.HexToHash(m.TxHash),
		From:         common.HexToAddress(m.FromAddress),
		To:           common.HexToAddress(m.ToAddress),
		Nonce:        m.Nonce,
		Status:       entities.ReceiptStatus(m.Status),
		Fee:          m.Fee,
		Paymaster:    m.Paymaster,
		RevertReason: m.RevertReason,
		CreatedAt:    m.CreatedAt,
	}, nil
}
