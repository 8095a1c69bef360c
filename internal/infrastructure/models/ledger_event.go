package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

type LedgerEvent struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	TxHash    string      `gorm:"type:varchar(66);index"`
	Account   string      `gorm:"type:varchar(42);not null;index"`
	EventType string      `gorm:"type:varchar(40);not null"`
	Token     null.String `gorm:"type:varchar(42)"`
	Amount    null.String `gorm:"type:varchar(78)"`
	Detail    null.String `gorm:"type:text"`
	CreatedAt time.Time   `gorm:"index"`
}

type Receipt struct {
	TxHash       string      `gorm:"type:varchar(66);primaryKey"`
	FromAddress  string      `gorm:"type:varchar(42);not null;index"`
	ToAddress    string      `gorm:"type:varchar(42);not null"`
	Nonce        uint64      `gorm:"not null"`
	Status       string      `gorm:"type:varchar(20);not null"`
	Fee          string      `gorm:"type:varchar(78);not null"`
	Paymaster    null.String `gorm:"type:varchar(42)"`
	RevertReason null.String `gorm:"type:text"`
	CreatedAt    time.Time
}
