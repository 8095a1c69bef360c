package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Account struct {
	Address            string      `gorm:"type:varchar(42);primaryKey"`
	Kind               string      `gorm:"type:varchar(20);not null;index"`
	Balance            string      `gorm:"type:varchar(78);not null;default:'0'"` // BigInt as string
	Nonce              uint64      `gorm:"not null;default:0"`
	Owners             AddressList
	Quorum             int         `gorm:"not null;default:0"`
	LimitWindowSeconds int64       `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AddressList is a postgres text[] of hex addresses. Other dialects keep the
// same array literal in a text column.
type AddressList pq.StringArray

func (l AddressList) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	return pq.StringArray(l).Value()
}

func (l *AddressList) Scan(src interface{}) error {
	return (*pq.StringArray)(l).Scan(src)
}

func (AddressList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
