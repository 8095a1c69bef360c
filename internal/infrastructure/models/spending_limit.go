package models

import "time"

type SpendingLimit struct {
	Account     string `gorm:"type:varchar(42);primaryKey"`
	Token       string `gorm:"type:varchar(42);primaryKey"`
	LimitAmount string `gorm:"type:varchar(78);not null"`
	Available   string `gorm:"type:varchar(78);not null"`
	ResetTime   int64  `gorm:"not null"`
	IsEnabled   bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
