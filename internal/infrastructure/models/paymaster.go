package models

import "time"

type Paymaster struct {
	Address          string `gorm:"type:varchar(42);primaryKey"`
	Owner            string `gorm:"type:varchar(42);not null"`
	AcceptedToken    string `gorm:"type:varchar(42);not null;index"`
	MinimalAllowance string `gorm:"type:varchar(78);not null;default:'1'"`
	RateNumerator    string `gorm:"type:varchar(78);not null;default:'1'"`
	RateDenominator  string `gorm:"type:varchar(78);not null;default:'1'"`
	IsActive         bool   `gorm:"default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
