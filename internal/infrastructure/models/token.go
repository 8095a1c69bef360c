package models

import (
	"time"
)

type Token struct {
	Address   string `gorm:"type:varchar(42);primaryKey"`
	Name      string `gorm:"type:varchar(100);not null"`
	Symbol    string `gorm:"type:varchar(20);not null"`
	Decimals  int    `gorm:"not null;default:18"`
	Mintable  bool   `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TokenBalance struct {
	Token     string `gorm:"type:varchar(42);primaryKey"`
	Holder    string `gorm:"type:varchar(42);primaryKey"`
	Amount    string `gorm:"type:varchar(78);not null"` // BigInt as string
	UpdatedAt time.Time
}

type TokenAllowance struct {
	Token     string `gorm:"type:varchar(42);primaryKey"`
	Owner     string `gorm:"type:varchar(42);primaryKey"`
	Spender   string `gorm:"type:varchar(42);primaryKey"`
	Amount    string `gorm:"type:varchar(78);not null"` // BigInt as string
	UpdatedAt time.Time
}
