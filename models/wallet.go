package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet represents a customer's stored-value wallet. Balance is a cache
// maintained alongside the append-only WalletTransaction rows.
type Wallet struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint      `gorm:"not null;uniqueIndex" json:"customer_id"`

	Balance float64 `gorm:"not null;default:0" json:"balance"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Customer     Customer            `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
	Transactions []WalletTransaction `gorm:"foreignKey:WalletID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// BeforeCreate ensures UUID is set
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	return nil
}

// WalletFilter represents filter criteria for wallet queries
type WalletFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CustomerID    *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
