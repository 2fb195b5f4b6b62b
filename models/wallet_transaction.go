package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletTransactionType represents the direction of a wallet transaction
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit"
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
)

// String returns the string representation of the transaction type
func (t WalletTransactionType) String() string {
	return string(t)
}

// Valid checks if the transaction type is valid
func (t WalletTransactionType) Valid() bool {
	switch t {
	case WalletTransactionTypeCredit, WalletTransactionTypeDebit:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for WalletTransactionType
func (t *WalletTransactionType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = WalletTransactionType(v)
	case []byte:
		*t = WalletTransactionType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into WalletTransactionType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for WalletTransactionType
func (t WalletTransactionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid WalletTransactionType: %s", t)
	}
	return string(t), nil
}

// WalletTransaction is an immutable ledger entry. Wallet.Balance is derived
// from these rows; rows are never updated or deleted.
type WalletTransaction struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	WalletID   uint `gorm:"not null;index" json:"wallet_id"`
	CustomerID uint `gorm:"not null;index" json:"customer_id"`

	Type   WalletTransactionType `gorm:"type:varchar(10);not null" json:"type"`
	Amount float64               `gorm:"not null" json:"amount"`

	// Balance after applying this transaction
	BalanceAfter float64 `gorm:"not null" json:"balance_after"`

	Reason string `gorm:"type:text" json:"reason"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`

	Wallet Wallet `gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE" json:"-"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// BeforeCreate ensures UUID is set
func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// WalletTransactionFilter represents filter criteria for wallet transaction queries
type WalletTransactionFilter struct {
	ID            *uint
	WalletID      *uint
	CustomerID    *uint
	Type          *WalletTransactionType
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
