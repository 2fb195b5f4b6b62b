// Package models contains domain entities and business models for the engagement engine
package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid;index:idx_customers_uuid" json:"uuid"`

	FirstName string `gorm:"size:255;not null" json:"first_name"`
	LastName  string `gorm:"size:255;not null" json:"last_name"`
	Email     string `gorm:"size:255;not null;uniqueIndex:idx_customers_email" json:"email"`
	Mobile    string `gorm:"size:15;not null;uniqueIndex:idx_customers_mobile" json:"mobile"`

	// Membership
	MembershipLevelID    uint       `gorm:"not null;index:idx_customers_membership_level_id" json:"membership_level_id"`
	MembershipExpiryDate *time.Time `json:"membership_expiry_date,omitempty"`

	// Denormalized purchase statistics maintained by the surrounding POS system.
	// The engine reads these through CustomerSnapshot only.
	TotalSpent    float64 `gorm:"not null;default:0" json:"total_spent"`
	TotalVisits   int     `gorm:"not null;default:0" json:"total_visits"`
	TotalOrders   int     `gorm:"not null;default:0" json:"total_orders"`
	LoyaltyPoints int     `gorm:"not null;default:0;index:idx_customers_loyalty_points" json:"loyalty_points"`

	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	LastActivityAt *time.Time `gorm:"index:idx_customers_last_activity_at" json:"last_activity_at,omitempty"`

	IsActive *bool `gorm:"default:true;index:idx_customers_is_active" json:"is_active"`

	// Timestamps
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Wallet      *Wallet             `gorm:"foreignKey:CustomerID" json:"wallet,omitempty"`
	Memberships []SegmentMembership `gorm:"foreignKey:CustomerID" json:"-"`
	Executions  []TriggerExecution  `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID                *uint
	UUID              *uuid.UUID
	Email             *string
	Mobile            *string
	MembershipLevelID *uint
	IsActive          *bool
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
	LastActivityAfter *time.Time
}
