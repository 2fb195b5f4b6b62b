package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SegmentCriteria is the declarative membership rule for a segment. Every set
// field is an independent constraint and all set fields are ANDed together; a
// field left nil imposes no constraint. A criteria with zero set fields is
// legal and matches every active customer (a "match-all" segment).
type SegmentCriteria struct {
	MinTotalSpent *float64 `json:"min_total_spent,omitempty"`
	MaxTotalSpent *float64 `json:"max_total_spent,omitempty"`

	MinTotalVisits *int `json:"min_total_visits,omitempty"`
	MaxTotalVisits *int `json:"max_total_visits,omitempty"`

	MinLoyaltyPoints *int `json:"min_loyalty_points,omitempty"`
	MaxLoyaltyPoints *int `json:"max_loyalty_points,omitempty"`

	MinWalletBalance *float64 `json:"min_wallet_balance,omitempty"`
	MaxWalletBalance *float64 `json:"max_wallet_balance,omitempty"`

	MinAvgOrderValue *float64 `json:"min_avg_order_value,omitempty"`
	MaxAvgOrderValue *float64 `json:"max_avg_order_value,omitempty"`

	// Customer's membership level must be one of these IDs
	MembershipLevelIDs []uint `json:"membership_level_ids,omitempty"`

	// Days since last activity
	InactiveForAtLeastDays *int `json:"inactive_for_at_least_days,omitempty"`
	InactiveForAtMostDays  *int `json:"inactive_for_at_most_days,omitempty"`

	// Customer's birthday falls in the current month
	BirthdayThisMonth *bool `json:"birthday_this_month,omitempty"`

	// Days since account creation
	AccountAgeAtLeastDays *int `json:"account_age_at_least_days,omitempty"`
	AccountAgeAtMostDays  *int `json:"account_age_at_most_days,omitempty"`
}

// IsMatchAll reports whether no field of the criteria is set.
func (c SegmentCriteria) IsMatchAll() bool {
	return c.MinTotalSpent == nil && c.MaxTotalSpent == nil &&
		c.MinTotalVisits == nil && c.MaxTotalVisits == nil &&
		c.MinLoyaltyPoints == nil && c.MaxLoyaltyPoints == nil &&
		c.MinWalletBalance == nil && c.MaxWalletBalance == nil &&
		c.MinAvgOrderValue == nil && c.MaxAvgOrderValue == nil &&
		len(c.MembershipLevelIDs) == 0 &&
		c.InactiveForAtLeastDays == nil && c.InactiveForAtMostDays == nil &&
		c.BirthdayThisMonth == nil &&
		c.AccountAgeAtLeastDays == nil && c.AccountAgeAtMostDays == nil
}

// Value implements the driver.Valuer interface for SegmentCriteria
func (c SegmentCriteria) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for SegmentCriteria
func (c *SegmentCriteria) Scan(value any) error {
	if value == nil {
		*c = SegmentCriteria{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SegmentCriteria", value)
	}

	return json.Unmarshal(bytes, c)
}

// Segment represents a dynamically computed set of customers
type Segment struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_segments_uuid" json:"uuid"`

	Name        string  `gorm:"size:255;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	Criteria SegmentCriteria `gorm:"type:jsonb;not null;default:'{}'" json:"criteria"`

	// AutoRefresh segments are recalculated by the scheduler; others only on demand
	AutoRefresh bool  `gorm:"not null;default:true;index:idx_segments_auto_refresh" json:"auto_refresh"`
	IsActive    *bool `gorm:"default:true;index:idx_segments_is_active" json:"is_active"`

	// Refresh bookkeeping. CustomerCount is a cache; the membership table is
	// the authoritative record.
	CustomerCount    int        `gorm:"not null;default:0" json:"customer_count"`
	LastCalculatedAt *time.Time `json:"last_calculated_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Memberships []SegmentMembership `gorm:"foreignKey:SegmentID" json:"-"`
}

func (Segment) TableName() string {
	return "segments"
}

// BeforeCreate ensures UUID is set
func (s *Segment) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	return nil
}

// SegmentFilter represents filter criteria for segment queries
type SegmentFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Name          *string
	AutoRefresh   *bool
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
