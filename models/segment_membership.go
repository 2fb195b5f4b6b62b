package models

import (
	"time"
)

// SegmentMembership associates a customer with a segment. Rows are never
// hard-deleted: leaving a segment flips IsActive and stamps DeactivatedAt so
// historical membership stays auditable. At most one row per
// (segment, customer) pair is active at a time.
type SegmentMembership struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	SegmentID  uint `gorm:"not null;index:idx_segment_memberships_segment_id;uniqueIndex:uk_segment_memberships_pair,where:is_active" json:"segment_id"`
	CustomerID uint `gorm:"not null;index:idx_segment_memberships_customer_id;uniqueIndex:uk_segment_memberships_pair,where:is_active" json:"customer_id"`

	IsActive      bool       `gorm:"not null;default:true;index:idx_segment_memberships_is_active" json:"is_active"`
	AddedAt       time.Time  `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"added_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`

	Segment  Segment  `gorm:"foreignKey:SegmentID;references:ID" json:"-"`
	Customer Customer `gorm:"foreignKey:CustomerID;references:ID" json:"-"`
}

func (SegmentMembership) TableName() string {
	return "segment_memberships"
}

// SegmentMembershipFilter represents filter criteria for membership queries
type SegmentMembershipFilter struct {
	ID         *uint
	SegmentID  *uint
	CustomerID *uint
	IsActive   *bool
	AddedAfter *time.Time
}
