package models

import (
	"time"
)

// CustomerSnapshot is an immutable read model of a customer at evaluation time.
// Evaluators operate on snapshots only, never on live Customer rows, so that a
// batch sees a consistent view and the evaluation stays deterministic.
type CustomerSnapshot struct {
	CustomerID        uint    `json:"customer_id"`
	FullName          string  `json:"full_name"`
	Email             string  `json:"email"`
	Mobile            string  `json:"mobile"`
	MembershipLevelID uint    `json:"membership_level_id"`
	TotalSpent        float64 `json:"total_spent"`
	TotalVisits       int     `json:"total_visits"`
	TotalOrders       int     `json:"total_orders"`
	LoyaltyPoints     int     `json:"loyalty_points"`
	WalletBalance     float64 `json:"wallet_balance"`

	// Optional attributes; criteria depending on a nil field never match.
	DateOfBirth          *time.Time `json:"date_of_birth,omitempty"`
	MembershipExpiryDate *time.Time `json:"membership_expiry_date,omitempty"`
	LastActivityAt       *time.Time `json:"last_activity_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AverageOrderValue returns total spend divided by order count, or zero when the
// customer has no orders yet.
func (s CustomerSnapshot) AverageOrderValue() float64 {
	if s.TotalOrders <= 0 {
		return 0
	}
	return s.TotalSpent / float64(s.TotalOrders)
}

// AccountAgeDays returns whole days elapsed since the customer record was created.
func (s CustomerSnapshot) AccountAgeDays(now time.Time) int {
	if now.Before(s.CreatedAt) {
		return 0
	}
	return int(now.Sub(s.CreatedAt).Hours() / 24)
}

// SnapshotFromCustomer builds a snapshot from a customer row and its wallet balance.
func SnapshotFromCustomer(c *Customer, walletBalance float64) CustomerSnapshot {
	return CustomerSnapshot{
		CustomerID:           c.ID,
		FullName:             c.FirstName + " " + c.LastName,
		Email:                c.Email,
		Mobile:               c.Mobile,
		MembershipLevelID:    c.MembershipLevelID,
		TotalSpent:           c.TotalSpent,
		TotalVisits:          c.TotalVisits,
		TotalOrders:          c.TotalOrders,
		LoyaltyPoints:        c.LoyaltyPoints,
		WalletBalance:        walletBalance,
		DateOfBirth:          c.DateOfBirth,
		MembershipExpiryDate: c.MembershipExpiryDate,
		LastActivityAt:       c.LastActivityAt,
		CreatedAt:            c.CreatedAt,
	}
}
