// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CustomerRepository defines read operations for customers. Customer CRUD
// belongs to the surrounding POS system; the engine only reads.
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	ListActiveCustomers(ctx context.Context, limit, offset int) ([]*models.Customer, error)
	CountActiveCustomers(ctx context.Context) (int64, error)
	AddLoyaltyPoints(ctx context.Context, customerID uint, points int) error
}

// WalletRepository defines operations for wallets
type WalletRepository interface {
	Repository[models.Wallet, models.WalletFilter]
	ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error)
	// Credit appends a ledger row and updates the cached balance atomically.
	Credit(ctx context.Context, customerID uint, amount float64, reason string) (*models.WalletTransaction, error)
}

// SegmentRepository defines operations for segments
type SegmentRepository interface {
	Repository[models.Segment, models.SegmentFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Segment, error)
	ListActive(ctx context.Context) ([]*models.Segment, error)
	ListAutoRefresh(ctx context.Context) ([]*models.Segment, error)
	UpdateCriteria(ctx context.Context, id uint, criteria models.SegmentCriteria) error
	// UpdateCalculation refreshes the cached member count and calculation timestamp.
	UpdateCalculation(ctx context.Context, id uint, customerCount int, calculatedAt time.Time) error
}

// SegmentMembershipRepository defines operations for segment memberships
type SegmentMembershipRepository interface {
	Repository[models.SegmentMembership, models.SegmentMembershipFilter]
	ActiveMemberIDs(ctx context.Context, segmentID uint) ([]uint, error)
	IsActiveMember(ctx context.Context, segmentID, customerID uint) (bool, error)
	// ActivateBatch appends active rows for the given customers. Previously
	// deactivated rows stay in place; a new row records the re-entry.
	ActivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error
	// DeactivateBatch flips the active rows for the given customers.
	DeactivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error
}

// TriggerRepository defines operations for triggers
type TriggerRepository interface {
	Repository[models.Trigger, models.TriggerFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Trigger, error)
	ListActive(ctx context.Context) ([]*models.Trigger, error)
	// IncrementExecution bumps the cached counters after a successful dispatch.
	IncrementExecution(ctx context.Context, id uint, executedAt time.Time) error
	// RecalculateCounters replays the execution log into the cached counters.
	RecalculateCounters(ctx context.Context, id uint) error
	Deactivate(ctx context.Context, id uint) error
	// DeleteIfNeverExecuted hard-deletes a trigger only when it has no
	// execution history; returns whether a row was removed.
	DeleteIfNeverExecuted(ctx context.Context, id uint) (bool, error)
}

// TriggerExecutionRepository defines operations for the execution audit log
type TriggerExecutionRepository interface {
	Repository[models.TriggerExecution, models.TriggerExecutionFilter]
	Append(ctx context.Context, execution *models.TriggerExecution) error
	// CountSince counts executions for a trigger, optionally scoped to one
	// customer, at or after the given time. Zero time counts all.
	CountSince(ctx context.Context, triggerID uint, customerID *uint, since time.Time, successOnly bool) (int64, error)
	// LastSuccessfulAt returns the most recent successful execution time for
	// a trigger, optionally scoped to one customer; nil when none exists.
	LastSuccessfulAt(ctx context.Context, triggerID uint, customerID *uint) (*time.Time, error)
	ListByTrigger(ctx context.Context, triggerID uint, limit, offset int) ([]*models.TriggerExecution, error)
}
