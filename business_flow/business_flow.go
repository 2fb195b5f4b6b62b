// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
)

// Collaborator interfaces consumed by the engine core. The engine never
// reaches past these into the surrounding POS system; adapters over the
// repository layer and provider services implement them.

// CustomerSnapshotProvider supplies read-only customer snapshots. Pagination
// replaces streaming: the orchestrator walks the population page by page.
type CustomerSnapshotProvider interface {
	GetActiveCustomers(ctx context.Context, limit, offset int) ([]models.CustomerSnapshot, error)
	CountActiveCustomers(ctx context.Context) (int64, error)
	GetCustomer(ctx context.Context, customerID uint) (*models.CustomerSnapshot, error)
}

// LoyaltyLedgerClient grants loyalty points on the customer's ledger.
type LoyaltyLedgerClient interface {
	GrantPoints(ctx context.Context, customerID uint, points int, reason string) error
}

// WalletClient credits funds to the customer's wallet.
type WalletClient interface {
	AddFunds(ctx context.Context, customerID uint, amount float64, reason string) error
}

// MessagingClient delivers a message to a customer over the given channel.
type MessagingClient interface {
	Send(ctx context.Context, customerID uint, channel, subject, body string) error
}

// SegmentMembershipStore reads and mutates segment membership rows.
// Satisfied by repository.SegmentMembershipRepository.
type SegmentMembershipStore interface {
	ActiveMemberIDs(ctx context.Context, segmentID uint) ([]uint, error)
	IsActiveMember(ctx context.Context, segmentID, customerID uint) (bool, error)
	ActivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error
	DeactivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error
}

// ExecutionAuditStore is the append-only trigger execution log. Satisfied by
// repository.TriggerExecutionRepository.
type ExecutionAuditStore interface {
	Append(ctx context.Context, execution *models.TriggerExecution) error
	CountSince(ctx context.Context, triggerID uint, customerID *uint, since time.Time, successOnly bool) (int64, error)
	LastSuccessfulAt(ctx context.Context, triggerID uint, customerID *uint) (*time.Time, error)
}
