package businessflow

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
)

// CooldownGuard decides whether a trigger may fire for a customer. It reads
// only the execution audit log, never the cached counters on Trigger, so the
// decision survives counter corruption.
//
// Non-recurring triggers are gated trigger-wide: one success anywhere blocks
// every customer until the cooldown window elapses. Recurring triggers are
// gated per customer against that customer's own last success. The asymmetry
// is deliberate: a one-shot campaign is throttled globally, a recurring nudge
// per person.
type CooldownGuard struct {
	auditStore ExecutionAuditStore
}

// NewCooldownGuard creates a new cooldown guard over the execution audit log
func NewCooldownGuard(auditStore ExecutionAuditStore) *CooldownGuard {
	return &CooldownGuard{auditStore: auditStore}
}

// CanExecute applies the governance rules in order; the first failing rule
// decides. An error means the audit log could not be read, not a verdict.
func (g *CooldownGuard) CanExecute(ctx context.Context, trigger *models.Trigger, customerID uint, now time.Time) (bool, error) {
	// Rule 1: trigger must be active.
	if !utils.IsTrue(trigger.IsActive) {
		return false, nil
	}

	// Rule 2: global successful-execution cap.
	if trigger.MaxExecutions != nil {
		total, err := g.auditStore.CountSince(ctx, trigger.ID, nil, time.Time{}, true)
		if err != nil {
			return false, err
		}
		if total >= int64(*trigger.MaxExecutions) {
			return false, nil
		}
	}

	// Rule 3: per-customer successful-execution cap.
	if trigger.MaxExecutionsPerCustomer != nil {
		count, err := g.auditStore.CountSince(ctx, trigger.ID, &customerID, time.Time{}, true)
		if err != nil {
			return false, err
		}
		if count >= int64(*trigger.MaxExecutionsPerCustomer) {
			return false, nil
		}
	}

	if !trigger.IsRecurring {
		// Rule 4: trigger-wide gate. No prior success passes vacuously; the
		// first success establishes the baseline for the whole population.
		last, err := g.auditStore.LastSuccessfulAt(ctx, trigger.ID, nil)
		if err != nil {
			return false, err
		}
		if last != nil && now.Sub(*last) < trigger.CooldownWindow() {
			return false, nil
		}
		return true, nil
	}

	// Rule 5: per-customer gate against the customer's own last success.
	last, err := g.auditStore.LastSuccessfulAt(ctx, trigger.ID, &customerID)
	if err != nil {
		return false, err
	}
	if last != nil && now.Sub(*last) < trigger.CooldownWindow() {
		return false, nil
	}
	return true, nil
}
