package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/repository"
	"github.com/sellora/engage/utils"
)

// ActionDispatcher executes a trigger's configured action against one
// customer. Each action handler touches only the collaborator it needs and
// never panics past the dispatcher; collaborator failures become a failed
// execution record, not an error. Every dispatch, success or failure, appends
// exactly one audit row, and the trigger's cached counters move only on
// success.
type ActionDispatcher struct {
	messaging   MessagingClient
	loyalty     LoyaltyLedgerClient
	wallet      WalletClient
	memberships SegmentMembershipStore
	auditStore  ExecutionAuditStore
	triggerRepo repository.TriggerRepository

	// Outbound collaborator calls are bounded; a timeout is a failed
	// dispatch, not a retry.
	dispatchTimeout time.Duration
}

// NewActionDispatcher creates a new action dispatcher
func NewActionDispatcher(
	messaging MessagingClient,
	loyalty LoyaltyLedgerClient,
	wallet WalletClient,
	memberships SegmentMembershipStore,
	auditStore ExecutionAuditStore,
	triggerRepo repository.TriggerRepository,
	dispatchTimeout time.Duration,
) *ActionDispatcher {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 30 * time.Second
	}
	return &ActionDispatcher{
		messaging:       messaging,
		loyalty:         loyalty,
		wallet:          wallet,
		memberships:     memberships,
		auditStore:      auditStore,
		triggerRepo:     triggerRepo,
		dispatchTimeout: dispatchTimeout,
	}
}

// Dispatch runs the action for one customer and records the outcome. The
// returned error reports audit persistence failure only; action failure is
// expressed through (false, message).
func (d *ActionDispatcher) Dispatch(ctx context.Context, trigger *models.Trigger, snap models.CustomerSnapshot) (bool, string, error) {
	success, message := d.runAction(ctx, trigger, snap)

	executedAt := utils.UTCNow()
	execution := &models.TriggerExecution{
		TriggerID:     trigger.ID,
		CustomerID:    snap.CustomerID,
		ExecutedAt:    executedAt,
		Success:       success,
		ResultMessage: message,
	}
	if err := d.auditStore.Append(ctx, execution); err != nil {
		return false, message, err
	}

	if success {
		if err := d.triggerRepo.IncrementExecution(ctx, trigger.ID, executedAt); err != nil {
			// The audit row is already written and authoritative; a stale
			// counter is recoverable via RecalculateCounters.
			return true, message, err
		}
	}

	return success, message, nil
}

// runAction executes the handler for the trigger's action type with a bounded
// timeout and panic isolation.
func (d *ActionDispatcher) runAction(ctx context.Context, trigger *models.Trigger, snap models.CustomerSnapshot) (success bool, message string) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			message = fmt.Sprintf("action handler panicked: %v", r)
		}
	}()

	actionCtx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	params := trigger.ActionParams

	switch trigger.ActionType {
	case models.ActionSendNotification:
		return d.sendNotification(actionCtx, snap.CustomerID, params)
	case models.ActionAddToSegment:
		return d.addToSegment(actionCtx, snap.CustomerID, params)
	case models.ActionGrantLoyaltyPoints:
		return d.grantLoyaltyPoints(actionCtx, snap.CustomerID, trigger, params)
	case models.ActionApplyDiscount:
		return d.applyDiscount(actionCtx, snap.CustomerID, params)
	case models.ActionAddWalletFunds:
		return d.addWalletFunds(actionCtx, snap.CustomerID, trigger, params)
	case models.ActionSendPersonalizedOffer:
		return d.sendPersonalizedOffer(actionCtx, snap.CustomerID, params)
	default:
		return false, fmt.Sprintf("unknown action type: %s", trigger.ActionType)
	}
}

func (d *ActionDispatcher) sendNotification(ctx context.Context, customerID uint, params models.TriggerActionParams) (bool, string) {
	channel := params.Channel
	if channel == "" {
		channel = "sms"
	}
	if err := d.messaging.Send(ctx, customerID, channel, params.Subject, params.Message); err != nil {
		return false, fmt.Sprintf("notification failed: %v", err)
	}
	return true, fmt.Sprintf("notification sent via %s", channel)
}

func (d *ActionDispatcher) addToSegment(ctx context.Context, customerID uint, params models.TriggerActionParams) (bool, string) {
	if params.SegmentID == 0 {
		return false, "segment id not configured"
	}

	active, err := d.memberships.IsActiveMember(ctx, params.SegmentID, customerID)
	if err != nil {
		return false, fmt.Sprintf("membership lookup failed: %v", err)
	}
	if active {
		return true, fmt.Sprintf("already an active member of segment %d", params.SegmentID)
	}

	if err := d.memberships.ActivateBatch(ctx, params.SegmentID, []uint{customerID}, utils.UTCNow()); err != nil {
		return false, fmt.Sprintf("segment activation failed: %v", err)
	}
	return true, fmt.Sprintf("added to segment %d", params.SegmentID)
}

func (d *ActionDispatcher) grantLoyaltyPoints(ctx context.Context, customerID uint, trigger *models.Trigger, params models.TriggerActionParams) (bool, string) {
	if params.Points <= 0 {
		return false, "points not configured"
	}

	reason := params.Reason
	if reason == "" {
		reason = fmt.Sprintf("trigger %s", trigger.Name)
	}
	if err := d.loyalty.GrantPoints(ctx, customerID, params.Points, reason); err != nil {
		return false, fmt.Sprintf("loyalty grant failed: %v", err)
	}
	return true, fmt.Sprintf("granted %d loyalty points", params.Points)
}

func (d *ActionDispatcher) applyDiscount(ctx context.Context, customerID uint, params models.TriggerActionParams) (bool, string) {
	if params.DiscountPercent <= 0 {
		return false, "discount percent not configured"
	}

	channel := params.Channel
	if channel == "" {
		channel = "sms"
	}
	body := params.Message
	if body == "" {
		body = fmt.Sprintf("You have received a %.0f%% discount", params.DiscountPercent)
	}
	if params.OfferCode != "" {
		body = fmt.Sprintf("%s (code: %s)", body, params.OfferCode)
	}
	if err := d.messaging.Send(ctx, customerID, channel, params.Subject, body); err != nil {
		return false, fmt.Sprintf("discount notification failed: %v", err)
	}
	return true, fmt.Sprintf("discount of %.0f%% communicated via %s", params.DiscountPercent, channel)
}

func (d *ActionDispatcher) addWalletFunds(ctx context.Context, customerID uint, trigger *models.Trigger, params models.TriggerActionParams) (bool, string) {
	if params.Amount <= 0 {
		return false, "amount not configured"
	}

	reason := params.Reason
	if reason == "" {
		reason = fmt.Sprintf("trigger %s", trigger.Name)
	}
	if err := d.wallet.AddFunds(ctx, customerID, params.Amount, reason); err != nil {
		return false, fmt.Sprintf("wallet credit failed: %v", err)
	}
	return true, fmt.Sprintf("credited %.2f to wallet", params.Amount)
}

func (d *ActionDispatcher) sendPersonalizedOffer(ctx context.Context, customerID uint, params models.TriggerActionParams) (bool, string) {
	channel := params.Channel
	if channel == "" {
		channel = "sms"
	}
	body := params.Message
	if params.OfferCode != "" {
		body = fmt.Sprintf("%s (code: %s)", body, params.OfferCode)
	}
	if err := d.messaging.Send(ctx, customerID, channel, params.Subject, body); err != nil {
		return false, fmt.Sprintf("offer delivery failed: %v", err)
	}
	return true, fmt.Sprintf("personalized offer sent via %s", channel)
}
