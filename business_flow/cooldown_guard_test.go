package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordExecution(store *fakeAuditStore, triggerID, customerID uint, at time.Time, success bool) {
	_ = store.Append(context.Background(), &models.TriggerExecution{
		TriggerID:  triggerID,
		CustomerID: customerID,
		ExecutedAt: at,
		Success:    success,
	})
}

func TestCooldownGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newTrigger := func() *models.Trigger {
		return &models.Trigger{
			ID:            7,
			Name:          "guarded",
			ConditionType: models.ConditionTotalSpentAbove,
			ActionType:    models.ActionSendNotification,
			IsActive:      utils.ToPtr(true),
			CooldownHours: 24,
		}
	}

	t.Run("InactiveTriggerNeverExecutes", func(t *testing.T) {
		guard := NewCooldownGuard(newFakeAuditStore())
		trigger := newTrigger()
		trigger.IsActive = utils.ToPtr(false)

		ok, err := guard.CanExecute(ctx, trigger, 1, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("GlobalExecutionCap", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger()
		trigger.IsRecurring = true
		trigger.CooldownHours = 0
		trigger.MaxExecutions = utils.ToPtr(2)

		recordExecution(store, trigger.ID, 1, now.Add(-48*time.Hour), true)
		recordExecution(store, trigger.ID, 2, now.Add(-47*time.Hour), true)

		ok, err := guard.CanExecute(ctx, trigger, 3, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("FailedExecutionsDoNotCountAgainstCaps", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger()
		trigger.IsRecurring = true
		trigger.CooldownHours = 0
		trigger.MaxExecutions = utils.ToPtr(1)

		recordExecution(store, trigger.ID, 1, now.Add(-time.Hour), false)
		recordExecution(store, trigger.ID, 2, now.Add(-time.Hour), false)

		ok, err := guard.CanExecute(ctx, trigger, 3, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("PerCustomerCapIsPermanent", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger()
		trigger.IsRecurring = true
		trigger.CooldownHours = 0
		trigger.MaxExecutionsPerCustomer = utils.ToPtr(1)

		recordExecution(store, trigger.ID, 1, now.Add(-365*24*time.Hour), true)

		// Customer 1 is capped no matter how much time passes.
		ok, err := guard.CanExecute(ctx, trigger, 1, now)
		require.NoError(t, err)
		assert.False(t, ok)

		// Customer 2 is untouched by customer 1's history.
		ok, err = guard.CanExecute(ctx, trigger, 2, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NonRecurringVacuousPass", func(t *testing.T) {
		guard := NewCooldownGuard(newFakeAuditStore())
		trigger := newTrigger() // non-recurring, no history

		ok, err := guard.CanExecute(ctx, trigger, 1, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NonRecurringGateIsTriggerWide", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger() // cooldown 24h

		// One success for customer 1 blocks every customer.
		recordExecution(store, trigger.ID, 1, now.Add(-time.Hour), true)

		for _, customerID := range []uint{1, 2, 3} {
			ok, err := guard.CanExecute(ctx, trigger, customerID, now)
			require.NoError(t, err)
			assert.False(t, ok, "customer %d", customerID)
		}

		// After the window elapses the gate opens again for everyone.
		later := now.Add(24 * time.Hour)
		ok, err := guard.CanExecute(ctx, trigger, 2, later)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RecurringGateIsPerCustomer", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger()
		trigger.IsRecurring = true

		recordExecution(store, trigger.ID, 1, now.Add(-time.Hour), true)

		// Customer 1 is inside their own cooldown.
		ok, err := guard.CanExecute(ctx, trigger, 1, now)
		require.NoError(t, err)
		assert.False(t, ok)

		// Customer 2 has no history of their own and may fire.
		ok, err = guard.CanExecute(ctx, trigger, 2, now)
		require.NoError(t, err)
		assert.True(t, ok)

		// Customer 1 recovers once their window elapses.
		ok, err = guard.CanExecute(ctx, trigger, 1, now.Add(23*time.Hour))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CooldownMinutesExtendTheWindow", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger()
		trigger.IsRecurring = true
		trigger.CooldownHours = 1
		trigger.CooldownMinutes = 30

		recordExecution(store, trigger.ID, 1, now.Add(-80*time.Minute), true)

		// 80 minutes elapsed of a 90 minute window.
		ok, err := guard.CanExecute(ctx, trigger, 1, now)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = guard.CanExecute(ctx, trigger, 1, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("FailedExecutionsDoNotStartCooldown", func(t *testing.T) {
		store := newFakeAuditStore()
		guard := NewCooldownGuard(store)
		trigger := newTrigger()

		recordExecution(store, trigger.ID, 1, now.Add(-time.Minute), false)

		ok, err := guard.CanExecute(ctx, trigger, 2, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
