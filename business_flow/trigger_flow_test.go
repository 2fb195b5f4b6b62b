package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellora/engage/app/dto"
	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerHarness struct {
	triggerRepo  *fakeTriggerRepo
	segmentRepo  *fakeSegmentRepo
	customerRepo *fakeCustomerRepo
	memberships  *fakeMembershipStore
	snaps        *fakeSnapshotProvider
	audit        *fakeAuditStore
	loyalty      *fakeLoyalty
	messaging    *fakeMessaging
	wallet       *fakeWallet
	flow         TriggerFlow
}

func newTriggerHarness(workers int, triggers []*models.Trigger, snapshots []models.CustomerSnapshot) *triggerHarness {
	h := &triggerHarness{
		triggerRepo:  newFakeTriggerRepo(triggers...),
		segmentRepo:  newFakeSegmentRepo(),
		customerRepo: newFakeCustomerRepo(),
		memberships:  newFakeMembershipStore(),
		snaps:        newFakeSnapshotProvider(snapshots...),
		audit:        newFakeAuditStore(),
		loyalty:      newFakeLoyalty(),
		messaging:    &fakeMessaging{},
		wallet:       newFakeWallet(),
	}
	guard := NewCooldownGuard(h.audit)
	dispatcher := NewActionDispatcher(
		h.messaging, h.loyalty, h.wallet, h.memberships, h.audit, h.triggerRepo,
		5*time.Second,
	)
	h.flow = NewTriggerFlow(
		h.triggerRepo, h.segmentRepo, h.customerRepo, nil, h.memberships, h.snaps,
		guard, dispatcher, nil, workers, 100, time.Minute,
	)
	return h
}

func lowPointsTrigger() *models.Trigger {
	return &models.Trigger{
		ID:             1,
		UUID:           uuid.New(),
		Name:           "low points grant",
		ConditionType:  models.ConditionLoyaltyPointsBelow,
		ConditionValue: 50,
		ActionType:     models.ActionGrantLoyaltyPoints,
		ActionParams:   models.TriggerActionParams{Points: 20},
		IsActive:       utils.ToPtr(true),
		IsRecurring:    false,
		CooldownHours:  24,
	}
}

func snapshotWithPoints(customerID uint, points int) models.CustomerSnapshot {
	snap := testSnapshot()
	snap.CustomerID = customerID
	snap.LoyaltyPoints = points
	return snap
}

func TestTriggerFlowRunBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("NonRecurringFiresOnceAcrossPopulation", func(t *testing.T) {
		trigger := lowPointsTrigger()
		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{
			snapshotWithPoints(1, 30),
			snapshotWithPoints(2, 40),
			snapshotWithPoints(3, 500),
		})

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.True(t, resp.Started)
		assert.Equal(t, 1, resp.TriggersEvaluated)
		assert.Equal(t, 2, resp.CustomersMatched)

		// The first qualifying customer establishes the trigger-wide
		// cooldown baseline; the second is blocked in the same pass.
		assert.Equal(t, 1, resp.Dispatched)
		assert.Equal(t, 1, resp.Succeeded)
		assert.Equal(t, 20, h.loyalty.granted[1])
		assert.Equal(t, 0, h.loyalty.granted[2])

		rows := h.audit.rows()
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Success)
	})

	t.Run("NonRecurringSerializedAcrossWorkers", func(t *testing.T) {
		trigger := lowPointsTrigger()
		snapshots := make([]models.CustomerSnapshot, 0, 8)
		for id := uint(1); id <= 8; id++ {
			snapshots = append(snapshots, snapshotWithPoints(id, 30))
		}
		h := newTriggerHarness(8, []*models.Trigger{trigger}, snapshots)

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, resp.CustomersMatched)

		// All eight evaluations race for the same trigger-wide gate; only
		// the worker that wins the trigger lock may dispatch, the rest must
		// see its execution record and back off.
		assert.Equal(t, 1, resp.Dispatched)
		assert.Equal(t, 1, resp.Succeeded)
		require.Len(t, h.audit.rows(), 1)

		totalGranted := 0
		for _, points := range h.loyalty.granted {
			totalGranted += points
		}
		assert.Equal(t, 20, totalGranted)
	})

	t.Run("GlobalCapHeldUnderParallelWorkers", func(t *testing.T) {
		trigger := lowPointsTrigger()
		trigger.IsRecurring = true
		trigger.CooldownHours = 0
		trigger.MaxExecutions = utils.ToPtr(2)

		snapshots := make([]models.CustomerSnapshot, 0, 8)
		for id := uint(1); id <= 8; id++ {
			snapshots = append(snapshots, snapshotWithPoints(id, 30))
		}
		h := newTriggerHarness(8, []*models.Trigger{trigger}, snapshots)

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, resp.CustomersMatched)
		assert.Equal(t, 2, resp.Dispatched)
		assert.Equal(t, 2, resp.Succeeded)
		assert.Len(t, h.audit.rows(), 2)
	})

	t.Run("BatchIsIdempotent", func(t *testing.T) {
		trigger := lowPointsTrigger()
		trigger.IsRecurring = true
		h := newTriggerHarness(4, []*models.Trigger{trigger}, []models.CustomerSnapshot{
			snapshotWithPoints(1, 30),
			snapshotWithPoints(2, 40),
		})

		first, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, first.Dispatched)
		assert.Equal(t, 2, first.Succeeded)

		// An immediate re-run dispatches to nobody; the cooldown now blocks
		// every customer the first pass reached.
		second, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Dispatched)
		assert.Len(t, h.audit.rows(), 2)
	})

	t.Run("PerCustomerCapScenario", func(t *testing.T) {
		trigger := lowPointsTrigger()
		trigger.IsRecurring = true
		trigger.CooldownHours = 0
		trigger.MaxExecutionsPerCustomer = utils.ToPtr(1)

		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{
			snapshotWithPoints(1, 30), // customer X
		})

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, resp.Succeeded)

		// X stays eligible by condition but is capped forever; Y, first
		// time eligible, still dispatches.
		h.snaps.snaps[2] = snapshotWithPoints(2, 40)

		resp, err = h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Dispatched)
		assert.Equal(t, 20, h.loyalty.granted[1])
		assert.Equal(t, 20, h.loyalty.granted[2])
	})

	t.Run("TargetSegmentRestrictsCandidates", func(t *testing.T) {
		segment := highSpenderSegment()
		trigger := lowPointsTrigger()
		trigger.IsRecurring = true
		trigger.TargetSegmentID = utils.ToPtr(segment.ID)

		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{
			snapshotWithPoints(1, 30),
			snapshotWithPoints(2, 30),
		})
		h.segmentRepo.segments[segment.ID] = segment
		h.memberships.setActive(segment.ID, 1)

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Dispatched)
		assert.Equal(t, 20, h.loyalty.granted[1])
		assert.Equal(t, 0, h.loyalty.granted[2])
	})

	t.Run("MissingTargetSegmentSkipsTrigger", func(t *testing.T) {
		trigger := lowPointsTrigger()
		trigger.TargetSegmentID = utils.ToPtr(uint(99))

		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{
			snapshotWithPoints(1, 30),
		})

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.TriggersEvaluated)
		assert.Equal(t, 1, resp.TriggersSkipped)
		assert.Equal(t, 0, resp.Dispatched)
		assert.Empty(t, h.audit.rows())
	})

	t.Run("FailedDispatchDoesNotAbortBatch", func(t *testing.T) {
		grant := lowPointsTrigger()
		grant.IsRecurring = true

		notify := &models.Trigger{
			ID:             2,
			UUID:           uuid.New(),
			Name:           "notify",
			ConditionType:  models.ConditionLoyaltyPointsBelow,
			ConditionValue: 50,
			ActionType:     models.ActionSendNotification,
			ActionParams:   models.TriggerActionParams{Message: "hello"},
			IsActive:       utils.ToPtr(true),
			IsRecurring:    true,
			CooldownHours:  1,
		}

		h := newTriggerHarness(1, []*models.Trigger{grant, notify}, []models.CustomerSnapshot{
			snapshotWithPoints(1, 30),
		})
		h.messaging.err = assert.AnError

		resp, err := h.flow.RunTriggerBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Dispatched)
		assert.Equal(t, 1, resp.Succeeded)
		assert.Equal(t, 1, resp.Failed)

		// Both dispatches are on the audit trail, the failure included.
		assert.Len(t, h.audit.rows(), 2)
	})

	t.Run("OverlappingRunIsSkipped", func(t *testing.T) {
		trigger := lowPointsTrigger()
		h := newTriggerHarness(1, []*models.Trigger{trigger}, nil)

		impl := h.flow.(*TriggerFlowImpl)
		impl.batchMu.Lock()
		resp, err := h.flow.RunTriggerBatch(ctx)
		impl.batchMu.Unlock()

		require.NoError(t, err)
		assert.False(t, resp.Started)
		assert.NotEmpty(t, resp.SkippedReason)
	})
}

func TestTriggerFlowEvaluateCustomerNow(t *testing.T) {
	ctx := context.Background()

	t.Run("DispatchesMatchingTriggers", func(t *testing.T) {
		trigger := lowPointsTrigger()
		snap := snapshotWithPoints(1, 30)
		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{snap})

		customer := &models.Customer{ID: 1, UUID: uuid.New()}
		h.customerRepo.customers[customer.UUID.String()] = customer

		resp, err := h.flow.EvaluateCustomerNow(ctx, &dto.EvaluateCustomerRequest{
			CustomerUUID: customer.UUID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Dispatched)
		require.Len(t, resp.Outcomes, 1)
		assert.True(t, resp.Outcomes[0].Matched)
		assert.True(t, resp.Outcomes[0].Success)
		assert.Equal(t, 20, h.loyalty.granted[1])
	})

	t.Run("NonMatchingConditionDispatchesNothing", func(t *testing.T) {
		trigger := lowPointsTrigger()
		snap := snapshotWithPoints(1, 500)
		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{snap})

		customer := &models.Customer{ID: 1, UUID: uuid.New()}
		h.customerRepo.customers[customer.UUID.String()] = customer

		resp, err := h.flow.EvaluateCustomerNow(ctx, &dto.EvaluateCustomerRequest{
			CustomerUUID: customer.UUID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Dispatched)
		require.Len(t, resp.Outcomes, 1)
		assert.False(t, resp.Outcomes[0].Matched)
		assert.Empty(t, h.audit.rows())
	})

	t.Run("MembershipLookupFailureIsSurfaced", func(t *testing.T) {
		trigger := lowPointsTrigger()
		trigger.TargetSegmentID = utils.ToPtr(uint(7))
		snap := snapshotWithPoints(1, 30)
		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{snap})
		h.memberships.lookupErr = errors.New("connection reset")

		customer := &models.Customer{ID: 1, UUID: uuid.New()}
		h.customerRepo.customers[customer.UUID.String()] = customer

		resp, err := h.flow.EvaluateCustomerNow(ctx, &dto.EvaluateCustomerRequest{
			CustomerUUID: customer.UUID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Dispatched)
		require.Len(t, resp.Outcomes, 1)

		// A broken lookup must not read as a quiet out-of-scope miss.
		assert.False(t, resp.Outcomes[0].Matched)
		assert.Contains(t, resp.Outcomes[0].Message, "segment membership check failed")
		assert.Empty(t, h.audit.rows())
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		h := newTriggerHarness(1, nil, nil)
		_, err := h.flow.EvaluateCustomerNow(ctx, &dto.EvaluateCustomerRequest{
			CustomerUUID: uuid.New().String(),
		})
		assert.True(t, IsCustomerNotFound(err))
	})
}

func TestTriggerFlowIsEligible(t *testing.T) {
	ctx := context.Background()

	t.Run("DryRunWritesNoAudit", func(t *testing.T) {
		trigger := lowPointsTrigger()
		snap := snapshotWithPoints(1, 30)
		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{snap})

		resp, err := h.flow.IsEligible(ctx, 1, trigger.UUID.String())
		require.NoError(t, err)
		assert.True(t, resp.ConditionMatched)
		assert.True(t, resp.CooldownPassed)
		assert.True(t, resp.Eligible)

		// No dispatch, no audit row, no side effects.
		assert.Empty(t, h.audit.rows())
		assert.Equal(t, 0, h.loyalty.granted[1])
	})

	t.Run("CooldownBlocksEligibility", func(t *testing.T) {
		trigger := lowPointsTrigger()
		snap := snapshotWithPoints(1, 30)
		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{snap})

		recordExecution(h.audit, trigger.ID, 2, utils.UTCNow(), true)

		resp, err := h.flow.IsEligible(ctx, 1, trigger.UUID.String())
		require.NoError(t, err)
		assert.True(t, resp.ConditionMatched)
		assert.False(t, resp.CooldownPassed)
		assert.False(t, resp.Eligible)
	})

	t.Run("OutsideTargetSegment", func(t *testing.T) {
		segment := highSpenderSegment()
		trigger := lowPointsTrigger()
		trigger.TargetSegmentID = utils.ToPtr(segment.ID)
		snap := snapshotWithPoints(1, 30)

		h := newTriggerHarness(1, []*models.Trigger{trigger}, []models.CustomerSnapshot{snap})
		h.segmentRepo.segments[segment.ID] = segment

		resp, err := h.flow.IsEligible(ctx, 1, trigger.UUID.String())
		require.NoError(t, err)
		assert.False(t, resp.Eligible)
	})

	t.Run("UnknownTrigger", func(t *testing.T) {
		h := newTriggerHarness(1, nil, nil)
		_, err := h.flow.IsEligible(ctx, 1, uuid.New().String())
		assert.True(t, IsTriggerNotFound(err))
	})
}
