// Package businessflow contains the core business logic and use cases for trigger workflows
package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sellora/engage/app/dto"
	"github.com/sellora/engage/models"
	"github.com/sellora/engage/repository"
	"github.com/sellora/engage/utils"
)

const batchLeaseKey = "engage:trigger_batch:lease"

// TriggerFlow handles the trigger evaluation business logic
type TriggerFlow interface {
	// RunTriggerBatch evaluates every active trigger against the customer
	// population. Only one run may be in flight at a time; an overlapping
	// call is reported as skipped, not an error.
	RunTriggerBatch(ctx context.Context) (*dto.RunTriggerBatchResponse, error)
	// EvaluateCustomerNow runs a synchronous single-customer pass over all
	// active triggers, used by order-completion hooks.
	EvaluateCustomerNow(ctx context.Context, req *dto.EvaluateCustomerRequest) (*dto.EvaluateCustomerResponse, error)
	// IsEligible answers condition and cooldown for one pair without
	// dispatching and without writing any audit row.
	IsEligible(ctx context.Context, customerID uint, triggerUUID string) (*dto.EligibilityResponse, error)
	GetTrigger(ctx context.Context, triggerUUID string) (*dto.GetTriggerResponse, error)
	ListTriggers(ctx context.Context, page, limit int) (*dto.ListTriggersResponse, error)
	// ListExecutions pages the audit log for one trigger, newest first.
	ListExecutions(ctx context.Context, triggerUUID string, page, limit int) (*dto.ListExecutionsResponse, error)
}

// TriggerFlowImpl implements the trigger business flow
type TriggerFlowImpl struct {
	triggerRepo   repository.TriggerRepository
	segmentRepo   repository.SegmentRepository
	customerRepo  repository.CustomerRepository
	executionRepo repository.TriggerExecutionRepository
	memberships   SegmentMembershipStore
	snapshots     CustomerSnapshotProvider
	guard         *CooldownGuard
	dispatcher    *ActionDispatcher

	// Lease for batch exclusivity. Redis gates overlapping runs across
	// processes; the local mutex gates them within one process and serves
	// alone when no redis client is configured.
	rc      *redis.Client
	batchMu sync.Mutex

	pairLocks *keyedMutex

	workers  int
	pageSize int
	leaseTTL time.Duration
}

// NewTriggerFlow creates a new trigger flow instance
func NewTriggerFlow(
	triggerRepo repository.TriggerRepository,
	segmentRepo repository.SegmentRepository,
	customerRepo repository.CustomerRepository,
	executionRepo repository.TriggerExecutionRepository,
	memberships SegmentMembershipStore,
	snapshots CustomerSnapshotProvider,
	guard *CooldownGuard,
	dispatcher *ActionDispatcher,
	rc *redis.Client,
	workers, pageSize int,
	leaseTTL time.Duration,
) TriggerFlow {
	if workers <= 0 {
		workers = 4
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Minute
	}
	return &TriggerFlowImpl{
		triggerRepo:   triggerRepo,
		segmentRepo:   segmentRepo,
		customerRepo:  customerRepo,
		executionRepo: executionRepo,
		memberships:   memberships,
		snapshots:     snapshots,
		guard:         guard,
		dispatcher:    dispatcher,
		rc:            rc,
		pairLocks:     newKeyedMutex(),
		workers:       workers,
		pageSize:      pageSize,
		leaseTTL:      leaseTTL,
	}
}

// batchCounters accumulates run totals across workers
type batchCounters struct {
	mu         sync.Mutex
	matched    int
	dispatched int
	succeeded  int
	failed     int
}

// RunTriggerBatch acquires the run lease and walks active triggers over the
// population. Per-customer failures are isolated: a bad record is counted and
// the batch moves on.
func (s *TriggerFlowImpl) RunTriggerBatch(ctx context.Context) (*dto.RunTriggerBatchResponse, error) {
	startedAt := utils.UTCNow()

	release, acquired, err := s.acquireLease(ctx)
	if err != nil {
		return nil, NewBusinessError("BATCH_LEASE_FAILED", "Failed to acquire batch lease", err)
	}
	if !acquired {
		return &dto.RunTriggerBatchResponse{
			Started:       false,
			SkippedReason: ErrBatchAlreadyRunning.Error(),
			StartedAt:     startedAt,
			FinishedAt:    utils.UTCNow(),
		}, nil
	}
	defer release()

	triggers, err := s.triggerRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_LIST_FAILED", "Failed to list triggers", err)
	}

	resp := &dto.RunTriggerBatchResponse{Started: true, StartedAt: startedAt}
	counters := &batchCounters{}
	now := utils.UTCNow()

	for _, trigger := range triggers {
		if ctx.Err() != nil {
			break
		}

		processed, err := s.runTrigger(ctx, trigger, now, counters)
		if err != nil {
			// Misconfigured trigger: empty customer set, skip and continue.
			resp.TriggersSkipped++
			continue
		}
		if processed {
			resp.TriggersEvaluated++
		}
	}

	counters.mu.Lock()
	resp.CustomersMatched = counters.matched
	resp.Dispatched = counters.dispatched
	resp.Succeeded = counters.succeeded
	resp.Failed = counters.failed
	counters.mu.Unlock()

	resp.FinishedAt = utils.UTCNow()
	return resp, nil
}

// runTrigger fans the trigger's candidate customers out to a bounded worker
// pool. Cancellation is cooperative between customers, never mid-customer.
func (s *TriggerFlowImpl) runTrigger(ctx context.Context, trigger *models.Trigger, now time.Time, counters *batchCounters) (bool, error) {
	candidates, err := s.candidateSnapshots(ctx, trigger)
	if err != nil {
		return false, err
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, snap := range candidates {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(snap models.CustomerSnapshot) {
			defer wg.Done()
			defer func() { <-sem }()
			s.processCustomer(ctx, trigger, snap, now, counters)
		}(snap)
	}
	wg.Wait()

	return true, nil
}

// processCustomer evaluates one (trigger, customer) pair and dispatches when
// eligible. The execution lock closes the window where two concurrent
// evaluations both pass the cooldown check before either writes its
// execution record.
func (s *TriggerFlowImpl) processCustomer(ctx context.Context, trigger *models.Trigger, snap models.CustomerSnapshot, now time.Time, counters *batchCounters) {
	if !EvaluateCondition(snap, trigger, now) {
		return
	}

	counters.mu.Lock()
	counters.matched++
	counters.mu.Unlock()

	key := executionLockKey(trigger, snap.CustomerID)
	s.pairLocks.Lock(key)
	defer s.pairLocks.Unlock(key)

	ok, err := s.guard.CanExecute(ctx, trigger, snap.CustomerID, now)
	if err != nil {
		counters.mu.Lock()
		counters.failed++
		counters.mu.Unlock()
		return
	}
	if !ok {
		return
	}

	success, _, err := s.dispatcher.Dispatch(ctx, trigger, snap)

	counters.mu.Lock()
	counters.dispatched++
	if success && err == nil {
		counters.succeeded++
	} else {
		counters.failed++
	}
	counters.mu.Unlock()
}

// candidateSnapshots resolves the customer set a trigger is evaluated
// against: the active members of its target segment when one is set,
// otherwise the whole active population.
func (s *TriggerFlowImpl) candidateSnapshots(ctx context.Context, trigger *models.Trigger) ([]models.CustomerSnapshot, error) {
	if trigger.TargetSegmentID != nil {
		segment, err := s.segmentRepo.ByID(ctx, *trigger.TargetSegmentID)
		if err != nil {
			return nil, err
		}
		if segment == nil {
			// Dangling segment reference: the customer set is empty and the
			// trigger is skipped.
			return nil, fmt.Errorf("trigger %s references missing segment %d: %w", trigger.UUID, *trigger.TargetSegmentID, ErrSegmentNotFound)
		}

		memberIDs, err := s.memberships.ActiveMemberIDs(ctx, segment.ID)
		if err != nil {
			return nil, err
		}

		snaps := make([]models.CustomerSnapshot, 0, len(memberIDs))
		for _, customerID := range memberIDs {
			snap, err := s.snapshots.GetCustomer(ctx, customerID)
			if err != nil {
				return nil, err
			}
			if snap != nil {
				snaps = append(snaps, *snap)
			}
		}
		return snaps, nil
	}

	var snaps []models.CustomerSnapshot
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.snapshots.GetActiveCustomers(ctx, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, page...)
		if len(page) < s.pageSize {
			return snaps, nil
		}
		offset += s.pageSize
	}
}

// EvaluateCustomerNow runs all active triggers against one customer
func (s *TriggerFlowImpl) EvaluateCustomerNow(ctx context.Context, req *dto.EvaluateCustomerRequest) (*dto.EvaluateCustomerResponse, error) {
	customer, err := s.customerRepo.ByUUID(ctx, req.CustomerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	snap, err := s.snapshots.GetCustomer(ctx, customer.ID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_SNAPSHOT_FAILED", "Failed to build customer snapshot", err)
	}
	if snap == nil {
		return nil, NewBusinessError("CUSTOMER_INACTIVE", "Customer is inactive", ErrAccountInactive)
	}

	triggers, err := s.triggerRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_LIST_FAILED", "Failed to list triggers", err)
	}

	now := utils.UTCNow()
	resp := &dto.EvaluateCustomerResponse{CustomerID: snap.CustomerID}

	for _, trigger := range triggers {
		if ctx.Err() != nil {
			break
		}

		outcome := dto.TriggerOutcome{
			TriggerUUID: trigger.UUID.String(),
			TriggerName: trigger.Name,
		}

		inScope, err := s.inTargetSegment(ctx, trigger, snap.CustomerID)
		if err != nil {
			// A failed lookup is not a clean miss; surface it on the outcome.
			outcome.Message = fmt.Sprintf("segment membership check failed: %v", err)
			resp.Outcomes = append(resp.Outcomes, outcome)
			continue
		}
		if !inScope {
			resp.Outcomes = append(resp.Outcomes, outcome)
			continue
		}

		if !EvaluateCondition(*snap, trigger, now) {
			resp.Outcomes = append(resp.Outcomes, outcome)
			continue
		}
		outcome.Matched = true

		key := executionLockKey(trigger, snap.CustomerID)
		s.pairLocks.Lock(key)
		ok, err := s.guard.CanExecute(ctx, trigger, snap.CustomerID, now)
		if err == nil && ok {
			success, message, dispatchErr := s.dispatcher.Dispatch(ctx, trigger, *snap)
			outcome.Dispatched = true
			outcome.Success = success && dispatchErr == nil
			outcome.Message = message
			resp.Dispatched++
		}
		s.pairLocks.Unlock(key)

		resp.Outcomes = append(resp.Outcomes, outcome)
	}

	return resp, nil
}

// IsEligible is a dry run: condition plus cooldown, no dispatch, no audit row
func (s *TriggerFlowImpl) IsEligible(ctx context.Context, customerID uint, triggerUUID string) (*dto.EligibilityResponse, error) {
	trigger, err := s.triggerRepo.ByUUID(ctx, triggerUUID)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_LOOKUP_FAILED", "Failed to lookup trigger", err)
	}
	if trigger == nil {
		return nil, NewBusinessError("TRIGGER_NOT_FOUND", "Trigger not found", ErrTriggerNotFound)
	}

	snap, err := s.snapshots.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_SNAPSHOT_FAILED", "Failed to build customer snapshot", err)
	}
	if snap == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	now := utils.UTCNow()
	resp := &dto.EligibilityResponse{
		CustomerID:  customerID,
		TriggerUUID: trigger.UUID.String(),
	}

	inScope, err := s.inTargetSegment(ctx, trigger, customerID)
	if err != nil {
		return nil, NewBusinessError("MEMBERSHIP_LOOKUP_FAILED", "Failed to check segment membership", err)
	}
	if !inScope {
		return resp, nil
	}

	resp.ConditionMatched = EvaluateCondition(*snap, trigger, now)
	if !resp.ConditionMatched {
		return resp, nil
	}

	ok, err := s.guard.CanExecute(ctx, trigger, customerID, now)
	if err != nil {
		return nil, NewBusinessError("COOLDOWN_CHECK_FAILED", "Failed to check cooldown", err)
	}
	resp.CooldownPassed = ok
	resp.Eligible = resp.ConditionMatched && resp.CooldownPassed

	return resp, nil
}

// GetTrigger returns one trigger by UUID
func (s *TriggerFlowImpl) GetTrigger(ctx context.Context, triggerUUID string) (*dto.GetTriggerResponse, error) {
	if triggerUUID == "" {
		return nil, NewBusinessError("TRIGGER_UUID_REQUIRED", "Trigger UUID is required", ErrTriggerUUIDRequired)
	}

	trigger, err := s.triggerRepo.ByUUID(ctx, triggerUUID)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_LOOKUP_FAILED", "Failed to lookup trigger", err)
	}
	if trigger == nil {
		return nil, NewBusinessError("TRIGGER_NOT_FOUND", "Trigger not found", ErrTriggerNotFound)
	}

	resp := triggerToDTO(trigger)
	return &resp, nil
}

// ListTriggers returns triggers ordered by creation time, newest first
func (s *TriggerFlowImpl) ListTriggers(ctx context.Context, page, limit int) (*dto.ListTriggersResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	triggers, err := s.triggerRepo.ByFilter(ctx, models.TriggerFilter{}, "created_at DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_LIST_FAILED", "Failed to list triggers", err)
	}
	total, err := s.triggerRepo.Count(ctx, models.TriggerFilter{})
	if err != nil {
		return nil, NewBusinessError("TRIGGER_COUNT_FAILED", "Failed to count triggers", err)
	}

	items := make([]dto.GetTriggerResponse, 0, len(triggers))
	for _, trigger := range triggers {
		items = append(items, triggerToDTO(trigger))
	}
	return &dto.ListTriggersResponse{Items: items, Total: total}, nil
}

// ListExecutions pages the audit log for one trigger
func (s *TriggerFlowImpl) ListExecutions(ctx context.Context, triggerUUID string, page, limit int) (*dto.ListExecutionsResponse, error) {
	trigger, err := s.triggerRepo.ByUUID(ctx, triggerUUID)
	if err != nil {
		return nil, NewBusinessError("TRIGGER_LOOKUP_FAILED", "Failed to lookup trigger", err)
	}
	if trigger == nil {
		return nil, NewBusinessError("TRIGGER_NOT_FOUND", "Trigger not found", ErrTriggerNotFound)
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	executions, err := s.executionRepo.ListByTrigger(ctx, trigger.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("EXECUTION_LIST_FAILED", "Failed to list executions", err)
	}
	total, err := s.executionRepo.Count(ctx, models.TriggerExecutionFilter{TriggerID: &trigger.ID})
	if err != nil {
		return nil, NewBusinessError("EXECUTION_COUNT_FAILED", "Failed to count executions", err)
	}

	items := make([]dto.ExecutionItem, 0, len(executions))
	for _, execution := range executions {
		items = append(items, dto.ExecutionItem{
			ID:            execution.ID,
			CustomerID:    execution.CustomerID,
			ExecutedAt:    execution.ExecutedAt,
			Success:       execution.Success,
			ResultMessage: execution.ResultMessage,
		})
	}
	return &dto.ListExecutionsResponse{Items: items, Total: total}, nil
}

func triggerToDTO(trigger *models.Trigger) dto.GetTriggerResponse {
	return dto.GetTriggerResponse{
		UUID:            trigger.UUID.String(),
		Name:            trigger.Name,
		Description:     trigger.Description,
		ConditionType:   string(trigger.ConditionType),
		ConditionValue:  trigger.ConditionValue,
		ConditionDays:   trigger.ConditionDays,
		ActionType:      string(trigger.ActionType),
		IsActive:        utils.IsTrue(trigger.IsActive),
		IsRecurring:     trigger.IsRecurring,
		CooldownHours:   trigger.CooldownHours,
		CooldownMinutes: trigger.CooldownMinutes,
		ExecutionCount:  trigger.ExecutionCount,
		LastExecutedAt:  trigger.LastExecutedAt,
		CreatedAt:       trigger.CreatedAt,
	}
}

func (s *TriggerFlowImpl) inTargetSegment(ctx context.Context, trigger *models.Trigger, customerID uint) (bool, error) {
	if trigger.TargetSegmentID == nil {
		return true, nil
	}
	return s.memberships.IsActiveMember(ctx, *trigger.TargetSegmentID, customerID)
}

// acquireLease takes the batch run lease. The local mutex always guards
// in-process overlap; redis additionally guards across processes when
// configured. The returned release function is safe to call once.
func (s *TriggerFlowImpl) acquireLease(ctx context.Context) (release func(), acquired bool, err error) {
	if !s.batchMu.TryLock() {
		return func() {}, false, nil
	}

	if s.rc == nil {
		return func() { s.batchMu.Unlock() }, true, nil
	}

	runID := uuid.New().String()
	ok, err := s.rc.SetNX(ctx, batchLeaseKey, runID, s.leaseTTL).Result()
	if err != nil {
		s.batchMu.Unlock()
		return func() {}, false, err
	}
	if !ok {
		s.batchMu.Unlock()
		return func() {}, false, nil
	}

	return func() {
		// Release only our own lease; an expired lease may belong to a
		// newer run.
		current, err := s.rc.Get(context.Background(), batchLeaseKey).Result()
		if err == nil && current == runID {
			_ = s.rc.Del(context.Background(), batchLeaseKey).Err()
		}
		s.batchMu.Unlock()
	}, true, nil
}
