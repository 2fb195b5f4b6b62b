package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/repository"
)

// In-memory collaborator fakes shared by the engine unit tests. Deterministic
// and safe for concurrent use, so the orchestrator tests can run with a real
// worker pool.

type fakeAuditStore struct {
	mu         sync.Mutex
	executions []models.TriggerExecution
	appendErr  error
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{}
}

func (f *fakeAuditStore) Append(ctx context.Context, execution *models.TriggerExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	execution.ID = uint(len(f.executions) + 1)
	f.executions = append(f.executions, *execution)
	return nil
}

func (f *fakeAuditStore) CountSince(ctx context.Context, triggerID uint, customerID *uint, since time.Time, successOnly bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.executions {
		if e.TriggerID != triggerID {
			continue
		}
		if customerID != nil && e.CustomerID != *customerID {
			continue
		}
		if !since.IsZero() && e.ExecutedAt.Before(since) {
			continue
		}
		if successOnly && !e.Success {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeAuditStore) LastSuccessfulAt(ctx context.Context, triggerID uint, customerID *uint) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, e := range f.executions {
		if e.TriggerID != triggerID || !e.Success {
			continue
		}
		if customerID != nil && e.CustomerID != *customerID {
			continue
		}
		at := e.ExecutedAt
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last, nil
}

func (f *fakeAuditStore) rows() []models.TriggerExecution {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TriggerExecution, len(f.executions))
	copy(out, f.executions)
	return out
}

type fakeSnapshotProvider struct {
	mu    sync.Mutex
	snaps map[uint]models.CustomerSnapshot
}

func newFakeSnapshotProvider(snaps ...models.CustomerSnapshot) *fakeSnapshotProvider {
	m := make(map[uint]models.CustomerSnapshot, len(snaps))
	for _, s := range snaps {
		m[s.CustomerID] = s
	}
	return &fakeSnapshotProvider{snaps: m}
}

func (f *fakeSnapshotProvider) GetActiveCustomers(ctx context.Context, limit, offset int) ([]models.CustomerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	out := make([]models.CustomerSnapshot, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, f.snaps[id])
	}
	return out, nil
}

func (f *fakeSnapshotProvider) CountActiveCustomers(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.snaps)), nil
}

func (f *fakeSnapshotProvider) GetCustomer(ctx context.Context, customerID uint) (*models.CustomerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[customerID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

type fakeMessaging struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	CustomerID uint
	Channel    string
	Subject    string
	Body       string
}

func (f *fakeMessaging) Send(ctx context.Context, customerID uint, channel, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{CustomerID: customerID, Channel: channel, Subject: subject, Body: body})
	return nil
}

type fakeLoyalty struct {
	mu      sync.Mutex
	granted map[uint]int
	err     error
}

func newFakeLoyalty() *fakeLoyalty {
	return &fakeLoyalty{granted: make(map[uint]int)}
}

func (f *fakeLoyalty) GrantPoints(ctx context.Context, customerID uint, points int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.granted[customerID] += points
	return nil
}

type fakeWallet struct {
	mu       sync.Mutex
	credited map[uint]float64
	err      error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{credited: make(map[uint]float64)}
}

func (f *fakeWallet) AddFunds(ctx context.Context, customerID uint, amount float64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.credited[customerID] += amount
	return nil
}

// fakeMembershipStore satisfies both the SegmentMembershipStore collaborator
// and repository.SegmentMembershipRepository (via the embedded interface; the
// unimplemented generic methods are never called in these tests).
type fakeMembershipStore struct {
	repository.SegmentMembershipRepository
	mu     sync.Mutex
	active map[uint]map[uint]bool // segmentID -> customerID -> active

	activateErr   error
	deactivateErr error
	lookupErr     error
	activateCalls int
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{active: make(map[uint]map[uint]bool)}
}

func (f *fakeMembershipStore) setActive(segmentID uint, customerIDs ...uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[segmentID] == nil {
		f.active[segmentID] = make(map[uint]bool)
	}
	for _, id := range customerIDs {
		f.active[segmentID][id] = true
	}
}

func (f *fakeMembershipStore) ActiveMemberIDs(ctx context.Context, segmentID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint
	for id, active := range f.active[segmentID] {
		if active {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeMembershipStore) IsActiveMember(ctx context.Context, segmentID, customerID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	return f.active[segmentID][customerID], nil
}

func (f *fakeMembershipStore) ActivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activateCalls++
	if f.activateErr != nil {
		return f.activateErr
	}
	if f.active[segmentID] == nil {
		f.active[segmentID] = make(map[uint]bool)
	}
	for _, id := range customerIDs {
		f.active[segmentID][id] = true
	}
	return nil
}

func (f *fakeMembershipStore) DeactivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	for _, id := range customerIDs {
		if f.active[segmentID] != nil {
			f.active[segmentID][id] = false
		}
	}
	return nil
}

// fakeTriggerRepo keeps triggers in memory; the embedded interface covers the
// generic methods the tests never reach.
type fakeTriggerRepo struct {
	repository.TriggerRepository
	mu       sync.Mutex
	triggers map[uint]*models.Trigger
}

func newFakeTriggerRepo(triggers ...*models.Trigger) *fakeTriggerRepo {
	m := make(map[uint]*models.Trigger, len(triggers))
	for _, tr := range triggers {
		m[tr.ID] = tr
	}
	return &fakeTriggerRepo{triggers: m}
}

func (f *fakeTriggerRepo) ListActive(ctx context.Context) ([]*models.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Trigger
	for _, tr := range f.triggers {
		if tr.IsActive != nil && *tr.IsActive {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTriggerRepo) ByUUID(ctx context.Context, uuidStr string) (*models.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.triggers {
		if tr.UUID.String() == uuidStr {
			return tr, nil
		}
	}
	return nil, nil
}

func (f *fakeTriggerRepo) IncrementExecution(ctx context.Context, id uint, executedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.triggers[id]
	if !ok {
		return errors.New("trigger not found")
	}
	tr.ExecutionCount++
	at := executedAt
	tr.LastExecutedAt = &at
	return nil
}

// fakeSegmentRepo keeps segments in memory.
type fakeSegmentRepo struct {
	repository.SegmentRepository
	mu       sync.Mutex
	segments map[uint]*models.Segment

	updateErrs []error // consumed per UpdateCalculation call
}

func newFakeSegmentRepo(segments ...*models.Segment) *fakeSegmentRepo {
	m := make(map[uint]*models.Segment, len(segments))
	for _, seg := range segments {
		m[seg.ID] = seg
	}
	return &fakeSegmentRepo{segments: m}
}

func (f *fakeSegmentRepo) ByID(ctx context.Context, id uint) (*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segments[id], nil
}

func (f *fakeSegmentRepo) ByUUID(ctx context.Context, uuidStr string) (*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, seg := range f.segments {
		if seg.UUID.String() == uuidStr {
			return seg, nil
		}
	}
	return nil, nil
}

func (f *fakeSegmentRepo) ListActive(ctx context.Context) ([]*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Segment
	for _, seg := range f.segments {
		if seg.IsActive != nil && *seg.IsActive {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSegmentRepo) ListAutoRefresh(ctx context.Context) ([]*models.Segment, error) {
	all, err := f.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Segment
	for _, seg := range all {
		if seg.AutoRefresh {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (f *fakeSegmentRepo) UpdateCalculation(ctx context.Context, id uint, customerCount int, calculatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	seg, ok := f.segments[id]
	if !ok {
		return errors.New("segment not found")
	}
	seg.CustomerCount = customerCount
	at := calculatedAt
	seg.LastCalculatedAt = &at
	return nil
}

// fakeCustomerRepo resolves customers by UUID for the single-customer pass.
type fakeCustomerRepo struct {
	repository.CustomerRepository
	mu        sync.Mutex
	customers map[string]*models.Customer
}

func newFakeCustomerRepo(customers ...*models.Customer) *fakeCustomerRepo {
	m := make(map[string]*models.Customer, len(customers))
	for _, c := range customers {
		m[c.UUID.String()] = c
	}
	return &fakeCustomerRepo{customers: m}
}

func (f *fakeCustomerRepo) ByUUID(ctx context.Context, uuidStr string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[uuidStr], nil
}
