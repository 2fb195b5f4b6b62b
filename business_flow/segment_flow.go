// Package businessflow contains the core business logic and use cases for segment workflows
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sellora/engage/app/dto"
	"github.com/sellora/engage/models"
	"github.com/sellora/engage/repository"
	"github.com/sellora/engage/utils"
	"gorm.io/gorm"
)

// DiffMembership computes the delta between the currently active member set
// and the newly matching set. Unchanged members appear in neither result, so
// reconciling the same matching set twice yields two empty deltas.
func DiffMembership(current, matching []uint) (toActivate, toDeactivate []uint) {
	currentSet := make(map[uint]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	matchingSet := make(map[uint]struct{}, len(matching))
	for _, id := range matching {
		matchingSet[id] = struct{}{}
	}

	for _, id := range matching {
		if _, ok := currentSet[id]; !ok {
			toActivate = append(toActivate, id)
		}
	}
	for _, id := range current {
		if _, ok := matchingSet[id]; !ok {
			toDeactivate = append(toDeactivate, id)
		}
	}
	return toActivate, toDeactivate
}

// SegmentFlow handles the segment refresh business logic
type SegmentFlow interface {
	RefreshSegment(ctx context.Context, segmentUUID string) (*dto.RefreshSegmentResponse, error)
	RefreshAllSegments(ctx context.Context) (*dto.RefreshAllSegmentsResponse, error)
	// RefreshAutoSegments refreshes only segments flagged for scheduled
	// recalculation; the scheduler calls this.
	RefreshAutoSegments(ctx context.Context) (*dto.RefreshAllSegmentsResponse, error)
	PreviewSegment(ctx context.Context, req *dto.PreviewSegmentRequest) (*dto.PreviewSegmentResponse, error)
	GetSegment(ctx context.Context, segmentUUID string) (*dto.GetSegmentResponse, error)
	ListSegments(ctx context.Context, page, limit int) (*dto.ListSegmentsResponse, error)
}

// SegmentFlowImpl implements the segment business flow
type SegmentFlowImpl struct {
	segmentRepo    repository.SegmentRepository
	membershipRepo repository.SegmentMembershipRepository
	snapshots      CustomerSnapshotProvider
	db             *gorm.DB
	rc             *redis.Client
	locks          *keyedMutex
	pageSize       int
}

// NewSegmentFlow creates a new segment flow instance
func NewSegmentFlow(
	segmentRepo repository.SegmentRepository,
	membershipRepo repository.SegmentMembershipRepository,
	snapshots CustomerSnapshotProvider,
	db *gorm.DB,
	rc *redis.Client,
	pageSize int,
) SegmentFlow {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &SegmentFlowImpl{
		segmentRepo:    segmentRepo,
		membershipRepo: membershipRepo,
		snapshots:      snapshots,
		db:             db,
		rc:             rc,
		locks:          newKeyedMutex(),
		pageSize:       pageSize,
	}
}

// RefreshSegment recalculates membership for one segment
func (s *SegmentFlowImpl) RefreshSegment(ctx context.Context, segmentUUID string) (*dto.RefreshSegmentResponse, error) {
	if segmentUUID == "" {
		return nil, NewBusinessError("SEGMENT_UUID_REQUIRED", "Segment UUID is required", ErrSegmentUUIDRequired)
	}

	segment, err := s.segmentRepo.ByUUID(ctx, segmentUUID)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to lookup segment", err)
	}
	if segment == nil {
		return nil, NewBusinessError("SEGMENT_NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}
	if !utils.IsTrue(segment.IsActive) {
		return nil, NewBusinessError("SEGMENT_INACTIVE", "Segment is inactive", ErrSegmentInactive)
	}

	return s.refreshOne(ctx, segment)
}

// RefreshAllSegments recalculates membership for every active segment. A
// failure in one segment never affects the others.
func (s *SegmentFlowImpl) RefreshAllSegments(ctx context.Context) (*dto.RefreshAllSegmentsResponse, error) {
	segments, err := s.segmentRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}
	return s.refreshMany(ctx, segments), nil
}

// RefreshAutoSegments recalculates membership for auto-refresh segments only
func (s *SegmentFlowImpl) RefreshAutoSegments(ctx context.Context) (*dto.RefreshAllSegmentsResponse, error) {
	segments, err := s.segmentRepo.ListAutoRefresh(ctx)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}
	return s.refreshMany(ctx, segments), nil
}

// PreviewSegment evaluates criteria against the population without touching
// membership rows
func (s *SegmentFlowImpl) PreviewSegment(ctx context.Context, req *dto.PreviewSegmentRequest) (*dto.PreviewSegmentResponse, error) {
	if err := ValidateCriteria(req.Criteria); err != nil {
		return nil, NewBusinessError("SEGMENT_CRITERIA_INVALID", "Segment criteria are invalid", err)
	}

	matching, err := s.collectMatching(ctx, req.Criteria, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("SEGMENT_PREVIEW_FAILED", "Failed to evaluate criteria", err)
	}

	sample := matching
	if len(sample) > 20 {
		sample = sample[:20]
	}

	return &dto.PreviewSegmentResponse{
		MatchingCount:     len(matching),
		SampleCustomerIDs: sample,
		MatchAll:          req.Criteria.IsMatchAll(),
	}, nil
}

// GetSegment returns one segment by UUID
func (s *SegmentFlowImpl) GetSegment(ctx context.Context, segmentUUID string) (*dto.GetSegmentResponse, error) {
	if segmentUUID == "" {
		return nil, NewBusinessError("SEGMENT_UUID_REQUIRED", "Segment UUID is required", ErrSegmentUUIDRequired)
	}

	segment, err := s.segmentRepo.ByUUID(ctx, segmentUUID)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to lookup segment", err)
	}
	if segment == nil {
		return nil, NewBusinessError("SEGMENT_NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}

	resp := segmentToDTO(segment)
	return &resp, nil
}

// ListSegments returns segments ordered by creation time, newest first
func (s *SegmentFlowImpl) ListSegments(ctx context.Context, page, limit int) (*dto.ListSegmentsResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	segments, err := s.segmentRepo.ByFilter(ctx, models.SegmentFilter{}, "created_at DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}
	total, err := s.segmentRepo.Count(ctx, models.SegmentFilter{})
	if err != nil {
		return nil, NewBusinessError("SEGMENT_COUNT_FAILED", "Failed to count segments", err)
	}

	items := make([]dto.GetSegmentResponse, 0, len(segments))
	for _, segment := range segments {
		items = append(items, segmentToDTO(segment))
	}
	return &dto.ListSegmentsResponse{Items: items, Total: total}, nil
}

func segmentToDTO(segment *models.Segment) dto.GetSegmentResponse {
	return dto.GetSegmentResponse{
		UUID:             segment.UUID.String(),
		Name:             segment.Name,
		Description:      segment.Description,
		Criteria:         segment.Criteria,
		AutoRefresh:      segment.AutoRefresh,
		IsActive:         utils.IsTrue(segment.IsActive),
		CustomerCount:    segment.CustomerCount,
		LastCalculatedAt: segment.LastCalculatedAt,
		CreatedAt:        segment.CreatedAt,
	}
}

func (s *SegmentFlowImpl) refreshMany(ctx context.Context, segments []*models.Segment) *dto.RefreshAllSegmentsResponse {
	resp := &dto.RefreshAllSegmentsResponse{}
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("refresh cancelled: %v", err))
			break
		}

		res, err := s.refreshOne(ctx, segment)
		if err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("segment %s: %v", segment.UUID, err))
			continue
		}
		resp.Refreshed++
		resp.Results = append(resp.Results, *res)
	}
	return resp
}

// refreshOne holds the per-segment lock so that only one reconciliation is in
// flight for a segment at a time. A concurrent write detected during apply is
// retried once with fresh state, then surfaced.
func (s *SegmentFlowImpl) refreshOne(ctx context.Context, segment *models.Segment) (*dto.RefreshSegmentResponse, error) {
	key := segmentLockKey(segment.ID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if segment.Criteria.IsMatchAll() {
		log.Printf("Warning: segment %s (%s) has match-all criteria; every active customer will be enrolled", segment.UUID, segment.Name)
	}

	now := utils.UTCNow()
	matching, err := s.collectMatching(ctx, segment.Criteria, now)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_EVALUATION_FAILED", "Failed to evaluate segment criteria", err)
	}

	var activated, deactivated int
	for attempt := 0; attempt < 2; attempt++ {
		activated, deactivated, err = s.applyDiff(ctx, segment, matching, now)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, NewBusinessError("SEGMENT_RECONCILE_FAILED", "Failed to reconcile segment membership", err)
		}
	}
	if err != nil {
		return nil, NewBusinessError("SEGMENT_RECONCILE_CONFLICT", "Segment membership changed concurrently", ErrReconciliationConflict)
	}

	s.cacheCount(ctx, segment, len(matching))

	return &dto.RefreshSegmentResponse{
		UUID:          segment.UUID.String(),
		Name:          segment.Name,
		CustomerCount: len(matching),
		Activated:     activated,
		Deactivated:   deactivated,
		MatchAll:      segment.Criteria.IsMatchAll(),
		CalculatedAt:  now,
	}, nil
}

// applyDiff reads the current active set and applies the delta in one
// transaction, so a failure leaves membership at either the pre- or the
// post-state.
func (s *SegmentFlowImpl) applyDiff(ctx context.Context, segment *models.Segment, matching []uint, now time.Time) (activated, deactivated int, err error) {
	err = s.inTx(ctx, func(txCtx context.Context) error {
		current, err := s.membershipRepo.ActiveMemberIDs(txCtx, segment.ID)
		if err != nil {
			return err
		}

		toActivate, toDeactivate := DiffMembership(current, matching)

		if len(toDeactivate) > 0 {
			if err := s.membershipRepo.DeactivateBatch(txCtx, segment.ID, toDeactivate, now); err != nil {
				return err
			}
		}
		if len(toActivate) > 0 {
			if err := s.membershipRepo.ActivateBatch(txCtx, segment.ID, toActivate, now); err != nil {
				return err
			}
		}

		if err := s.segmentRepo.UpdateCalculation(txCtx, segment.ID, len(matching), now); err != nil {
			return err
		}

		activated = len(toActivate)
		deactivated = len(toDeactivate)
		return nil
	})
	return activated, deactivated, err
}

// collectMatching walks the active population page by page and evaluates the
// criteria against each snapshot.
func (s *SegmentFlowImpl) collectMatching(ctx context.Context, criteria models.SegmentCriteria, now time.Time) ([]uint, error) {
	var matching []uint
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snaps, err := s.snapshots.GetActiveCustomers(ctx, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, snap := range snaps {
			if CriteriaMatches(snap, criteria, now) {
				matching = append(matching, snap.CustomerID)
			}
		}
		if len(snaps) < s.pageSize {
			return matching, nil
		}
		offset += s.pageSize
	}
}

func (s *SegmentFlowImpl) cacheCount(ctx context.Context, segment *models.Segment, count int) {
	if s.rc == nil {
		return
	}
	key := fmt.Sprintf("engage:segment:%s:count", segment.UUID)
	_ = s.rc.Set(ctx, key, count, time.Hour).Err()
}

func (s *SegmentFlowImpl) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, s.db, fn)
}

// isUniqueViolation reports whether the error is a Postgres unique constraint
// violation, the signature of a concurrent membership write.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
