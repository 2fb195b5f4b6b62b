package repository

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"gorm.io/gorm"
)

// SegmentMembershipRepositoryImpl implements the SegmentMembershipRepository interface
type SegmentMembershipRepositoryImpl struct {
	*BaseRepository[models.SegmentMembership, models.SegmentMembershipFilter]
}

// NewSegmentMembershipRepository creates a new segment membership repository
func NewSegmentMembershipRepository(db *gorm.DB) SegmentMembershipRepository {
	return &SegmentMembershipRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SegmentMembership, models.SegmentMembershipFilter](db),
	}
}

// ActiveMemberIDs returns the customer IDs currently active in a segment
func (r *SegmentMembershipRepositoryImpl) ActiveMemberIDs(ctx context.Context, segmentID uint) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.SegmentMembership{}).
		Where("segment_id = ? AND is_active = ?", segmentID, true).
		Order("customer_id ASC").
		Pluck("customer_id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// IsActiveMember reports whether the customer is currently active in the segment
func (r *SegmentMembershipRepositoryImpl) IsActiveMember(ctx context.Context, segmentID, customerID uint) (bool, error) {
	return r.Exists(ctx, models.SegmentMembershipFilter{
		SegmentID:  &segmentID,
		CustomerID: &customerID,
		IsActive:   utils.ToPtr(true),
	})
}

// ActivateBatch appends active membership rows for the given customers.
// Historical deactivated rows are left untouched.
func (r *SegmentMembershipRepositoryImpl) ActivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error {
	if len(customerIDs) == 0 {
		return nil
	}

	rows := make([]*models.SegmentMembership, 0, len(customerIDs))
	for _, customerID := range customerIDs {
		rows = append(rows, &models.SegmentMembership{
			SegmentID:  segmentID,
			CustomerID: customerID,
			IsActive:   true,
			AddedAt:    at,
		})
	}

	return r.SaveBatch(ctx, rows)
}

// DeactivateBatch flips the active rows for the given customers. Rows are
// never deleted so membership history stays auditable.
func (r *SegmentMembershipRepositoryImpl) DeactivateBatch(ctx context.Context, segmentID uint, customerIDs []uint, at time.Time) error {
	if len(customerIDs) == 0 {
		return nil
	}

	db := r.getDB(ctx)
	return db.Model(&models.SegmentMembership{}).
		Where("segment_id = ? AND customer_id IN ? AND is_active = ?", segmentID, customerIDs, true).
		Updates(map[string]any{
			"is_active":      false,
			"deactivated_at": at,
		}).Error
}

// ByFilter retrieves memberships based on filter criteria
func (r *SegmentMembershipRepositoryImpl) ByFilter(ctx context.Context, filter models.SegmentMembershipFilter, orderBy string, limit, offset int) ([]*models.SegmentMembership, error) {
	db := r.getDB(ctx)

	var memberships []*models.SegmentMembership
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	return memberships, nil
}

// Count returns the number of memberships matching the filter
func (r *SegmentMembershipRepositoryImpl) Count(ctx context.Context, filter models.SegmentMembershipFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.SegmentMembership{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any membership matching the filter exists
func (r *SegmentMembershipRepositoryImpl) Exists(ctx context.Context, filter models.SegmentMembershipFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SegmentMembershipRepositoryImpl) applyFilter(db *gorm.DB, filter models.SegmentMembershipFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.SegmentID != nil {
		db = db.Where("segment_id = ?", *filter.SegmentID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.AddedAfter != nil {
		db = db.Where("added_at >= ?", *filter.AddedAfter)
	}
	return db
}
