package repository

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"gorm.io/gorm"
)

// SegmentRepositoryImpl implements the SegmentRepository interface
type SegmentRepositoryImpl struct {
	*BaseRepository[models.Segment, models.SegmentFilter]
}

// NewSegmentRepository creates a new segment repository
func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &SegmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Segment, models.SegmentFilter](db),
	}
}

// ByUUID retrieves a segment by UUID
func (r *SegmentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Segment, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.SegmentFilter{UUID: &parsedUUID}
	segments, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		return nil, nil
	}

	return segments[0], nil
}

// ListActive retrieves all active segments
func (r *SegmentRepositoryImpl) ListActive(ctx context.Context) ([]*models.Segment, error) {
	filter := models.SegmentFilter{IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// ListAutoRefresh retrieves active segments marked for scheduled recalculation
func (r *SegmentRepositoryImpl) ListAutoRefresh(ctx context.Context) ([]*models.Segment, error) {
	filter := models.SegmentFilter{
		IsActive:    utils.ToPtr(true),
		AutoRefresh: utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// UpdateCriteria replaces a segment's criteria expression
func (r *SegmentRepositoryImpl) UpdateCriteria(ctx context.Context, id uint, criteria models.SegmentCriteria) error {
	db := r.getDB(ctx)
	return db.Model(&models.Segment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"criteria":   criteria,
			"updated_at": utils.UTCNow(),
		}).Error
}

// UpdateCalculation refreshes the cached member count and calculation timestamp
func (r *SegmentRepositoryImpl) UpdateCalculation(ctx context.Context, id uint, customerCount int, calculatedAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Segment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"customer_count":     customerCount,
			"last_calculated_at": calculatedAt,
			"updated_at":         utils.UTCNow(),
		}).Error
}

// ByFilter retrieves segments based on filter criteria
func (r *SegmentRepositoryImpl) ByFilter(ctx context.Context, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error) {
	db := r.getDB(ctx)

	var segments []*models.Segment
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

	err := query.Find(&segments).Error
	if err != nil {
		return nil, err
	}

	return segments, nil
}

// Count returns the number of segments matching the filter
func (r *SegmentRepositoryImpl) Count(ctx context.Context, filter models.SegmentFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Segment{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any segment matching the filter exists
func (r *SegmentRepositoryImpl) Exists(ctx context.Context, filter models.SegmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SegmentRepositoryImpl) applyFilter(db *gorm.DB, filter models.SegmentFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.AutoRefresh != nil {
		db = db.Where("auto_refresh = ?", *filter.AutoRefresh)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
