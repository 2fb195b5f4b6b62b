package repository

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"gorm.io/gorm"
)

// TriggerRepositoryImpl implements the TriggerRepository interface
type TriggerRepositoryImpl struct {
	*BaseRepository[models.Trigger, models.TriggerFilter]
}

// NewTriggerRepository creates a new trigger repository
func NewTriggerRepository(db *gorm.DB) TriggerRepository {
	return &TriggerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Trigger, models.TriggerFilter](db),
	}
}

// ByUUID retrieves a trigger by UUID
func (r *TriggerRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Trigger, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.TriggerFilter{UUID: &parsedUUID}
	triggers, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(triggers) == 0 {
		return nil, nil
	}

	return triggers[0], nil
}

// ListActive retrieves all active triggers
func (r *TriggerRepositoryImpl) ListActive(ctx context.Context) ([]*models.Trigger, error) {
	filter := models.TriggerFilter{IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// IncrementExecution bumps the cached execution counters after a successful dispatch
func (r *TriggerRepositoryImpl) IncrementExecution(ctx context.Context, id uint, executedAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Trigger{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"execution_count":  gorm.Expr("execution_count + 1"),
			"last_executed_at": executedAt,
			"updated_at":       utils.UTCNow(),
		}).Error
}

// RecalculateCounters replays the execution log into the cached counters.
// Used for recovery after partial failures; the log is authoritative.
func (r *TriggerRepositoryImpl) RecalculateCounters(ctx context.Context, id uint) error {
	db := r.getDB(ctx)

	var agg struct {
		Total int64
		Last  *time.Time
	}
	err := db.Model(&models.TriggerExecution{}).
		Select("COUNT(*) AS total, MAX(executed_at) AS last").
		Where("trigger_id = ? AND success = ?", id, true).
		Scan(&agg).Error
	if err != nil {
		return err
	}

	return db.Model(&models.Trigger{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"execution_count":  agg.Total,
			"last_executed_at": agg.Last,
			"updated_at":       utils.UTCNow(),
		}).Error
}

// Deactivate flips a trigger inactive. Triggers with execution history are
// deactivated rather than deleted to preserve the audit trail.
func (r *TriggerRepositoryImpl) Deactivate(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.Trigger{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": utils.UTCNow(),
		}).Error
}

// DeleteIfNeverExecuted hard-deletes a trigger only when its execution log is empty
func (r *TriggerRepositoryImpl) DeleteIfNeverExecuted(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		var count int64
		if err := db.Model(&models.TriggerExecution{}).
			Where("trigger_id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		res := db.Delete(&models.Trigger{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// ByFilter retrieves triggers based on filter criteria
func (r *TriggerRepositoryImpl) ByFilter(ctx context.Context, filter models.TriggerFilter, orderBy string, limit, offset int) ([]*models.Trigger, error) {
	db := r.getDB(ctx)

	var triggers []*models.Trigger
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

	err := query.Find(&triggers).Error
	if err != nil {
		return nil, err
	}

	return triggers, nil
}

// Count returns the number of triggers matching the filter
func (r *TriggerRepositoryImpl) Count(ctx context.Context, filter models.TriggerFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Trigger{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any trigger matching the filter exists
func (r *TriggerRepositoryImpl) Exists(ctx context.Context, filter models.TriggerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TriggerRepositoryImpl) applyFilter(db *gorm.DB, filter models.TriggerFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.ConditionType != nil {
		db = db.Where("condition_type = ?", *filter.ConditionType)
	}
	if filter.ActionType != nil {
		db = db.Where("action_type = ?", *filter.ActionType)
	}
	if filter.TargetSegmentID != nil {
		db = db.Where("target_segment_id = ?", *filter.TargetSegmentID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.IsRecurring != nil {
		db = db.Where("is_recurring = ?", *filter.IsRecurring)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
