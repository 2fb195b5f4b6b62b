package repository

import (
	"context"
	"time"

	"github.com/sellora/engage/models"
	"gorm.io/gorm"
)

// TriggerExecutionRepositoryImpl implements the TriggerExecutionRepository interface
type TriggerExecutionRepositoryImpl struct {
	*BaseRepository[models.TriggerExecution, models.TriggerExecutionFilter]
}

// NewTriggerExecutionRepository creates a new trigger execution repository
func NewTriggerExecutionRepository(db *gorm.DB) TriggerExecutionRepository {
	return &TriggerExecutionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TriggerExecution, models.TriggerExecutionFilter](db),
	}
}

// Append writes one audit row. Rows are never updated or deleted.
func (r *TriggerExecutionRepositoryImpl) Append(ctx context.Context, execution *models.TriggerExecution) error {
	return r.Save(ctx, execution)
}

// CountSince counts executions for a trigger at or after the given time
func (r *TriggerExecutionRepositoryImpl) CountSince(ctx context.Context, triggerID uint, customerID *uint, since time.Time, successOnly bool) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.TriggerExecution{}).Where("trigger_id = ?", triggerID)
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	if !since.IsZero() {
		query = query.Where("executed_at >= ?", since)
	}
	if successOnly {
		query = query.Where("success = ?", true)
	}

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// LastSuccessfulAt returns the most recent successful execution time, nil when none
func (r *TriggerExecutionRepositoryImpl) LastSuccessfulAt(ctx context.Context, triggerID uint, customerID *uint) (*time.Time, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.TriggerExecution{}).
		Where("trigger_id = ? AND success = ?", triggerID, true)
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}

	var last *time.Time
	err := query.Select("MAX(executed_at)").Scan(&last).Error
	if err != nil {
		return nil, err
	}

	return last, nil
}

// ListByTrigger retrieves execution history for a trigger, newest first
func (r *TriggerExecutionRepositoryImpl) ListByTrigger(ctx context.Context, triggerID uint, limit, offset int) ([]*models.TriggerExecution, error) {
	filter := models.TriggerExecutionFilter{TriggerID: &triggerID}
	return r.ByFilter(ctx, filter, "executed_at DESC", limit, offset)
}

// ByFilter retrieves executions based on filter criteria
func (r *TriggerExecutionRepositoryImpl) ByFilter(ctx context.Context, filter models.TriggerExecutionFilter, orderBy string, limit, offset int) ([]*models.TriggerExecution, error) {
	db := r.getDB(ctx)

	var executions []*models.TriggerExecution
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

	err := query.Find(&executions).Error
	if err != nil {
		return nil, err
	}

	return executions, nil
}

// Count returns the number of executions matching the filter
func (r *TriggerExecutionRepositoryImpl) Count(ctx context.Context, filter models.TriggerExecutionFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.TriggerExecution{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any execution matching the filter exists
func (r *TriggerExecutionRepositoryImpl) Exists(ctx context.Context, filter models.TriggerExecutionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TriggerExecutionRepositoryImpl) applyFilter(db *gorm.DB, filter models.TriggerExecutionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.TriggerID != nil {
		db = db.Where("trigger_id = ?", *filter.TriggerID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	if filter.ExecutedAfter != nil {
		db = db.Where("executed_at >= ?", *filter.ExecutedAfter)
	}
	return db
}
