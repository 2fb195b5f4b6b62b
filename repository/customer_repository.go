package repository

import (
	"context"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements the CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

// ByUUID retrieves a customer by UUID
func (r *CustomerRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Customer, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.CustomerFilter{UUID: &parsedUUID}
	customers, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(customers) == 0 {
		return nil, nil
	}

	return customers[0], nil
}

// ListActiveCustomers retrieves active customers with pagination
func (r *CustomerRepositoryImpl) ListActiveCustomers(ctx context.Context, limit, offset int) ([]*models.Customer, error) {
	filter := models.CustomerFilter{IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "id ASC", limit, offset)
}

// CountActiveCustomers counts active customers
func (r *CustomerRepositoryImpl) CountActiveCustomers(ctx context.Context) (int64, error) {
	return r.Count(ctx, models.CustomerFilter{IsActive: utils.ToPtr(true)})
}

// AddLoyaltyPoints atomically adjusts a customer's loyalty point balance
func (r *CustomerRepositoryImpl) AddLoyaltyPoints(ctx context.Context, customerID uint, points int) error {
	db := r.getDB(ctx)
	return db.Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{
			"loyalty_points": gorm.Expr("loyalty_points + ?", points),
			"updated_at":     utils.UTCNow(),
		}).Error
}

// ByFilter retrieves customers based on filter criteria
func (r *CustomerRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	db := r.getDB(ctx)

	var customers []*models.Customer
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

	err := query.Find(&customers).Error
	if err != nil {
		return nil, err
	}

	return customers, nil
}

// Count returns the number of customers matching the filter
func (r *CustomerRepositoryImpl) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Customer{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any customer matching the filter exists
func (r *CustomerRepositoryImpl) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CustomerRepositoryImpl) applyFilter(db *gorm.DB, filter models.CustomerFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.Mobile != nil {
		db = db.Where("mobile = ?", *filter.Mobile)
	}
	if filter.MembershipLevelID != nil {
		db = db.Where("membership_level_id = ?", *filter.MembershipLevelID)
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
	if filter.LastActivityAfter != nil {
		db = db.Where("last_activity_at >= ?", *filter.LastActivityAfter)
	}
	return db
}
