package repository

import (
	"context"
	"fmt"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepositoryImpl implements the WalletRepository interface
type WalletRepositoryImpl struct {
	*BaseRepository[models.Wallet, models.WalletFilter]
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Wallet, models.WalletFilter](db),
	}
}

// ByCustomerID retrieves a customer's wallet
func (r *WalletRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error) {
	filter := models.WalletFilter{CustomerID: &customerID}
	wallets, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(wallets) == 0 {
		return nil, nil
	}

	return wallets[0], nil
}

// Credit appends a ledger row and updates the cached balance in one transaction.
// The wallet row is locked for the duration so concurrent credits serialize.
func (r *WalletRepositoryImpl) Credit(ctx context.Context, customerID uint, amount float64, reason string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %f", amount)
	}

	var txRow *models.WalletTransaction
	err := WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		var wallet models.Wallet
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("customer_id = ?", customerID).
			Last(&wallet).Error; err != nil {
			return fmt.Errorf("failed to load wallet for customer %d: %w", customerID, err)
		}

		newBalance := wallet.Balance + amount
		txRow = &models.WalletTransaction{
			WalletID:     wallet.ID,
			CustomerID:   customerID,
			Type:         models.WalletTransactionTypeCredit,
			Amount:       amount,
			BalanceAfter: newBalance,
			Reason:       reason,
			CreatedAt:    utils.UTCNow(),
		}
		if err := db.Create(txRow).Error; err != nil {
			return fmt.Errorf("failed to append wallet transaction: %w", err)
		}

		return db.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Updates(map[string]any{
				"balance":    newBalance,
				"updated_at": utils.UTCNow(),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return txRow, nil
}

// ByFilter retrieves wallets based on filter criteria
func (r *WalletRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletFilter, orderBy string, limit, offset int) ([]*models.Wallet, error) {
	db := r.getDB(ctx)

	var wallets []*models.Wallet
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

	err := query.Find(&wallets).Error
	if err != nil {
		return nil, err
	}

	return wallets, nil
}

// Count returns the number of wallets matching the filter
func (r *WalletRepositoryImpl) Count(ctx context.Context, filter models.WalletFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Wallet{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any wallet matching the filter exists
func (r *WalletRepositoryImpl) Exists(ctx context.Context, filter models.WalletFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *WalletRepositoryImpl) applyFilter(db *gorm.DB, filter models.WalletFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
