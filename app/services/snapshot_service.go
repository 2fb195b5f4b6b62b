package services

import (
	"context"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/repository"
)

// SnapshotService builds read-only customer snapshots from the customer and
// wallet tables. It implements the engine's CustomerSnapshotProvider
// collaborator; evaluators only ever see these immutable DTOs.
type SnapshotService struct {
	customerRepo repository.CustomerRepository
	walletRepo   repository.WalletRepository
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(customerRepo repository.CustomerRepository, walletRepo repository.WalletRepository) *SnapshotService {
	return &SnapshotService{
		customerRepo: customerRepo,
		walletRepo:   walletRepo,
	}
}

// GetActiveCustomers returns one page of snapshots for active customers
func (s *SnapshotService) GetActiveCustomers(ctx context.Context, limit, offset int) ([]models.CustomerSnapshot, error) {
	customers, err := s.customerRepo.ListActiveCustomers(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	snaps := make([]models.CustomerSnapshot, 0, len(customers))
	for _, customer := range customers {
		balance, err := s.walletBalance(ctx, customer.ID)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, models.SnapshotFromCustomer(customer, balance))
	}
	return snaps, nil
}

// CountActiveCustomers returns the size of the active population
func (s *SnapshotService) CountActiveCustomers(ctx context.Context) (int64, error) {
	return s.customerRepo.CountActiveCustomers(ctx)
}

// GetCustomer returns a snapshot for one customer, nil when the customer does
// not exist or is inactive
func (s *SnapshotService) GetCustomer(ctx context.Context, customerID uint) (*models.CustomerSnapshot, error) {
	customer, err := s.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil || customer.IsActive == nil || !*customer.IsActive {
		return nil, nil
	}

	balance, err := s.walletBalance(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	snap := models.SnapshotFromCustomer(customer, balance)
	return &snap, nil
}

// walletBalance reads the cached balance; a customer without a wallet has a
// zero balance, not an error.
func (s *SnapshotService) walletBalance(ctx context.Context, customerID uint) (float64, error) {
	wallet, err := s.walletRepo.ByCustomerID(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}
