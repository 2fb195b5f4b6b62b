package services

import (
	"context"
	"fmt"

	"github.com/sellora/engage/repository"
)

// LoyaltyService grants points on the customer's loyalty ledger. It
// implements the engine's LoyaltyLedgerClient collaborator.
type LoyaltyService struct {
	customerRepo repository.CustomerRepository
}

// NewLoyaltyService creates a new loyalty service
func NewLoyaltyService(customerRepo repository.CustomerRepository) *LoyaltyService {
	return &LoyaltyService{customerRepo: customerRepo}
}

// GrantPoints adds points to the customer's balance
func (s *LoyaltyService) GrantPoints(ctx context.Context, customerID uint, points int, reason string) error {
	if points <= 0 {
		return fmt.Errorf("points must be positive, got %d", points)
	}

	customer, err := s.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to lookup customer %d: %w", customerID, err)
	}
	if customer == nil {
		return fmt.Errorf("customer %d not found", customerID)
	}

	return s.customerRepo.AddLoyaltyPoints(ctx, customerID, points)
}
