package services

import (
	"context"
	"fmt"

	"github.com/sellora/engage/repository"
)

// WalletService credits customer wallets. It implements the engine's
// WalletClient collaborator over the wallet ledger.
type WalletService struct {
	walletRepo repository.WalletRepository
}

// NewWalletService creates a new wallet service
func NewWalletService(walletRepo repository.WalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// AddFunds credits the amount to the customer's wallet
func (s *WalletService) AddFunds(ctx context.Context, customerID uint, amount float64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %f", amount)
	}

	_, err := s.walletRepo.Credit(ctx, customerID, amount, reason)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for customer %d: %w", customerID, err)
	}
	return nil
}
