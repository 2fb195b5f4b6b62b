package services

import (
	"context"
	"fmt"

	"github.com/sellora/engage/repository"
)

// MessagingService resolves a customer's contact details and routes the
// message through the configured channel. It implements the engine's
// MessagingClient collaborator.
type MessagingService struct {
	customerRepo repository.CustomerRepository
	notifier     NotificationService
}

// NewMessagingService creates a new messaging service
func NewMessagingService(customerRepo repository.CustomerRepository, notifier NotificationService) *MessagingService {
	return &MessagingService{
		customerRepo: customerRepo,
		notifier:     notifier,
	}
}

// Send delivers a message to the customer over the given channel
func (s *MessagingService) Send(ctx context.Context, customerID uint, channel, subject, body string) error {
	customer, err := s.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to lookup customer %d: %w", customerID, err)
	}
	if customer == nil {
		return fmt.Errorf("customer %d not found", customerID)
	}

	switch channel {
	case "sms":
		return s.notifier.SendSMS(customer.Mobile, body)
	case "email":
		return s.notifier.SendEmail(customer.Email, subject, body)
	default:
		return fmt.Errorf("unknown channel: %s", channel)
	}
}
