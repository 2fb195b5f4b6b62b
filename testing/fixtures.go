// Package testing provides test utilities and database setup for testing the engagement engine
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCustomer creates a test customer with a wallet holding the given balance
func (tf *TestFixtures) CreateTestCustomer(walletBalance float64) (*models.Customer, error) {
	// create random number containing exactly 9 digits
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	customer := &models.Customer{
		UUID:              uuid.New(),
		FirstName:         "John",
		LastName:          "Doe",
		Email:             fmt.Sprintf("john.doe.%s@example.com", randomDigits),
		Mobile:            fmt.Sprintf("+989%s", randomDigits),
		MembershipLevelID: 1,
		IsActive:          utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	wallet := &models.Wallet{
		CustomerID: customer.ID,
		Balance:    walletBalance,
	}
	if err := tf.DB.DB.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create test wallet: %w", err)
	}
	customer.Wallet = wallet

	return customer, nil
}

// CreateCustomerWithStats creates a test customer carrying the given purchase statistics
func (tf *TestFixtures) CreateCustomerWithStats(totalSpent float64, totalVisits, totalOrders, loyaltyPoints int) (*models.Customer, error) {
	customer, err := tf.CreateTestCustomer(0)
	if err != nil {
		return nil, err
	}

	customer.TotalSpent = totalSpent
	customer.TotalVisits = totalVisits
	customer.TotalOrders = totalOrders
	customer.LoyaltyPoints = loyaltyPoints
	now := time.Now().UTC()
	customer.LastActivityAt = &now

	if err := tf.DB.DB.Save(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to update test customer stats: %w", err)
	}

	return customer, nil
}

// CreateTestSegment creates a test segment with the given criteria
func (tf *TestFixtures) CreateTestSegment(name string, criteria models.SegmentCriteria) (*models.Segment, error) {
	segment := &models.Segment{
		Name:        name,
		Criteria:    criteria,
		AutoRefresh: true,
		IsActive:    utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(segment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test segment: %w", err)
	}

	return segment, nil
}

// CreateTestMembership adds a customer to a segment as an active member
func (tf *TestFixtures) CreateTestMembership(segmentID, customerID uint) (*models.SegmentMembership, error) {
	membership := &models.SegmentMembership{
		SegmentID:  segmentID,
		CustomerID: customerID,
		IsActive:   true,
		AddedAt:    time.Now().UTC(),
	}

	if err := tf.DB.DB.Create(membership).Error; err != nil {
		return nil, fmt.Errorf("failed to create test membership: %w", err)
	}

	return membership, nil
}

// CreateTestTrigger creates a test trigger with the given condition and action
func (tf *TestFixtures) CreateTestTrigger(name string, conditionType models.TriggerConditionType, conditionValue float64, actionType models.TriggerActionType, params models.TriggerActionParams) (*models.Trigger, error) {
	trigger := &models.Trigger{
		Name:           name,
		ConditionType:  conditionType,
		ConditionValue: conditionValue,
		ActionType:     actionType,
		ActionParams:   params,
		IsActive:       utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(trigger).Error; err != nil {
		return nil, fmt.Errorf("failed to create test trigger: %w", err)
	}

	return trigger, nil
}

// CreateTestExecution records a trigger execution at the given time
func (tf *TestFixtures) CreateTestExecution(triggerID, customerID uint, executedAt time.Time, success bool) (*models.TriggerExecution, error) {
	execution := &models.TriggerExecution{
		TriggerID:     triggerID,
		CustomerID:    customerID,
		ExecutedAt:    executedAt,
		Success:       success,
		ResultMessage: "test execution",
	}

	if err := tf.DB.DB.Create(execution).Error; err != nil {
		return nil, fmt.Errorf("failed to create test execution: %w", err)
	}

	return execution, nil
}

// CreateMultipleTestCustomers creates count test customers with varied statistics
func (tf *TestFixtures) CreateMultipleTestCustomers(count int) ([]*models.Customer, error) {
	var customers []*models.Customer
	for i := range count {
		customer, err := tf.CreateCustomerWithStats(
			float64((i+1)*100),
			(i+1)*2,
			i+1,
			(i+1)*50,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create customer %d: %w", i, err)
		}
		customers = append(customers, customer)
	}

	return customers, nil
}
