// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellora/engage/models"
	testingutil "github.com/sellora/engage/testing"
	"github.com/sellora/engage/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentCriteriaIsMatchAll(t *testing.T) {
	assert.True(t, models.SegmentCriteria{}.IsMatchAll())
	assert.False(t, models.SegmentCriteria{MinTotalSpent: utils.ToPtr(1.0)}.IsMatchAll())
	assert.False(t, models.SegmentCriteria{MembershipLevelIDs: []uint{1}}.IsMatchAll())
	assert.False(t, models.SegmentCriteria{BirthdayThisMonth: utils.ToPtr(true)}.IsMatchAll())
}

func TestSegmentCriteriaValueScan(t *testing.T) {
	criteria := models.SegmentCriteria{
		MinTotalSpent:          utils.ToPtr(500.0),
		MinLoyaltyPoints:       utils.ToPtr(100),
		MembershipLevelIDs:     []uint{2, 3},
		InactiveForAtLeastDays: utils.ToPtr(30),
	}

	value, err := criteria.Value()
	require.NoError(t, err)

	var scanned models.SegmentCriteria
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, criteria, scanned)

	// Nil column scans to the zero criteria
	var empty models.SegmentCriteria
	require.NoError(t, empty.Scan(nil))
	assert.True(t, empty.IsMatchAll())
}

func TestTriggerConditionTypeValid(t *testing.T) {
	assert.True(t, models.ConditionTotalSpentAbove.Valid())
	assert.True(t, models.ConditionBirthdayThisMonth.Valid())
	assert.False(t, models.TriggerConditionType("no_such_condition").Valid())

	_, err := models.TriggerConditionType("no_such_condition").Value()
	assert.Error(t, err)
}

func TestTriggerActionTypeValid(t *testing.T) {
	assert.True(t, models.ActionGrantLoyaltyPoints.Valid())
	assert.True(t, models.ActionAddWalletFunds.Valid())
	assert.False(t, models.TriggerActionType("no_such_action").Valid())
}

func TestCustomerSnapshotDerivedValues(t *testing.T) {
	now := time.Now().UTC()

	snap := models.CustomerSnapshot{
		TotalSpent:  300,
		TotalOrders: 4,
		CreatedAt:   now.AddDate(0, 0, -10),
	}
	assert.Equal(t, 75.0, snap.AverageOrderValue())
	assert.Equal(t, 10, snap.AccountAgeDays(now))

	// No orders yet
	fresh := models.CustomerSnapshot{TotalSpent: 300, CreatedAt: now}
	assert.Equal(t, 0.0, fresh.AverageOrderValue())
	assert.Equal(t, 0, fresh.AccountAgeDays(now.Add(-time.Hour)))
}

func TestSnapshotFromCustomer(t *testing.T) {
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	customer := &models.Customer{
		ID:                7,
		UUID:              uuid.New(),
		FirstName:         "Jane",
		LastName:          "Smith",
		Email:             "jane@example.com",
		Mobile:            "+989123456789",
		MembershipLevelID: 2,
		TotalSpent:        1500,
		TotalVisits:       12,
		TotalOrders:       10,
		LoyaltyPoints:     340,
		DateOfBirth:       &dob,
	}

	snap := models.SnapshotFromCustomer(customer, 88.5)
	assert.Equal(t, uint(7), snap.CustomerID)
	assert.Equal(t, "Jane Smith", snap.FullName)
	assert.Equal(t, 88.5, snap.WalletBalance)
	assert.Equal(t, 150.0, snap.AverageOrderValue())
	require.NotNil(t, snap.DateOfBirth)
	assert.Equal(t, dob, *snap.DateOfBirth)
}

func TestModelHooksAndConstraints(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("SegmentUUIDAssignedOnCreate", func(t *testing.T) {
			segment, err := fixtures.CreateTestSegment("uuid-seg", models.SegmentCriteria{})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, segment.UUID)
		})

		t.Run("TriggerUUIDAssignedOnCreate", func(t *testing.T) {
			trigger, err := fixtures.CreateTestTrigger("uuid-trigger", models.ConditionTotalSpentAbove, 10,
				models.ActionGrantLoyaltyPoints, models.TriggerActionParams{Points: 5})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, trigger.UUID)
		})

		t.Run("WalletUUIDAssignedOnCreate", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer(0)
			require.NoError(t, err)
			require.NotNil(t, customer.Wallet)
			assert.NotEqual(t, uuid.Nil, customer.Wallet.UUID)
		})

		t.Run("DuplicateActiveMembershipRejected", func(t *testing.T) {
			segment, err := fixtures.CreateTestSegment("dup-seg", models.SegmentCriteria{})
			require.NoError(t, err)
			customer, err := fixtures.CreateTestCustomer(0)
			require.NoError(t, err)

			_, err = fixtures.CreateTestMembership(segment.ID, customer.ID)
			require.NoError(t, err)

			_, err = fixtures.CreateTestMembership(segment.ID, customer.ID)
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
