package businessflow

import (
	"testing"
	"time"

	"github.com/sellora/engage/models"
	"github.com/sellora/engage/utils"
	"github.com/stretchr/testify/assert"
)

func thresholdTrigger(condType models.TriggerConditionType, value float64) *models.Trigger {
	return &models.Trigger{
		ID:             1,
		Name:           "test trigger",
		ConditionType:  condType,
		ConditionValue: value,
		ActionType:     models.ActionSendNotification,
		IsActive:       utils.ToPtr(true),
	}
}

func TestEvaluateCondition(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ThresholdConditions", func(t *testing.T) {
		snap := testSnapshot() // spent=600 points=150 visits=12 wallet=80 avg=100

		cases := []struct {
			name     string
			condType models.TriggerConditionType
			value    float64
			want     bool
		}{
			{"TotalSpentAbove", models.ConditionTotalSpentAbove, 500, true},
			{"TotalSpentAboveExact", models.ConditionTotalSpentAbove, 600, false},
			{"TotalSpentBelow", models.ConditionTotalSpentBelow, 700, true},
			{"LoyaltyPointsAbove", models.ConditionLoyaltyPointsAbove, 100, true},
			{"LoyaltyPointsBelow", models.ConditionLoyaltyPointsBelow, 100, false},
			{"VisitCountAbove", models.ConditionVisitCountAbove, 10, true},
			{"VisitCountBelow", models.ConditionVisitCountBelow, 10, false},
			{"AvgOrderValueAbove", models.ConditionAvgOrderValueAbove, 90, true},
			{"AvgOrderValueBelow", models.ConditionAvgOrderValueBelow, 90, false},
			{"WalletBalanceAbove", models.ConditionWalletBalanceAbove, 50, true},
			{"WalletBalanceBelow", models.ConditionWalletBalanceBelow, 50, false},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				trigger := thresholdTrigger(tc.condType, tc.value)
				assert.Equal(t, tc.want, EvaluateCondition(snap, trigger, now))
			})
		}
	})

	t.Run("InactiveForDays", func(t *testing.T) {
		snap := testSnapshot() // last activity 50 days ago
		trigger := thresholdTrigger(models.ConditionInactiveForDays, 0)
		trigger.ConditionDays = 30
		assert.True(t, EvaluateCondition(snap, trigger, now))

		trigger.ConditionDays = 60
		assert.False(t, EvaluateCondition(snap, trigger, now))

		snap.LastActivityAt = nil
		trigger.ConditionDays = 1
		assert.False(t, EvaluateCondition(snap, trigger, now))
	})

	t.Run("BirthdayThisMonth", func(t *testing.T) {
		snap := testSnapshot() // born in March
		trigger := thresholdTrigger(models.ConditionBirthdayThisMonth, 0)

		assert.True(t, EvaluateCondition(snap, trigger, now))
		assert.False(t, EvaluateCondition(snap, trigger, now.AddDate(0, 2, 0)))

		snap.DateOfBirth = nil
		assert.False(t, EvaluateCondition(snap, trigger, now))
	})

	t.Run("MembershipExpiring", func(t *testing.T) {
		snap := testSnapshot()
		expiry := now.AddDate(0, 0, 10)
		snap.MembershipExpiryDate = &expiry

		trigger := thresholdTrigger(models.ConditionMembershipExpiring, 0)
		trigger.ConditionDays = 14
		assert.True(t, EvaluateCondition(snap, trigger, now))

		trigger.ConditionDays = 5
		assert.False(t, EvaluateCondition(snap, trigger, now))

		// Already expired memberships are not "expiring".
		past := now.AddDate(0, 0, -1)
		snap.MembershipExpiryDate = &past
		trigger.ConditionDays = 14
		assert.False(t, EvaluateCondition(snap, trigger, now))

		snap.MembershipExpiryDate = nil
		assert.False(t, EvaluateCondition(snap, trigger, now))
	})

	t.Run("UnknownConditionType", func(t *testing.T) {
		snap := testSnapshot()
		trigger := thresholdTrigger("no_such_condition", 1)
		assert.False(t, EvaluateCondition(snap, trigger, now))
	})

	t.Run("Deterministic", func(t *testing.T) {
		snap := testSnapshot()
		trigger := thresholdTrigger(models.ConditionTotalSpentAbove, 500)
		first := EvaluateCondition(snap, trigger, now)
		for i := 0; i < 100; i++ {
			assert.Equal(t, first, EvaluateCondition(snap, trigger, now))
		}
	})
}

func TestValidateTrigger(t *testing.T) {
	valid := func() *models.Trigger {
		return &models.Trigger{
			Name:           "low points nudge",
			ConditionType:  models.ConditionLoyaltyPointsBelow,
			ConditionValue: 50,
			ActionType:     models.ActionGrantLoyaltyPoints,
			ActionParams:   models.TriggerActionParams{Points: 10},
			IsActive:       utils.ToPtr(true),
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, ValidateTrigger(valid()))
	})

	t.Run("NameRequired", func(t *testing.T) {
		tr := valid()
		tr.Name = ""
		assert.ErrorIs(t, ValidateTrigger(tr), ErrTriggerNameRequired)
	})

	t.Run("UnknownTypes", func(t *testing.T) {
		tr := valid()
		tr.ConditionType = "bogus"
		assert.ErrorIs(t, ValidateTrigger(tr), ErrUnknownConditionType)

		tr = valid()
		tr.ActionType = "bogus"
		assert.ErrorIs(t, ValidateTrigger(tr), ErrUnknownActionType)
	})

	t.Run("NegativeCooldown", func(t *testing.T) {
		tr := valid()
		tr.CooldownHours = -1
		assert.ErrorIs(t, ValidateTrigger(tr), ErrCooldownNegative)
	})

	t.Run("ConditionDaysRequired", func(t *testing.T) {
		tr := valid()
		tr.ConditionType = models.ConditionInactiveForDays
		tr.ConditionDays = 0
		assert.ErrorIs(t, ValidateTrigger(tr), ErrConditionDaysRequired)
	})

	t.Run("ActionParams", func(t *testing.T) {
		tr := valid()
		tr.ActionParams.Points = 0
		assert.ErrorIs(t, ValidateTrigger(tr), ErrActionParamsInvalid)

		tr = valid()
		tr.ActionType = models.ActionAddWalletFunds
		tr.ActionParams = models.TriggerActionParams{Amount: 0}
		assert.ErrorIs(t, ValidateTrigger(tr), ErrActionParamsInvalid)

		tr = valid()
		tr.ActionType = models.ActionAddToSegment
		tr.ActionParams = models.TriggerActionParams{}
		assert.ErrorIs(t, ValidateTrigger(tr), ErrActionParamsInvalid)

		tr = valid()
		tr.ActionType = models.ActionApplyDiscount
		tr.ActionParams = models.TriggerActionParams{DiscountPercent: 120}
		assert.ErrorIs(t, ValidateTrigger(tr), ErrActionParamsInvalid)
	})
}
