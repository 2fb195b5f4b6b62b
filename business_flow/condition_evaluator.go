package businessflow

import (
	"time"

	"github.com/sellora/engage/models"
)

// EvaluateCondition reports whether a customer snapshot satisfies a trigger's
// condition at the given time. Pure: it never consults execution history
// (cooldown is CooldownGuard's concern) and never reads the wall clock. A
// condition that depends on a missing optional snapshot attribute evaluates
// false; an unknown condition type also evaluates false.
func EvaluateCondition(snap models.CustomerSnapshot, trigger *models.Trigger, now time.Time) bool {
	switch trigger.ConditionType {
	case models.ConditionTotalSpentAbove:
		return snap.TotalSpent > trigger.ConditionValue
	case models.ConditionTotalSpentBelow:
		return snap.TotalSpent < trigger.ConditionValue
	case models.ConditionLoyaltyPointsAbove:
		return float64(snap.LoyaltyPoints) > trigger.ConditionValue
	case models.ConditionLoyaltyPointsBelow:
		return float64(snap.LoyaltyPoints) < trigger.ConditionValue
	case models.ConditionVisitCountAbove:
		return float64(snap.TotalVisits) > trigger.ConditionValue
	case models.ConditionVisitCountBelow:
		return float64(snap.TotalVisits) < trigger.ConditionValue
	case models.ConditionAvgOrderValueAbove:
		return snap.AverageOrderValue() > trigger.ConditionValue
	case models.ConditionAvgOrderValueBelow:
		return snap.AverageOrderValue() < trigger.ConditionValue
	case models.ConditionWalletBalanceAbove:
		return snap.WalletBalance > trigger.ConditionValue
	case models.ConditionWalletBalanceBelow:
		return snap.WalletBalance < trigger.ConditionValue
	case models.ConditionInactiveForDays:
		if snap.LastActivityAt == nil {
			return false
		}
		return daysBetween(*snap.LastActivityAt, now) >= trigger.ConditionDays
	case models.ConditionBirthdayThisMonth:
		if snap.DateOfBirth == nil {
			return false
		}
		return snap.DateOfBirth.Month() == now.Month()
	case models.ConditionMembershipExpiring:
		if snap.MembershipExpiryDate == nil {
			return false
		}
		if snap.MembershipExpiryDate.Before(now) {
			return false
		}
		return daysBetween(now, *snap.MembershipExpiryDate) <= trigger.ConditionDays
	default:
		return false
	}
}

// ValidateTrigger rejects malformed trigger definitions at creation time.
func ValidateTrigger(trigger *models.Trigger) error {
	if trigger.Name == "" {
		return ErrTriggerNameRequired
	}
	if !trigger.ConditionType.Valid() {
		return ErrUnknownConditionType
	}
	if !trigger.ActionType.Valid() {
		return ErrUnknownActionType
	}
	if trigger.CooldownHours < 0 || trigger.CooldownMinutes < 0 {
		return ErrCooldownNegative
	}
	if trigger.MaxExecutions != nil && *trigger.MaxExecutions < 0 {
		return ErrMaxExecutionsNegative
	}
	if trigger.MaxExecutionsPerCustomer != nil && *trigger.MaxExecutionsPerCustomer < 0 {
		return ErrMaxExecutionsNegative
	}

	switch trigger.ConditionType {
	case models.ConditionInactiveForDays, models.ConditionMembershipExpiring:
		if trigger.ConditionDays <= 0 {
			return ErrConditionDaysRequired
		}
	}

	switch trigger.ActionType {
	case models.ActionGrantLoyaltyPoints:
		if trigger.ActionParams.Points <= 0 {
			return ErrActionParamsInvalid
		}
	case models.ActionAddWalletFunds:
		if trigger.ActionParams.Amount <= 0 {
			return ErrActionParamsInvalid
		}
	case models.ActionAddToSegment:
		if trigger.ActionParams.SegmentID == 0 {
			return ErrActionParamsInvalid
		}
	case models.ActionSendNotification, models.ActionSendPersonalizedOffer:
		if trigger.ActionParams.Message == "" {
			return ErrActionParamsInvalid
		}
	case models.ActionApplyDiscount:
		if trigger.ActionParams.DiscountPercent <= 0 || trigger.ActionParams.DiscountPercent > 100 {
			return ErrActionParamsInvalid
		}
	}

	return nil
}
