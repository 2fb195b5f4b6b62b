package businessflow

import (
	"slices"
	"time"

	"github.com/sellora/engage/models"
)

// CriteriaMatches reports whether a customer snapshot satisfies segment
// criteria at the given time. It is a total function: contradictory bounds
// (e.g. min above max) match nobody, and a criteria field that depends on a
// missing optional snapshot attribute evaluates false rather than erroring.
// The caller supplies now so that evaluation stays deterministic.
func CriteriaMatches(snap models.CustomerSnapshot, criteria models.SegmentCriteria, now time.Time) bool {
	if criteria.MinTotalSpent != nil && snap.TotalSpent < *criteria.MinTotalSpent {
		return false
	}
	if criteria.MaxTotalSpent != nil && snap.TotalSpent > *criteria.MaxTotalSpent {
		return false
	}

	if criteria.MinTotalVisits != nil && snap.TotalVisits < *criteria.MinTotalVisits {
		return false
	}
	if criteria.MaxTotalVisits != nil && snap.TotalVisits > *criteria.MaxTotalVisits {
		return false
	}

	if criteria.MinLoyaltyPoints != nil && snap.LoyaltyPoints < *criteria.MinLoyaltyPoints {
		return false
	}
	if criteria.MaxLoyaltyPoints != nil && snap.LoyaltyPoints > *criteria.MaxLoyaltyPoints {
		return false
	}

	if criteria.MinWalletBalance != nil && snap.WalletBalance < *criteria.MinWalletBalance {
		return false
	}
	if criteria.MaxWalletBalance != nil && snap.WalletBalance > *criteria.MaxWalletBalance {
		return false
	}

	if criteria.MinAvgOrderValue != nil && snap.AverageOrderValue() < *criteria.MinAvgOrderValue {
		return false
	}
	if criteria.MaxAvgOrderValue != nil && snap.AverageOrderValue() > *criteria.MaxAvgOrderValue {
		return false
	}

	if len(criteria.MembershipLevelIDs) > 0 && !slices.Contains(criteria.MembershipLevelIDs, snap.MembershipLevelID) {
		return false
	}

	if criteria.InactiveForAtLeastDays != nil || criteria.InactiveForAtMostDays != nil {
		if snap.LastActivityAt == nil {
			return false
		}
		inactiveDays := daysBetween(*snap.LastActivityAt, now)
		if criteria.InactiveForAtLeastDays != nil && inactiveDays < *criteria.InactiveForAtLeastDays {
			return false
		}
		if criteria.InactiveForAtMostDays != nil && inactiveDays > *criteria.InactiveForAtMostDays {
			return false
		}
	}

	if criteria.BirthdayThisMonth != nil {
		if snap.DateOfBirth == nil {
			return false
		}
		inMonth := snap.DateOfBirth.Month() == now.Month()
		if inMonth != *criteria.BirthdayThisMonth {
			return false
		}
	}

	if criteria.AccountAgeAtLeastDays != nil && snap.AccountAgeDays(now) < *criteria.AccountAgeAtLeastDays {
		return false
	}
	if criteria.AccountAgeAtMostDays != nil && snap.AccountAgeDays(now) > *criteria.AccountAgeAtMostDays {
		return false
	}

	return true
}

// ValidateCriteria rejects malformed criteria at creation time so they never
// reach the evaluator. Contradictory bounds are legal (they match nobody);
// negative values are not.
func ValidateCriteria(criteria models.SegmentCriteria) error {
	for _, v := range []*float64{criteria.MinTotalSpent, criteria.MaxTotalSpent,
		criteria.MinWalletBalance, criteria.MaxWalletBalance,
		criteria.MinAvgOrderValue, criteria.MaxAvgOrderValue} {
		if v != nil && *v < 0 {
			return ErrSegmentCriteriaInvalid
		}
	}
	for _, v := range []*int{criteria.MinTotalVisits, criteria.MaxTotalVisits,
		criteria.MinLoyaltyPoints, criteria.MaxLoyaltyPoints,
		criteria.InactiveForAtLeastDays, criteria.InactiveForAtMostDays,
		criteria.AccountAgeAtLeastDays, criteria.AccountAgeAtMostDays} {
		if v != nil && *v < 0 {
			return ErrSegmentCriteriaInvalid
		}
	}
	return nil
}

// daysBetween returns whole days from a past time to now; zero when the
// "past" time is actually in the future.
func daysBetween(past, now time.Time) int {
	if now.Before(past) {
		return 0
	}
	return int(now.Sub(past).Hours() / 24)
}
