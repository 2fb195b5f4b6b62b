// Package businessflow contains the core business logic and use cases for segment and trigger workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAccountInactive  = errors.New("account is inactive")

	// Segment-related errors
	ErrSegmentNotFound        = errors.New("segment not found")
	ErrSegmentInactive        = errors.New("segment is inactive")
	ErrSegmentNameRequired    = errors.New("segment name is required")
	ErrSegmentCriteriaInvalid = errors.New("segment criteria are invalid")
	ErrSegmentUUIDRequired    = errors.New("segment UUID is required")

	// Trigger-related errors
	ErrTriggerNotFound            = errors.New("trigger not found")
	ErrTriggerInactive            = errors.New("trigger is inactive")
	ErrTriggerNameRequired        = errors.New("trigger name is required")
	ErrTriggerUUIDRequired        = errors.New("trigger UUID is required")
	ErrUnknownConditionType       = errors.New("unknown condition type")
	ErrUnknownActionType          = errors.New("unknown action type")
	ErrConditionValueRequired     = errors.New("condition value is required")
	ErrConditionDaysRequired      = errors.New("condition days must be positive")
	ErrActionParamsInvalid        = errors.New("action parameters are invalid")
	ErrTargetSegmentRequired      = errors.New("target segment is required for this action")
	ErrCooldownNegative           = errors.New("cooldown must not be negative")
	ErrMaxExecutionsNegative      = errors.New("max executions must not be negative")
	ErrTriggerHasExecutionHistory = errors.New("trigger has execution history")

	// Governance errors
	ErrCooldownActive      = errors.New("trigger is within its cooldown window")
	ErrExecutionCapReached = errors.New("trigger execution cap reached")
	ErrAlreadyExecutedOnce = errors.New("non-recurring trigger already executed for customer")
	ErrCustomerCapReached  = errors.New("per-customer execution cap reached")

	// Reconciliation errors
	ErrReconciliationConflict = errors.New("segment membership changed concurrently")

	// Batch orchestration errors
	ErrBatchAlreadyRunning = errors.New("a trigger batch is already running")
	ErrBatchCancelled      = errors.New("trigger batch cancelled")

	// Collaborator errors
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrMessagingUnavailable = errors.New("messaging provider unavailable")
	ErrCacheNotAvailable    = errors.New("cache not available")

	// Configuration errors
	ErrWorkerCountInvalid = errors.New("worker count must be positive")
	ErrLeaseTTLInvalid    = errors.New("lease TTL must be positive")
	ErrBatchSizeInvalid   = errors.New("batch size must be positive")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsSegmentNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}

func IsSegmentInactive(err error) bool {
	return errors.Is(err, ErrSegmentInactive)
}

func IsSegmentCriteriaInvalid(err error) bool {
	return errors.Is(err, ErrSegmentCriteriaInvalid)
}

func IsTriggerNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound)
}

func IsTriggerInactive(err error) bool {
	return errors.Is(err, ErrTriggerInactive)
}

func IsUnknownConditionType(err error) bool {
	return errors.Is(err, ErrUnknownConditionType)
}

func IsUnknownActionType(err error) bool {
	return errors.Is(err, ErrUnknownActionType)
}

func IsActionParamsInvalid(err error) bool {
	return errors.Is(err, ErrActionParamsInvalid)
}

func IsCooldownActive(err error) bool {
	return errors.Is(err, ErrCooldownActive)
}

func IsExecutionCapReached(err error) bool {
	return errors.Is(err, ErrExecutionCapReached)
}

func IsAlreadyExecutedOnce(err error) bool {
	return errors.Is(err, ErrAlreadyExecutedOnce)
}

func IsCustomerCapReached(err error) bool {
	return errors.Is(err, ErrCustomerCapReached)
}

func IsReconciliationConflict(err error) bool {
	return errors.Is(err, ErrReconciliationConflict)
}

func IsBatchAlreadyRunning(err error) bool {
	return errors.Is(err, ErrBatchAlreadyRunning)
}

func IsBatchCancelled(err error) bool {
	return errors.Is(err, ErrBatchCancelled)
}

func IsWalletNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}

func IsMessagingUnavailable(err error) bool {
	return errors.Is(err, ErrMessagingUnavailable)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}
