package dto

import (
	"time"
)

// RunTriggerBatchResponse represents the outcome of one batch run
type RunTriggerBatchResponse struct {
	Started           bool      `json:"started"`
	SkippedReason     string    `json:"skipped_reason,omitempty"`
	TriggersEvaluated int       `json:"triggers_evaluated"`
	TriggersSkipped   int       `json:"triggers_skipped"`
	CustomersMatched  int       `json:"customers_matched"`
	Dispatched        int       `json:"dispatched"`
	Succeeded         int       `json:"succeeded"`
	Failed            int       `json:"failed"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// EvaluateCustomerRequest identifies the customer for a synchronous pass
type EvaluateCustomerRequest struct {
	CustomerUUID string `json:"-"`
}

// TriggerOutcome describes what one trigger did for the evaluated customer
type TriggerOutcome struct {
	TriggerUUID string `json:"trigger_uuid"`
	TriggerName string `json:"trigger_name"`
	Matched     bool   `json:"matched"`
	Dispatched  bool   `json:"dispatched"`
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
}

// EvaluateCustomerResponse represents the outcome of a single-customer pass
type EvaluateCustomerResponse struct {
	CustomerID uint             `json:"customer_id"`
	Outcomes   []TriggerOutcome `json:"outcomes"`
	Dispatched int              `json:"dispatched"`
}

// EligibilityResponse is the dry-run answer for one (customer, trigger) pair
type EligibilityResponse struct {
	CustomerID       uint   `json:"customer_id"`
	TriggerUUID      string `json:"trigger_uuid"`
	ConditionMatched bool   `json:"condition_matched"`
	CooldownPassed   bool   `json:"cooldown_passed"`
	Eligible         bool   `json:"eligible"`
}

// GetTriggerResponse represents a trigger in list/detail responses
type GetTriggerResponse struct {
	UUID            string     `json:"uuid"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	ConditionType   string     `json:"condition_type"`
	ConditionValue  float64    `json:"condition_value"`
	ConditionDays   int        `json:"condition_days"`
	ActionType      string     `json:"action_type"`
	IsActive        bool       `json:"is_active"`
	IsRecurring     bool       `json:"is_recurring"`
	CooldownHours   int        `json:"cooldown_hours"`
	CooldownMinutes int        `json:"cooldown_minutes"`
	ExecutionCount  int        `json:"execution_count"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListTriggersResponse represents the trigger listing response
type ListTriggersResponse struct {
	Items []GetTriggerResponse `json:"items"`
	Total int64                `json:"total"`
}

// ListExecutionsResponse represents the execution history listing for a trigger
type ListExecutionsResponse struct {
	Items []ExecutionItem `json:"items"`
	Total int64           `json:"total"`
}

// ExecutionItem represents one audit row in responses
type ExecutionItem struct {
	ID            uint      `json:"id"`
	CustomerID    uint      `json:"customer_id"`
	ExecutedAt    time.Time `json:"executed_at"`
	Success       bool      `json:"success"`
	ResultMessage string    `json:"result_message,omitempty"`
}
