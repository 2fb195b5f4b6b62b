package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TriggerConditionType identifies the customer attribute and direction a
// trigger's condition tests.
type TriggerConditionType string

const (
	ConditionTotalSpentAbove    TriggerConditionType = "total_spent_above"
	ConditionTotalSpentBelow    TriggerConditionType = "total_spent_below"
	ConditionLoyaltyPointsAbove TriggerConditionType = "loyalty_points_above"
	ConditionLoyaltyPointsBelow TriggerConditionType = "loyalty_points_below"
	ConditionVisitCountAbove    TriggerConditionType = "visit_count_above"
	ConditionVisitCountBelow    TriggerConditionType = "visit_count_below"
	ConditionAvgOrderValueAbove TriggerConditionType = "avg_order_value_above"
	ConditionAvgOrderValueBelow TriggerConditionType = "avg_order_value_below"
	ConditionWalletBalanceAbove TriggerConditionType = "wallet_balance_above"
	ConditionWalletBalanceBelow TriggerConditionType = "wallet_balance_below"
	ConditionInactiveForDays    TriggerConditionType = "inactive_for_days"
	ConditionBirthdayThisMonth  TriggerConditionType = "birthday_this_month"
	ConditionMembershipExpiring TriggerConditionType = "membership_expiring"
)

// String returns the string representation of the condition type
func (t TriggerConditionType) String() string {
	return string(t)
}

// Valid checks if the condition type is valid
func (t TriggerConditionType) Valid() bool {
	switch t {
	case ConditionTotalSpentAbove, ConditionTotalSpentBelow,
		ConditionLoyaltyPointsAbove, ConditionLoyaltyPointsBelow,
		ConditionVisitCountAbove, ConditionVisitCountBelow,
		ConditionAvgOrderValueAbove, ConditionAvgOrderValueBelow,
		ConditionWalletBalanceAbove, ConditionWalletBalanceBelow,
		ConditionInactiveForDays, ConditionBirthdayThisMonth,
		ConditionMembershipExpiring:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TriggerConditionType
func (t *TriggerConditionType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = TriggerConditionType(v)
	case []byte:
		*t = TriggerConditionType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TriggerConditionType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TriggerConditionType
func (t TriggerConditionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid TriggerConditionType: %s", t)
	}
	return string(t), nil
}

// TriggerActionType identifies what a trigger does when it fires.
type TriggerActionType string

const (
	ActionSendNotification      TriggerActionType = "send_notification"
	ActionAddToSegment          TriggerActionType = "add_to_segment"
	ActionGrantLoyaltyPoints    TriggerActionType = "grant_loyalty_points"
	ActionApplyDiscount         TriggerActionType = "apply_discount"
	ActionAddWalletFunds        TriggerActionType = "add_wallet_funds"
	ActionSendPersonalizedOffer TriggerActionType = "send_personalized_offer"
)

// String returns the string representation of the action type
func (t TriggerActionType) String() string {
	return string(t)
}

// Valid checks if the action type is valid
func (t TriggerActionType) Valid() bool {
	switch t {
	case ActionSendNotification, ActionAddToSegment, ActionGrantLoyaltyPoints,
		ActionApplyDiscount, ActionAddWalletFunds, ActionSendPersonalizedOffer:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TriggerActionType
func (t *TriggerActionType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = TriggerActionType(v)
	case []byte:
		*t = TriggerActionType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TriggerActionType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TriggerActionType
func (t TriggerActionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid TriggerActionType: %s", t)
	}
	return string(t), nil
}

// TriggerActionParams carries the opaque per-action configuration. Only the
// handler for the configured action type interprets it.
type TriggerActionParams struct {
	// send_notification / send_personalized_offer / apply_discount
	Channel string `json:"channel,omitempty"` // "sms" or "email"
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`

	// grant_loyalty_points
	Points int `json:"points,omitempty"`

	// add_wallet_funds
	Amount float64 `json:"amount,omitempty"`

	// add_to_segment
	SegmentID uint `json:"segment_id,omitempty"`

	// apply_discount / send_personalized_offer
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	OfferCode       string  `json:"offer_code,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Value implements the driver.Valuer interface for TriggerActionParams
func (p TriggerActionParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for TriggerActionParams
func (p *TriggerActionParams) Scan(value any) error {
	if value == nil {
		*p = TriggerActionParams{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TriggerActionParams", value)
	}

	return json.Unmarshal(bytes, p)
}

// Trigger is a condition/action rule evaluated against the customer
// population, governed by cooldown and execution caps.
type Trigger struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_triggers_uuid" json:"uuid"`

	Name        string  `gorm:"size:255;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	ConditionType  TriggerConditionType `gorm:"type:varchar(40);not null;index:idx_triggers_condition_type" json:"condition_type"`
	ConditionValue float64              `gorm:"not null;default:0" json:"condition_value"`
	ConditionDays  int                  `gorm:"not null;default:0" json:"condition_days"`

	ActionType   TriggerActionType   `gorm:"type:varchar(40);not null;index:idx_triggers_action_type" json:"action_type"`
	ActionParams TriggerActionParams `gorm:"type:jsonb;not null;default:'{}'" json:"action_params"`

	// Restricts eligible customers to active members of this segment
	TargetSegmentID *uint    `gorm:"index:idx_triggers_target_segment_id" json:"target_segment_id,omitempty"`
	TargetSegment   *Segment `gorm:"foreignKey:TargetSegmentID;references:ID" json:"-"`

	IsActive    *bool `gorm:"default:true;index:idx_triggers_is_active" json:"is_active"`
	IsRecurring bool  `gorm:"not null;default:false" json:"is_recurring"`

	// Cooldown window. For non-recurring triggers the window gates the whole
	// trigger from its last successful execution; for recurring triggers it
	// gates each customer from their own last successful execution.
	CooldownHours   int `gorm:"not null;default:0" json:"cooldown_hours"`
	CooldownMinutes int `gorm:"not null;default:0" json:"cooldown_minutes"`

	MaxExecutions            *int `json:"max_executions,omitempty"`
	MaxExecutionsPerCustomer *int `json:"max_executions_per_customer,omitempty"`

	// Cached counters. The execution log is authoritative; these are
	// recomputable from it (TriggerRepository.RecalculateCounters).
	ExecutionCount int        `gorm:"not null;default:0" json:"execution_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Executions []TriggerExecution `gorm:"foreignKey:TriggerID" json:"-"`
}

func (Trigger) TableName() string {
	return "triggers"
}

// BeforeCreate ensures UUID is set
func (t *Trigger) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// CooldownWindow returns the configured cooldown as a duration.
func (t *Trigger) CooldownWindow() time.Duration {
	return time.Duration(t.CooldownHours)*time.Hour + time.Duration(t.CooldownMinutes)*time.Minute
}

// TriggerFilter represents filter criteria for trigger queries
type TriggerFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Name            *string
	ConditionType   *TriggerConditionType
	ActionType      *TriggerActionType
	TargetSegmentID *uint
	IsActive        *bool
	IsRecurring     *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
