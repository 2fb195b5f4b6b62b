package models

import (
	"time"
)

// TriggerExecution is an append-only audit record of one attempted trigger
// dispatch. Every dispatch, success or failure, writes exactly one row; this
// table is the single source of truth for cooldown and max-execution checks.
type TriggerExecution struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	TriggerID  uint `gorm:"not null;index:idx_trigger_executions_trigger_id;index:idx_trigger_executions_pair,priority:1" json:"trigger_id"`
	CustomerID uint `gorm:"not null;index:idx_trigger_executions_customer_id;index:idx_trigger_executions_pair,priority:2" json:"customer_id"`

	ExecutedAt    time.Time `gorm:"not null;index:idx_trigger_executions_executed_at" json:"executed_at"`
	Success       bool      `gorm:"not null;index:idx_trigger_executions_success" json:"success"`
	ResultMessage string    `gorm:"type:text" json:"result_message"`

	Trigger  Trigger  `gorm:"foreignKey:TriggerID;references:ID" json:"-"`
	Customer Customer `gorm:"foreignKey:CustomerID;references:ID" json:"-"`
}

func (TriggerExecution) TableName() string {
	return "trigger_executions"
}

// TriggerExecutionFilter represents filter criteria for execution queries
type TriggerExecutionFilter struct {
	ID            *uint
	TriggerID     *uint
	CustomerID    *uint
	Success       *bool
	ExecutedAfter *time.Time
}
