package dto

import (
	"time"

	"github.com/sellora/engage/models"
)

// RefreshSegmentRequest represents the request to recalculate one segment
type RefreshSegmentRequest struct {
	UUID string `json:"-"`
}

// RefreshSegmentResponse represents the outcome of one segment refresh
type RefreshSegmentResponse struct {
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	CustomerCount int       `json:"customer_count"`
	Activated     int       `json:"activated"`
	Deactivated   int       `json:"deactivated"`
	MatchAll      bool      `json:"match_all"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

// RefreshAllSegmentsResponse represents the outcome of a full refresh pass
type RefreshAllSegmentsResponse struct {
	Refreshed int                      `json:"refreshed"`
	Failed    int                      `json:"failed"`
	Results   []RefreshSegmentResponse `json:"results"`
	Errors    []string                 `json:"errors,omitempty"`
}

// PreviewSegmentRequest carries criteria to evaluate without persisting anything
type PreviewSegmentRequest struct {
	Criteria models.SegmentCriteria `json:"criteria"`
}

// PreviewSegmentResponse reports how many customers the criteria would match
type PreviewSegmentResponse struct {
	MatchingCount     int    `json:"matching_count"`
	SampleCustomerIDs []uint `json:"sample_customer_ids,omitempty"`
	MatchAll          bool   `json:"match_all"`
}

// GetSegmentResponse represents a segment in list/detail responses
type GetSegmentResponse struct {
	UUID             string                 `json:"uuid"`
	Name             string                 `json:"name"`
	Description      *string                `json:"description,omitempty"`
	Criteria         models.SegmentCriteria `json:"criteria"`
	AutoRefresh      bool                   `json:"auto_refresh"`
	IsActive         bool                   `json:"is_active"`
	CustomerCount    int                    `json:"customer_count"`
	LastCalculatedAt *time.Time             `json:"last_calculated_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ListSegmentsResponse represents the segment listing response
type ListSegmentsResponse struct {
	Items []GetSegmentResponse `json:"items"`
	Total int64                `json:"total"`
}
