// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sellora/engage/app/dto"
	businessflow "github.com/sellora/engage/business_flow"
	"github.com/sellora/engage/utils"
)

// SegmentHandlerInterface defines the contract for segment handlers
type SegmentHandlerInterface interface {
	RefreshSegment(c fiber.Ctx) error
	RefreshAllSegments(c fiber.Ctx) error
	PreviewSegment(c fiber.Ctx) error
	GetSegment(c fiber.Ctx) error
	ListSegments(c fiber.Ctx) error
}

// SegmentHandler handles segment-related HTTP requests
type SegmentHandler struct {
	segmentFlow businessflow.SegmentFlow
	validator   *validator.Validate
}

func (h *SegmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SegmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(segmentFlow businessflow.SegmentFlow) *SegmentHandler {
	return &SegmentHandler{
		segmentFlow: segmentFlow,
		validator:   validator.New(),
	}
}

// RefreshSegment recalculates membership for one segment
// @Summary Refresh Segment
// @Description Recalculate the membership of a segment from its criteria
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RefreshSegmentResponse} "Segment refreshed successfully"
// @Failure 400 {object} dto.APIResponse "Missing segment UUID"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 409 {object} dto.APIResponse "Concurrent membership change"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid}/refresh [post]
func (h *SegmentHandler) RefreshSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	result, err := h.segmentFlow.RefreshSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID+"/refresh"), segmentUUID)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsSegmentInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Segment is inactive", "SEGMENT_INACTIVE", nil)
		}
		if businessflow.IsReconciliationConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Segment membership changed concurrently", "SEGMENT_RECONCILE_CONFLICT", nil)
		}

		log.Println("Segment refresh failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment refresh failed", "SEGMENT_REFRESH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment refreshed successfully", fiber.Map{
		"uuid":           result.UUID,
		"name":           result.Name,
		"customer_count": result.CustomerCount,
		"activated":      result.Activated,
		"deactivated":    result.Deactivated,
		"match_all":      result.MatchAll,
		"calculated_at":  result.CalculatedAt,
	})
}

// RefreshAllSegments recalculates membership for every active segment
// @Summary Refresh All Segments
// @Description Recalculate membership for every active segment; per-segment failures are isolated
// @Tags Segments
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RefreshAllSegmentsResponse} "Segments refreshed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/refresh-all [post]
func (h *SegmentHandler) RefreshAllSegments(c fiber.Ctx) error {
	result, err := h.segmentFlow.RefreshAllSegments(h.createRequestContextWithTimeout(c, "/api/v1/segments/refresh-all", utils.BatchRequestTimeout))
	if err != nil {
		log.Println("Segment refresh-all failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment refresh failed", "SEGMENT_REFRESH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segments refreshed", fiber.Map{
		"refreshed": result.Refreshed,
		"failed":    result.Failed,
		"results":   result.Results,
		"errors":    result.Errors,
	})
}

// PreviewSegment evaluates criteria without persisting anything
// @Summary Preview Segment
// @Description Evaluate criteria against the customer population without creating a segment
// @Tags Segments
// @Accept json
// @Produce json
// @Param request body dto.PreviewSegmentRequest true "Criteria to evaluate"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewSegmentResponse} "Criteria evaluated"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid criteria"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/preview [post]
func (h *SegmentHandler) PreviewSegment(c fiber.Ctx) error {
	var req dto.PreviewSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.segmentFlow.PreviewSegment(h.createRequestContext(c, "/api/v1/segments/preview"), &req)
	if err != nil {
		if businessflow.IsSegmentCriteriaInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment criteria are invalid", "SEGMENT_CRITERIA_INVALID", nil)
		}

		log.Println("Segment preview failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment preview failed", "SEGMENT_PREVIEW_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Criteria evaluated successfully", fiber.Map{
		"matching_count":      result.MatchingCount,
		"sample_customer_ids": result.SampleCustomerIDs,
		"match_all":           result.MatchAll,
	})
}

// GetSegment returns one segment by UUID
// @Summary Get Segment
// @Description Retrieve a segment with its criteria and cached member count
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetSegmentResponse}
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid} [get]
func (h *SegmentHandler) GetSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	result, err := h.segmentFlow.GetSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID), segmentUUID)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}

		log.Println("Get segment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get segment", "GET_SEGMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment retrieved successfully", result)
}

// ListSegments returns segments with pagination
// @Summary List Segments
// @Description Retrieve segments with pagination, newest first
// @Tags Segments
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListSegmentsResponse}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments [get]
func (h *SegmentHandler) ListSegments(c fiber.Ctx) error {
	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit", "20")); err == nil && v > 0 {
		limit = v
	}

	result, err := h.segmentFlow.ListSegments(h.createRequestContext(c, "/api/v1/segments"), page, limit)
	if err != nil {
		log.Println("List segments failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list segments", "LIST_SEGMENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segments retrieved successfully", fiber.Map{
		"items": result.Items,
		"total": result.Total,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *SegmentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, utils.DefaultRequestTimeout)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *SegmentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	// Create context with custom timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
