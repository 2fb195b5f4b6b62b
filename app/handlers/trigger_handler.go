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

// TriggerHandlerInterface defines the contract for trigger handlers
type TriggerHandlerInterface interface {
	RunTriggerBatch(c fiber.Ctx) error
	EvaluateCustomer(c fiber.Ctx) error
	CheckEligibility(c fiber.Ctx) error
	GetTrigger(c fiber.Ctx) error
	ListTriggers(c fiber.Ctx) error
	ListExecutions(c fiber.Ctx) error
}

// TriggerHandler handles trigger-related HTTP requests
type TriggerHandler struct {
	triggerFlow businessflow.TriggerFlow
	validator   *validator.Validate
}

func (h *TriggerHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TriggerHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(triggerFlow businessflow.TriggerFlow) *TriggerHandler {
	return &TriggerHandler{
		triggerFlow: triggerFlow,
		validator:   validator.New(),
	}
}

// RunTriggerBatch kicks off a batch evaluation of all active triggers
// @Summary Run Trigger Batch
// @Description Evaluate every active trigger against the customer population; an overlapping run is reported as skipped
// @Tags Triggers
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RunTriggerBatchResponse} "Batch finished or skipped"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/triggers/run-batch [post]
func (h *TriggerHandler) RunTriggerBatch(c fiber.Ctx) error {
	result, err := h.triggerFlow.RunTriggerBatch(h.createRequestContextWithTimeout(c, "/api/v1/triggers/run-batch", utils.BatchRequestTimeout))
	if err != nil {
		log.Println("Trigger batch failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Trigger batch failed", "TRIGGER_BATCH_FAILED", nil)
	}

	message := "Trigger batch finished"
	if !result.Started {
		message = "Trigger batch skipped"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, fiber.Map{
		"started":            result.Started,
		"skipped_reason":     result.SkippedReason,
		"triggers_evaluated": result.TriggersEvaluated,
		"triggers_skipped":   result.TriggersSkipped,
		"customers_matched":  result.CustomersMatched,
		"dispatched":         result.Dispatched,
		"succeeded":          result.Succeeded,
		"failed":             result.Failed,
		"started_at":         result.StartedAt,
		"finished_at":        result.FinishedAt,
	})
}

// EvaluateCustomer runs all active triggers against one customer
// @Summary Evaluate Customer
// @Description Synchronously evaluate every active trigger for one customer, dispatching eligible actions
// @Tags Triggers
// @Accept json
// @Produce json
// @Param uuid path string true "Customer UUID"
// @Success 200 {object} dto.APIResponse{data=dto.EvaluateCustomerResponse} "Customer evaluated"
// @Failure 400 {object} dto.APIResponse "Missing customer UUID"
// @Failure 404 {object} dto.APIResponse "Customer not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/customers/{uuid}/evaluate [post]
func (h *TriggerHandler) EvaluateCustomer(c fiber.Ctx) error {
	customerUUID := c.Params("uuid")
	if customerUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Customer UUID is required", "MISSING_CUSTOMER_UUID", nil)
	}

	req := &dto.EvaluateCustomerRequest{CustomerUUID: customerUUID}

	result, err := h.triggerFlow.EvaluateCustomerNow(h.createRequestContext(c, "/api/v1/customers/"+customerUUID+"/evaluate"), req)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Customer evaluation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Customer evaluation failed", "CUSTOMER_EVALUATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer evaluated successfully", fiber.Map{
		"customer_id": result.CustomerID,
		"outcomes":    result.Outcomes,
		"dispatched":  result.Dispatched,
	})
}

// CheckEligibility answers condition and cooldown for one pair without dispatching
// @Summary Check Eligibility
// @Description Dry-run eligibility of one customer for one trigger; no action is dispatched and no execution is recorded
// @Tags Triggers
// @Accept json
// @Produce json
// @Param uuid path string true "Trigger UUID"
// @Param customer_id path int true "Customer ID"
// @Success 200 {object} dto.APIResponse{data=dto.EligibilityResponse}
// @Failure 400 {object} dto.APIResponse "Invalid customer ID"
// @Failure 404 {object} dto.APIResponse "Trigger or customer not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/triggers/{uuid}/eligibility/{customer_id} [get]
func (h *TriggerHandler) CheckEligibility(c fiber.Ctx) error {
	triggerUUID := c.Params("uuid")
	if triggerUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Trigger UUID is required", "MISSING_TRIGGER_UUID", nil)
	}

	customerID, err := strconv.ParseUint(c.Params("customer_id"), 10, 32)
	if err != nil || customerID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer ID", "INVALID_CUSTOMER_ID", nil)
	}

	result, err := h.triggerFlow.IsEligible(h.createRequestContext(c, "/api/v1/triggers/"+triggerUUID+"/eligibility"), uint(customerID), triggerUUID)
	if err != nil {
		if businessflow.IsTriggerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Trigger not found", "TRIGGER_NOT_FOUND", nil)
		}
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}

		log.Println("Eligibility check failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Eligibility check failed", "ELIGIBILITY_CHECK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Eligibility checked successfully", fiber.Map{
		"customer_id":       result.CustomerID,
		"trigger_uuid":      result.TriggerUUID,
		"condition_matched": result.ConditionMatched,
		"cooldown_passed":   result.CooldownPassed,
		"eligible":          result.Eligible,
	})
}

// GetTrigger returns one trigger by UUID
// @Summary Get Trigger
// @Description Retrieve a trigger with its condition, action, and cached execution counters
// @Tags Triggers
// @Accept json
// @Produce json
// @Param uuid path string true "Trigger UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetTriggerResponse}
// @Failure 404 {object} dto.APIResponse "Trigger not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/triggers/{uuid} [get]
func (h *TriggerHandler) GetTrigger(c fiber.Ctx) error {
	triggerUUID := c.Params("uuid")
	if triggerUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Trigger UUID is required", "MISSING_TRIGGER_UUID", nil)
	}

	result, err := h.triggerFlow.GetTrigger(h.createRequestContext(c, "/api/v1/triggers/"+triggerUUID), triggerUUID)
	if err != nil {
		if businessflow.IsTriggerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Trigger not found", "TRIGGER_NOT_FOUND", nil)
		}

		log.Println("Get trigger failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get trigger", "GET_TRIGGER_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Trigger retrieved successfully", result)
}

// ListTriggers returns triggers with pagination
// @Summary List Triggers
// @Description Retrieve triggers with pagination, newest first
// @Tags Triggers
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListTriggersResponse}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/triggers [get]
func (h *TriggerHandler) ListTriggers(c fiber.Ctx) error {
	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit", "20")); err == nil && v > 0 {
		limit = v
	}

	result, err := h.triggerFlow.ListTriggers(h.createRequestContext(c, "/api/v1/triggers"), page, limit)
	if err != nil {
		log.Println("List triggers failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list triggers", "LIST_TRIGGERS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Triggers retrieved successfully", fiber.Map{
		"items": result.Items,
		"total": result.Total,
	})
}

// ListExecutions returns the execution audit log for one trigger
// @Summary List Trigger Executions
// @Description Retrieve the execution history of a trigger with pagination, newest first
// @Tags Triggers
// @Accept json
// @Produce json
// @Param uuid path string true "Trigger UUID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListExecutionsResponse}
// @Failure 404 {object} dto.APIResponse "Trigger not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/triggers/{uuid}/executions [get]
func (h *TriggerHandler) ListExecutions(c fiber.Ctx) error {
	triggerUUID := c.Params("uuid")
	if triggerUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Trigger UUID is required", "MISSING_TRIGGER_UUID", nil)
	}

	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit", "20")); err == nil && v > 0 {
		limit = v
	}

	result, err := h.triggerFlow.ListExecutions(h.createRequestContext(c, "/api/v1/triggers/"+triggerUUID+"/executions"), triggerUUID, page, limit)
	if err != nil {
		if businessflow.IsTriggerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Trigger not found", "TRIGGER_NOT_FOUND", nil)
		}

		log.Println("List executions failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list executions", "LIST_EXECUTIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Executions retrieved successfully", fiber.Map{
		"items": result.Items,
		"total": result.Total,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *TriggerHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, utils.DefaultRequestTimeout)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *TriggerHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
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
