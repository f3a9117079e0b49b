package handlers

import (
	"time"

	"voucly/internal/models"
	"voucly/internal/repositories"
	"voucly/internal/services/approval"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// OperationHandler exposes the multi-signature operation endpoints.
type OperationHandler struct {
	service approval.Service
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(s approval.Service) *OperationHandler {
	return &OperationHandler{service: s}
}

// CreateOperation handles POST /operations.
func (h *OperationHandler) CreateOperation(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		OperationType      string      `json:"operation_type"`
		OperationData      models.JSON `json:"operation_data"`
		RequiredSignatures int         `json:"required_signatures"`
		ExpiresAt          *time.Time  `json:"expires_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	op, err := h.service.CreateOperation(c.Context(), approval.CreateOperationInput{
		Type:               req.OperationType,
		Data:               req.OperationData,
		RequiredSignatures: req.RequiredSignatures,
		ExpiresAt:          req.ExpiresAt,
	}, claims.UserID)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, "operation created", op)
}

// GetPendingOperations handles GET /operations/pending.
func (h *OperationHandler) GetPendingOperations(c *fiber.Ctx) error {
	ops, err := h.service.GetPendingOperations(c.Context())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "pending operations", ops)
}

// ListOperations handles GET /operations with optional status and
// operation_type filters.
func (h *OperationHandler) ListOperations(c *fiber.Ctx) error {
	filter := repositories.OperationFilter{
		Status:        c.Query("status"),
		OperationType: c.Query("operation_type"),
		Limit:         c.QueryInt("limit", 50),
		Offset:        c.QueryInt("offset", 0),
	}

	if filter.Status != "" && !validStatusFilter(filter.Status) {
		return response.BadRequest(c, "unknown status filter")
	}
	if filter.OperationType != "" && !models.ValidOperationTypes[filter.OperationType] {
		return response.BadRequest(c, "unknown operation type filter")
	}

	ops, err := h.service.ListOperations(c.Context(), filter)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "operations", ops)
}

// GetOperation handles GET /operations/:id.
func (h *OperationHandler) GetOperation(c *fiber.Ctx) error {
	op, err := h.service.GetOperation(c.Context(), c.Params("id"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "operation", op)
}

// SignOperation handles POST /operations/:id/sign.
func (h *OperationHandler) SignOperation(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		Comment string `json:"comment"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}

	op, err := h.service.AddSignature(c.Context(), c.Params("id"), claims.UserID, req.Comment)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "signature recorded", op)
}

// RejectOperation handles POST /operations/:id/reject.
func (h *OperationHandler) RejectOperation(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	op, err := h.service.RejectOperation(c.Context(), c.Params("id"), claims.UserID, req.Reason)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "operation rejected", op)
}

// ExecuteOperation handles POST /operations/:id/execute.
func (h *OperationHandler) ExecuteOperation(c *fiber.Ctx) error {
	op, err := h.service.ExecuteOperation(c.Context(), c.Params("id"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "operation executed", op)
}

func validStatusFilter(status string) bool {
	switch status {
	case models.OperationStatusPending, models.OperationStatusApproved,
		models.OperationStatusRejected, models.OperationStatusExecuted,
		models.OperationStatusFailed, models.OperationStatusExpired:
		return true
	}
	return false
}
