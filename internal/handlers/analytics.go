package handlers

import (
	"voucly/internal/services/approval"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// AnalyticsHandler serves aggregate workflow metrics.
type AnalyticsHandler struct {
	approvals approval.Service
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(approvals approval.Service) *AnalyticsHandler {
	return &AnalyticsHandler{approvals: approvals}
}

// GetOperationStats handles GET /analytics/operations. It reports operation
// counts per status and the average approval latency in seconds.
func (h *AnalyticsHandler) GetOperationStats(c *fiber.Ctx) error {
	stats, err := h.approvals.Stats(c.Context())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "operation stats", stats)
}
