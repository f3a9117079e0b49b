package handlers

import (
	"voucly/internal/services/sweeper"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// MaintenanceHandler exposes administrative maintenance triggers.
type MaintenanceHandler struct {
	sweeper *sweeper.Sweeper
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(s *sweeper.Sweeper) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: s}
}

// RunExpiry handles POST /maintenance/expire. It runs one expiry pass
// immediately instead of waiting for the next scheduled sweep.
func (h *MaintenanceHandler) RunExpiry(c *fiber.Ctx) error {
	expiredOps, closedTransfers, err := h.sweeper.RunOnce(c.Context())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "expiry pass complete", fiber.Map{
		"expired_operations":     expiredOps,
		"closed_stale_transfers": closedTransfers,
	})
}
