package handlers

import (
	"voucly/internal/repositories"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports service liveness and dependency reachability.
type HealthHandler struct{}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if sqlDB, err := repositories.DB.DB(); err != nil || sqlDB.PingContext(c.Context()) != nil {
		dbStatus = "unreachable"
	}

	cacheStatus := "ok"
	if repositories.CacheService == nil || repositories.CacheService.Ping(c.Context()) != nil {
		cacheStatus = "unreachable"
	}

	status := fiber.Map{
		"database": dbStatus,
		"cache":    cacheStatus,
	}
	if dbStatus != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"message": "degraded",
			"data":    status,
		})
	}
	return response.Success(c, "healthy", status)
}
