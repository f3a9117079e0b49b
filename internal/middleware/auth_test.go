package middleware

import (
	"net/http/httptest"
	"testing"

	"voucly/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operationApp(claims *models.UserClaims) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if claims != nil {
			c.Locals("claims", claims)
		}
		return c.Next()
	})
	app.Post("/operations", RequireOperationManager, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireOperationManager(t *testing.T) {
	tests := []struct {
		name       string
		claims     *models.UserClaims
		wantStatus int
	}{
		{
			name:       "admin is admitted",
			claims:     &models.UserClaims{UserID: 1, Role: models.RoleAdmin},
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "merchant is refused",
			claims:     &models.UserClaims{UserID: 2, Role: models.RoleMerchant},
			wantStatus: fiber.StatusForbidden,
		},
		{
			name:       "regular user is refused",
			claims:     &models.UserClaims{UserID: 3, Role: models.RoleUser},
			wantStatus: fiber.StatusForbidden,
		},
		{
			name:       "missing claims",
			claims:     nil,
			wantStatus: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := operationApp(tt.claims)
			req := httptest.NewRequest("POST", "/operations", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
