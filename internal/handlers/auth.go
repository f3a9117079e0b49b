package handlers

import (
	"voucly/internal/models"
	"voucly/internal/services/auth"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	service auth.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s auth.Service) *AuthHandler {
	return &AuthHandler{service: s}
}

// Login handles POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "email and password are required")
	}

	user, accessToken, refreshToken, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		return response.Unauthorized(c)
	}

	return response.Success(c, "login successful", fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": fiber.Map{
			"id":          user.ID,
			"email":       user.Email,
			"role":        user.Role,
			"merchant_id": user.MerchantID,
		},
	})
}

// Refresh handles POST /refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "refresh_token is required")
	}

	accessToken, refreshToken, err := h.service.RefreshTokens(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c)
	}

	return response.Success(c, "tokens refreshed", fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// Logout handles POST /logout. Incrementing the token version invalidates
// every previously issued token for the user.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	if err := h.service.Logout(claims.UserID); err != nil {
		return response.ServerError(c, "failed to log out")
	}
	return response.Success(c, "logged out", nil)
}
