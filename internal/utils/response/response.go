package response

import (
	apperr "voucly/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

// DomainError maps a coded domain error onto its HTTP contract. Every
// enumerated error kind has a specific status; only uncoded errors fall
// through to 500.
func DomainError(c *fiber.Ctx, err error) error {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation, apperr.CodeInvalidState, apperr.CodeDuplicateSignature:
		return BadRequest(c, err.Error())
	case apperr.CodeNotFound:
		return Error(c, fiber.StatusNotFound, err.Error())
	case apperr.CodePermissionDenied:
		return Error(c, fiber.StatusForbidden, err.Error())
	case apperr.CodeConcurrencyConflict:
		return Error(c, fiber.StatusConflict, err.Error())
	case apperr.CodeLedger:
		return Error(c, fiber.StatusBadGateway, err.Error())
	}
	return ServerError(c, err.Error())
}
