package handlers

import (
	"voucly/internal/models"
	"voucly/internal/services/permission"
	"voucly/internal/services/transferflow"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// TransferHandler exposes the voucher ownership transfer endpoints.
type TransferHandler struct {
	service transferflow.Service
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(s transferflow.Service) *TransferHandler {
	return &TransferHandler{service: s}
}

// CreateTransfer handles POST /transfers.
func (h *TransferHandler) CreateTransfer(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		VoucherCode  string   `json:"voucher_code"`
		FromAddress  string   `json:"from_address"`
		ToAddress    string   `json:"to_address"`
		TransferType string   `json:"transfer_type"`
		Amount       *float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	t, err := h.service.CreateTransfer(c.Context(), transferflow.CreateTransferInput{
		VoucherCode:  req.VoucherCode,
		FromAddress:  req.FromAddress,
		ToAddress:    req.ToAddress,
		TransferType: req.TransferType,
		Amount:       req.Amount,
	}, permission.ActorFromClaims(claims))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, "transfer created", t)
}

// GetTransfer handles GET /transfers/:id.
func (h *TransferHandler) GetTransfer(c *fiber.Ctx) error {
	t, err := h.service.GetTransfer(c.Context(), c.Params("id"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "transfer", t)
}

// ApproveTransfer handles POST /transfers/:id/approve.
func (h *TransferHandler) ApproveTransfer(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		Comment string `json:"comment"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}

	t, err := h.service.ApproveTransfer(c.Context(), c.Params("id"), permission.ActorFromClaims(claims), req.Comment)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "transfer approved", t)
}

// RejectTransfer handles POST /transfers/:id/reject.
func (h *TransferHandler) RejectTransfer(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	t, err := h.service.RejectTransfer(c.Context(), c.Params("id"), permission.ActorFromClaims(claims), req.Reason)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "transfer rejected", t)
}

// GetTransferHistory handles GET /transfers/history/:voucherId.
func (h *TransferHandler) GetTransferHistory(c *fiber.Ctx) error {
	voucherID, err := c.ParamsInt("voucherId")
	if err != nil || voucherID <= 0 {
		return response.BadRequest(c, "invalid voucher id")
	}

	transfers, err := h.service.GetTransferHistory(c.Context(), uint(voucherID))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "transfer history", transfers)
}
