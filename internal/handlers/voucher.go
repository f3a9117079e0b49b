package handlers

import (
	"voucly/internal/models"
	"voucly/internal/services/permission"
	"voucly/internal/services/qr"
	"voucly/internal/services/voucher"
	"voucly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// VoucherHandler exposes the voucher directory endpoints.
type VoucherHandler struct {
	service voucher.Service
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(s voucher.Service) *VoucherHandler {
	return &VoucherHandler{service: s}
}

// IssueVoucher handles POST /vouchers.
func (h *VoucherHandler) IssueVoucher(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var req voucher.IssueVoucherInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	v, err := h.service.IssueVoucher(c.Context(), req, permission.ActorFromClaims(claims))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Created(c, "voucher issued", v)
}

// GetVoucher handles GET /vouchers/:code.
func (h *VoucherHandler) GetVoucher(c *fiber.Ctx) error {
	v, err := h.service.GetVoucherByCode(c.Context(), c.Params("code"))
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "voucher", v)
}

// ListMerchantVouchers handles GET /vouchers/merchant/:merchantId.
func (h *VoucherHandler) ListMerchantVouchers(c *fiber.Ctx) error {
	merchantID, err := c.ParamsInt("merchantId")
	if err != nil || merchantID <= 0 {
		return response.BadRequest(c, "invalid merchant id")
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	vouchers, err := h.service.ListMerchantVouchers(c.Context(), uint(merchantID), limit, offset)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "merchant vouchers", vouchers)
}

// VerifyLabel handles POST /vouchers/verify-label.
func (h *VoucherHandler) VerifyLabel(c *fiber.Ctx) error {
	var label qr.Label
	if err := c.BodyParser(&label); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if label.Code == "" || label.Signature == "" {
		return response.BadRequest(c, "code and signature are required")
	}
	return response.Success(c, "label verified", fiber.Map{"valid": h.service.VerifyLabel(label)})
}
