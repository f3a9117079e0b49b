// Package voucher implements the voucher directory: issuing directory
// records, code lookups and signed QR labels. Ledger-side state changes go
// through the multi-signature operation workflow instead.
package voucher

import (
	"context"
	"errors"

	apperr "voucly/internal/errors"
	"voucly/internal/models"
	"voucly/internal/repositories"
	"voucly/internal/services/permission"
	"voucly/internal/services/qr"
	"voucly/internal/utils"

	"go.uber.org/zap"
)

// Cache is the optional stale-tolerant read cache for code lookups.
type Cache interface {
	CacheVoucher(ctx context.Context, v *models.Voucher) error
	GetVoucher(ctx context.Context, code string) (*models.Voucher, error)
}

// IssueVoucherInput carries the fields of a voucher issuance request.
type IssueVoucherInput struct {
	MerchantID   uint        `json:"merchant_id"`
	Denomination float64     `json:"denomination"`
	Currency     string      `json:"currency"`
	OwnerAddress string      `json:"owner_address"`
	Metadata     models.JSON `json:"metadata,omitempty"`
}

// VoucherWithLabel pairs a directory record with its signed QR label.
type VoucherWithLabel struct {
	Voucher *models.Voucher `json:"voucher"`
	Label   qr.Label        `json:"label"`
}

// Service is the voucher directory service.
type Service interface {
	IssueVoucher(ctx context.Context, in IssueVoucherInput, actor permission.Actor) (*VoucherWithLabel, error)
	GetVoucherByCode(ctx context.Context, code string) (*VoucherWithLabel, error)
	ListMerchantVouchers(ctx context.Context, merchantID uint, limit, offset int) ([]models.Voucher, error)
	VerifyLabel(label qr.Label) bool
}

type service struct {
	vouchers repositories.VoucherRepository
	labels   *qr.Service
	cache    Cache
	logger   *zap.Logger
}

// NewService creates a new voucher directory service. cache may be nil.
func NewService(vouchers repositories.VoucherRepository, labels *qr.Service, cacheSvc Cache, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		vouchers: vouchers,
		labels:   labels,
		cache:    cacheSvc,
		logger:   logger,
	}
}

func (s *service) IssueVoucher(ctx context.Context, in IssueVoucherInput, actor permission.Actor) (*VoucherWithLabel, error) {
	if in.MerchantID == 0 {
		return nil, apperr.Validation("merchant_id is required")
	}
	if in.Denomination <= 0 {
		return nil, apperr.Validation("denomination must be positive")
	}
	if in.OwnerAddress == "" {
		return nil, apperr.Validation("owner_address is required")
	}
	if !permission.CanIssueVouchers(actor, in.MerchantID) {
		return nil, apperr.PermissionDenied("not allowed to issue vouchers for this merchant")
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	code, err := utils.GenerateVoucherCode()
	if err != nil {
		return nil, err
	}

	v := &models.Voucher{
		Code:         code,
		MerchantID:   in.MerchantID,
		Denomination: in.Denomination,
		Currency:     currency,
		Status:       models.VoucherStatusActive,
		OwnerAddress: in.OwnerAddress,
		Metadata:     in.Metadata,
	}
	if err := s.vouchers.Create(ctx, v); err != nil {
		return nil, err
	}
	s.cacheVoucher(ctx, v)

	s.logger.Info("voucher issued",
		zap.String("code", v.Code),
		zap.Uint("merchant_id", v.MerchantID),
		zap.Float64("denomination", v.Denomination))

	return &VoucherWithLabel{Voucher: v, Label: s.labels.IssueLabel(v.Code)}, nil
}

func (s *service) GetVoucherByCode(ctx context.Context, code string) (*VoucherWithLabel, error) {
	if code == "" {
		return nil, apperr.Validation("voucher code is required")
	}

	if s.cache != nil {
		if cached, err := s.cache.GetVoucher(ctx, code); err == nil && cached != nil {
			return &VoucherWithLabel{Voucher: cached, Label: s.labels.IssueLabel(cached.Code)}, nil
		}
	}

	v, err := s.vouchers.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrVoucherNotFound) {
		return nil, apperr.NotFound("voucher")
	}
	if err != nil {
		return nil, err
	}

	s.cacheVoucher(ctx, v)
	return &VoucherWithLabel{Voucher: v, Label: s.labels.IssueLabel(v.Code)}, nil
}

func (s *service) cacheVoucher(ctx context.Context, v *models.Voucher) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheVoucher(ctx, v); err != nil {
		s.logger.Warn("voucher cache write failed", zap.String("code", v.Code), zap.Error(err))
	}
}

func (s *service) ListMerchantVouchers(ctx context.Context, merchantID uint, limit, offset int) ([]models.Voucher, error) {
	if merchantID == 0 {
		return nil, apperr.Validation("merchant_id is required")
	}
	return s.vouchers.ListByMerchant(ctx, merchantID, limit, offset)
}

func (s *service) VerifyLabel(label qr.Label) bool {
	return s.labels.VerifyLabel(label)
}
