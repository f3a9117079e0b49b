package repositories

import (
	"context"
	"errors"

	"voucly/internal/models"

	"gorm.io/gorm"
)

// ErrVoucherNotFound is returned when no voucher matches the lookup.
var ErrVoucherNotFound = errors.New("voucher not found")

// VoucherRepository resolves vouchers for the directory endpoints and the
// transfer workflow's ownership check.
type VoucherRepository interface {
	Create(ctx context.Context, v *models.Voucher) error
	GetByID(ctx context.Context, id uint) (*models.Voucher, error)
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Voucher, error)

	// UpdateOwner records the directory-side owner after a completed full
	// transfer. The ledger remains authoritative.
	UpdateOwner(ctx context.Context, id uint, ownerAddress string) error
}

type voucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository creates a new voucher repository instance.
func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) Create(ctx context.Context, v *models.Voucher) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *voucherRepository) GetByID(ctx context.Context, id uint) (*models.Voucher, error) {
	var v models.Voucher
	err := r.db.WithContext(ctx).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *voucherRepository) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	err := r.db.WithContext(ctx).First(&v, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *voucherRepository) ListByMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	q := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&vouchers).Error
	return vouchers, err
}

func (r *voucherRepository) UpdateOwner(ctx context.Context, id uint, ownerAddress string) error {
	return r.db.WithContext(ctx).Model(&models.Voucher{}).
		Where("id = ?", id).
		Update("owner_address", ownerAddress).Error
}
