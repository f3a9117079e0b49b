package voucher

import (
	"context"
	"sync"
	"testing"

	apperr "voucly/internal/errors"
	"voucly/internal/models"
	"voucly/internal/repositories"
	"voucly/internal/services/permission"
	"voucly/internal/services/qr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoucherRepo struct {
	mu     sync.Mutex
	byCode map[string]*models.Voucher
	nextID uint
}

func newFakeVoucherRepo() *fakeVoucherRepo {
	return &fakeVoucherRepo{byCode: make(map[string]*models.Voucher), nextID: 1}
}

func (r *fakeVoucherRepo) Create(_ context.Context, v *models.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v.ID = r.nextID
	r.nextID++
	r.byCode[v.Code] = v
	return nil
}

func (r *fakeVoucherRepo) GetByID(_ context.Context, id uint) (*models.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.byCode {
		if v.ID == id {
			cp := *v
			return &cp, nil
		}
	}
	return nil, repositories.ErrVoucherNotFound
}

func (r *fakeVoucherRepo) GetByCode(_ context.Context, code string) (*models.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byCode[code]
	if !ok {
		return nil, repositories.ErrVoucherNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *fakeVoucherRepo) ListByMerchant(_ context.Context, merchantID uint, _, _ int) ([]models.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Voucher
	for _, v := range r.byCode {
		if v.MerchantID == merchantID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *fakeVoucherRepo) UpdateOwner(_ context.Context, id uint, ownerAddress string) error {
	return nil
}

func uintPtr(v uint) *uint { return &v }

func TestIssueVoucher(t *testing.T) {
	ctx := context.Background()
	admin := permission.Actor{UserID: 1, Role: models.RoleAdmin}

	t.Run("issues with a verifiable label", func(t *testing.T) {
		svc := NewService(newFakeVoucherRepo(), qr.NewService("s"), nil, nil)

		out, err := svc.IssueVoucher(ctx, IssueVoucherInput{
			MerchantID:   5,
			Denomination: 25,
			OwnerAddress: "addr-a",
		}, admin)
		require.NoError(t, err)
		assert.NotEmpty(t, out.Voucher.Code)
		assert.Equal(t, models.VoucherStatusActive, out.Voucher.Status)
		assert.Equal(t, "USD", out.Voucher.Currency)
		assert.Equal(t, out.Voucher.Code, out.Label.Code)
		assert.True(t, svc.VerifyLabel(out.Label))
	})

	t.Run("validation", func(t *testing.T) {
		svc := NewService(newFakeVoucherRepo(), qr.NewService("s"), nil, nil)

		_, err := svc.IssueVoucher(ctx, IssueVoucherInput{Denomination: 25, OwnerAddress: "a"}, admin)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

		_, err = svc.IssueVoucher(ctx, IssueVoucherInput{MerchantID: 5, OwnerAddress: "a"}, admin)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

		_, err = svc.IssueVoucher(ctx, IssueVoucherInput{MerchantID: 5, Denomination: 25}, admin)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("merchant cannot issue for another merchant", func(t *testing.T) {
		svc := NewService(newFakeVoucherRepo(), qr.NewService("s"), nil, nil)
		merchant := permission.Actor{UserID: 2, Role: models.RoleMerchant, MerchantID: uintPtr(5)}

		_, err := svc.IssueVoucher(ctx, IssueVoucherInput{
			MerchantID: 6, Denomination: 25, OwnerAddress: "addr-a",
		}, merchant)
		require.Error(t, err)
		assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	})
}

func TestGetVoucherByCode(t *testing.T) {
	ctx := context.Background()
	admin := permission.Actor{UserID: 1, Role: models.RoleAdmin}
	svc := NewService(newFakeVoucherRepo(), qr.NewService("s"), nil, nil)

	issued, err := svc.IssueVoucher(ctx, IssueVoucherInput{
		MerchantID: 5, Denomination: 25, OwnerAddress: "addr-a",
	}, admin)
	require.NoError(t, err)

	out, err := svc.GetVoucherByCode(ctx, issued.Voucher.Code)
	require.NoError(t, err)
	assert.Equal(t, issued.Voucher.Code, out.Voucher.Code)
	assert.True(t, svc.VerifyLabel(out.Label))

	_, err = svc.GetVoucherByCode(ctx, "V-missing")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
