package repositories

import (
	"context"
	"errors"
	"time"

	"voucly/internal/models"

	"gorm.io/gorm"
)

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new transfer repository instance.
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) Create(ctx context.Context, t *models.Transfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transferRepository) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	var t models.Transfer
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transferRepository) HistoryByVoucher(ctx context.Context, voucherID uint) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("created_at ASC").
		Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error) {
	var transfers []models.Transfer
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.TransferStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) UpdateConditional(ctx context.Context, t *models.Transfer, expectedVersion int64, expectedStatus ...string) error {
	updates := map[string]interface{}{
		"status":           t.Status,
		"approved_by":      t.ApprovedBy,
		"approved_at":      t.ApprovedAt,
		"approval_comment": t.ApprovalComment,
		"rejected_by":      t.RejectedBy,
		"rejection_reason": t.RejectionReason,
		"failure_reason":   t.FailureReason,
		"ledger_ref":       t.LedgerRef,
		"version":          expectedVersion + 1,
	}

	q := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND version = ?", t.ID, expectedVersion)
	if len(expectedStatus) > 0 {
		q = q.Where("status IN ?", expectedStatus)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	t.Version = expectedVersion + 1
	return nil
}
