package repositories

import (
	"context"
	"errors"
	"time"

	"voucly/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates a new operation repository instance.
func NewOperationRepository(db *gorm.DB) OperationRepository {
	return &operationRepository{db: db}
}

func (r *operationRepository) Create(ctx context.Context, op *models.Operation) error {
	err := r.db.WithContext(ctx).Create(op).Error
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConflict
		}
	}
	return err
}

func (r *operationRepository) GetByID(ctx context.Context, id string) (*models.Operation, error) {
	var op models.Operation
	err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *operationRepository) List(ctx context.Context, filter OperationFilter) ([]models.Operation, error) {
	q := r.db.WithContext(ctx).Model(&models.Operation{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OperationType != "" {
		q = q.Where("operation_type = ?", filter.OperationType)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var ops []models.Operation
	err := q.Order("created_at DESC").Find(&ops).Error
	return ops, err
}

func (r *operationRepository) ListPending(ctx context.Context) ([]models.Operation, error) {
	var ops []models.Operation
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OperationStatusPending).
		Order("created_at ASC").
		Find(&ops).Error
	return ops, err
}

func (r *operationRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Operation, error) {
	var ops []models.Operation
	q := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.OperationStatusPending, models.OperationStatusApproved}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Where("execution_claimed_at IS NULL").
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&ops).Error
	return ops, err
}

func (r *operationRepository) UpdateConditional(ctx context.Context, op *models.Operation, expectedVersion int64, expectedStatus ...string) error {
	updates := map[string]interface{}{
		"signatures":       op.Signatures,
		"status":           op.Status,
		"approved_at":      op.ApprovedAt,
		"rejected_by":      op.RejectedBy,
		"rejection_reason": op.RejectionReason,
		"execution_result": op.ExecutionResult,
		"version":          expectedVersion + 1,
	}

	q := r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("id = ? AND version = ?", op.ID, expectedVersion)
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
	op.Version = expectedVersion + 1
	return nil
}

func (r *operationRepository) ClaimExecution(ctx context.Context, op *models.Operation, expectedVersion int64, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("id = ? AND version = ? AND status = ? AND execution_claimed_at IS NULL",
			op.ID, expectedVersion, models.OperationStatusApproved).
		Updates(map[string]interface{}{
			"execution_claimed_at": now,
			"version":              expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	op.ExecutionClaimedAt = &now
	op.Version = expectedVersion + 1
	return nil
}

func (r *operationRepository) RecordExecutionResult(ctx context.Context, op *models.Operation) error {
	res := r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("id = ? AND status = ? AND execution_claimed_at IS NOT NULL",
			op.ID, models.OperationStatusApproved).
		Updates(map[string]interface{}{
			"status":           op.Status,
			"execution_result": op.ExecutionResult,
			"version":          gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *operationRepository) Expire(ctx context.Context, id string, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("id = ? AND version = ? AND status IN ? AND execution_claimed_at IS NULL",
			id, expectedVersion, []string{models.OperationStatusPending, models.OperationStatusApproved}).
		Updates(map[string]interface{}{
			"status":  models.OperationStatusExpired,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *operationRepository) Stats(ctx context.Context) (*OperationStats, error) {
	stats := &OperationStats{ByStatus: make(map[string]int64)}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	err := r.db.WithContext(ctx).Model(&models.Operation{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}

	var avg *float64
	err = r.db.WithContext(ctx).Model(&models.Operation{}).
		Select("AVG(EXTRACT(EPOCH FROM (approved_at - created_at)))").
		Where("approved_at IS NOT NULL").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if avg != nil {
		stats.AvgApprovalSeconds = *avg
	}
	return stats, nil
}
