package repositories

import (
	"context"
	"errors"
	"time"

	"voucly/internal/models"
)

// ErrTransferNotFound is returned when no transfer matches the id.
var ErrTransferNotFound = errors.New("transfer not found")

// TransferRepository is the durable store for voucher ownership transfers.
type TransferRepository interface {
	Create(ctx context.Context, t *models.Transfer) error
	GetByID(ctx context.Context, id string) (*models.Transfer, error)

	// HistoryByVoucher returns all transfers referencing the voucher,
	// ordered by creation time.
	HistoryByVoucher(ctx context.Context, voucherID uint) ([]models.Transfer, error)

	// ListStalePending returns pending transfers created before cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Transfer, error)

	// UpdateConditional persists t's mutable fields iff the stored row still
	// has expectedVersion and one of expectedStatus; ErrConflict otherwise.
	UpdateConditional(ctx context.Context, t *models.Transfer, expectedVersion int64, expectedStatus ...string) error
}
