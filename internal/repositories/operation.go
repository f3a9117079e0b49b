package repositories

import (
	"context"
	"errors"
	"time"

	"voucly/internal/models"
)

var (
	// ErrOperationNotFound is returned when no operation matches the id.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrConflict is returned when a conditional write matched no row: the
	// record's version or status changed under the caller.
	ErrConflict = errors.New("conditional update conflict")
)

// OperationFilter narrows List queries. Empty fields are ignored.
type OperationFilter struct {
	Status        string
	OperationType string
	Limit         int
	Offset        int
}

// OperationStats is the aggregate snapshot served by the analytics endpoint.
type OperationStats struct {
	Total              int64            `json:"total"`
	ByStatus           map[string]int64 `json:"by_status"`
	AvgApprovalSeconds float64          `json:"avg_approval_seconds"`
}

// OperationRepository is the durable store for multi-signature operations.
// All state-changing writes are conditional on the record's version so that
// racing mutators serialize per operation without any cross-operation lock.
type OperationRepository interface {
	Create(ctx context.Context, op *models.Operation) error
	GetByID(ctx context.Context, id string) (*models.Operation, error)
	List(ctx context.Context, filter OperationFilter) ([]models.Operation, error)
	ListPending(ctx context.Context) ([]models.Operation, error)

	// ListExpirable returns pending/approved operations whose deadline has
	// passed and whose execution has not been claimed.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Operation, error)

	// UpdateConditional persists op's mutable fields iff the stored row still
	// has expectedVersion and one of expectedStatus. On success op.Version is
	// bumped; otherwise ErrConflict.
	UpdateConditional(ctx context.Context, op *models.Operation, expectedVersion int64, expectedStatus ...string) error

	// ClaimExecution marks the operation as being executed. It succeeds iff
	// the row is still approved, unclaimed and at expectedVersion; this write
	// is the arbitration point between execute and expire.
	ClaimExecution(ctx context.Context, op *models.Operation, expectedVersion int64, now time.Time) error

	// RecordExecutionResult writes the terminal status and result of a
	// claimed execution. It matches on the claim instead of the version, so
	// a concurrent audit-signature append cannot block the outcome.
	RecordExecutionResult(ctx context.Context, op *models.Operation) error

	// Expire transitions the row to expired iff it is still pending/approved,
	// unclaimed and at expectedVersion.
	Expire(ctx context.Context, id string, expectedVersion int64) error

	Stats(ctx context.Context) (*OperationStats, error)
}
