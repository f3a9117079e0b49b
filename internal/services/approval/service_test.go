package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	apperr "voucly/internal/errors"
	"voucly/internal/models"
	"voucly/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeOperationRepo mirrors the conditional-write semantics of the real
// store: every mutation matches on id+version (and status where the real
// query does) and misses with ErrConflict otherwise.
type fakeOperationRepo struct {
	mu  sync.Mutex
	ops map[string]*models.Operation
}

func newFakeOperationRepo() *fakeOperationRepo {
	return &fakeOperationRepo{ops: make(map[string]*models.Operation)}
}

func copyOp(op *models.Operation) *models.Operation {
	cp := *op
	cp.Signatures = append(models.SignatureList{}, op.Signatures...)
	return &cp
}

func (r *fakeOperationRepo) Create(_ context.Context, op *models.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[op.ID]; exists {
		return repositories.ErrConflict
	}
	op.CreatedAt = time.Now()
	r.ops[op.ID] = copyOp(op)
	return nil
}

func (r *fakeOperationRepo) GetByID(_ context.Context, id string) (*models.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[id]
	if !ok {
		return nil, repositories.ErrOperationNotFound
	}
	return copyOp(op), nil
}

func (r *fakeOperationRepo) List(_ context.Context, filter repositories.OperationFilter) ([]models.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Operation
	for _, op := range r.ops {
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		if filter.OperationType != "" && op.OperationType != filter.OperationType {
			continue
		}
		out = append(out, *copyOp(op))
	}
	return out, nil
}

func (r *fakeOperationRepo) ListPending(_ context.Context) ([]models.Operation, error) {
	return r.List(context.Background(), repositories.OperationFilter{Status: models.OperationStatusPending})
}

func (r *fakeOperationRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]models.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Operation
	for _, op := range r.ops {
		if op.Status != models.OperationStatusPending && op.Status != models.OperationStatusApproved {
			continue
		}
		if op.ExpiresAt == nil || !op.ExpiresAt.Before(now) {
			continue
		}
		if op.ExecutionClaimedAt != nil {
			continue
		}
		out = append(out, *copyOp(op))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOperationRepo) UpdateConditional(_ context.Context, op *models.Operation, expectedVersion int64, expectedStatus ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ops[op.ID]
	if !ok || stored.Version != expectedVersion {
		return repositories.ErrConflict
	}
	if len(expectedStatus) > 0 {
		match := false
		for _, s := range expectedStatus {
			if stored.Status == s {
				match = true
				break
			}
		}
		if !match {
			return repositories.ErrConflict
		}
	}
	stored.Signatures = append(models.SignatureList{}, op.Signatures...)
	stored.Status = op.Status
	stored.ApprovedAt = op.ApprovedAt
	stored.RejectedBy = op.RejectedBy
	stored.RejectionReason = op.RejectionReason
	stored.ExecutionResult = op.ExecutionResult
	stored.Version = expectedVersion + 1
	op.Version = expectedVersion + 1
	return nil
}

func (r *fakeOperationRepo) ClaimExecution(_ context.Context, op *models.Operation, expectedVersion int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ops[op.ID]
	if !ok || stored.Version != expectedVersion ||
		stored.Status != models.OperationStatusApproved || stored.ExecutionClaimedAt != nil {
		return repositories.ErrConflict
	}
	stored.ExecutionClaimedAt = &now
	stored.Version = expectedVersion + 1
	op.ExecutionClaimedAt = &now
	op.Version = expectedVersion + 1
	return nil
}

func (r *fakeOperationRepo) RecordExecutionResult(_ context.Context, op *models.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ops[op.ID]
	if !ok || stored.Status != models.OperationStatusApproved || stored.ExecutionClaimedAt == nil {
		return repositories.ErrConflict
	}
	stored.Status = op.Status
	stored.ExecutionResult = op.ExecutionResult
	stored.Version++
	return nil
}

func (r *fakeOperationRepo) Expire(_ context.Context, id string, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.ops[id]
	if !ok || stored.Version != expectedVersion || stored.ExecutionClaimedAt != nil {
		return repositories.ErrConflict
	}
	if stored.Status != models.OperationStatusPending && stored.Status != models.OperationStatusApproved {
		return repositories.ErrConflict
	}
	stored.Status = models.OperationStatusExpired
	stored.Version = expectedVersion + 1
	return nil
}

func (r *fakeOperationRepo) Stats(_ context.Context) (*repositories.OperationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repositories.OperationStats{ByStatus: make(map[string]int64)}
	for _, op := range r.ops {
		stats.ByStatus[op.Status]++
		stats.Total++
	}
	return stats, nil
}

func (r *fakeOperationRepo) stored(id string) *models.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyOp(r.ops[id])
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Execute(ctx context.Context, op *models.Operation) (models.JSON, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.JSON), args.Error(1)
}

func (m *mockDispatcher) ExecuteTransfer(ctx context.Context, t *models.Transfer, v *models.Voucher) (string, error) {
	args := m.Called(ctx, t, v)
	return args.String(0), args.Error(1)
}

func newTestService(repo repositories.OperationRepository, dispatcher *mockDispatcher) Service {
	return NewService(repo, dispatcher, nil, Config{}, nil)
}

// claimRacingRepo injects a write between the execute path's read and its
// claim attempt, forcing the first claim to miss on version.
type claimRacingRepo struct {
	*fakeOperationRepo
	once        sync.Once
	beforeClaim func()
}

func (r *claimRacingRepo) ClaimExecution(ctx context.Context, op *models.Operation, expectedVersion int64, now time.Time) error {
	r.once.Do(r.beforeClaim)
	return r.fakeOperationRepo.ClaimExecution(ctx, op, expectedVersion, now)
}

func TestCreateOperation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateOperationInput
		wantErr string
	}{
		{
			name:  "valid with default threshold",
			input: CreateOperationInput{Type: models.OpTypeEmergencyFreeze},
		},
		{
			name:  "valid with explicit threshold",
			input: CreateOperationInput{Type: models.OpTypeCreateVoucherBatch, RequiredSignatures: 5},
		},
		{
			name:    "unknown operation type",
			input:   CreateOperationInput{Type: "FORMAT_DISK"},
			wantErr: apperr.CodeValidation,
		},
		{
			name:    "threshold below minimum",
			input:   CreateOperationInput{Type: models.OpTypeBulkTransfer, RequiredSignatures: 1},
			wantErr: apperr.CodeValidation,
		},
		{
			name:    "threshold above maximum",
			input:   CreateOperationInput{Type: models.OpTypeBulkTransfer, RequiredSignatures: 11},
			wantErr: apperr.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newFakeOperationRepo(), new(mockDispatcher))
			op, err := svc.CreateOperation(context.Background(), tt.input, 42)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, apperr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, op.ID)
			assert.Equal(t, models.OperationStatusPending, op.Status)
			assert.Equal(t, uint(42), op.InitiatedBy)
			assert.Empty(t, op.Signatures)
			assert.GreaterOrEqual(t, op.RequiredSignatures, models.MinRequiredSignatures)
		})
	}
}

func TestCreateOperation_PastExpiry(t *testing.T) {
	svc := newTestService(newFakeOperationRepo(), new(mockDispatcher))
	past := time.Now().Add(-time.Hour)

	_, err := svc.CreateOperation(context.Background(), CreateOperationInput{
		Type:      models.OpTypeSystemMaintenance,
		ExpiresAt: &past,
	}, 1)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestAddSignature(t *testing.T) {
	ctx := context.Background()

	t.Run("collects signatures until threshold", func(t *testing.T) {
		repo := newFakeOperationRepo()
		svc := newTestService(repo, new(mockDispatcher))
		op, err := svc.CreateOperation(ctx, CreateOperationInput{
			Type:               models.OpTypeEmergencyFreeze,
			RequiredSignatures: 3,
		}, 1)
		require.NoError(t, err)

		op, err = svc.AddSignature(ctx, op.ID, 10, "looks fine")
		require.NoError(t, err)
		assert.Equal(t, models.OperationStatusPending, op.Status)
		assert.Len(t, op.Signatures, 1)

		op, err = svc.AddSignature(ctx, op.ID, 11, "")
		require.NoError(t, err)
		assert.Equal(t, models.OperationStatusPending, op.Status)

		op, err = svc.AddSignature(ctx, op.ID, 12, "")
		require.NoError(t, err)
		assert.Equal(t, models.OperationStatusApproved, op.Status)
		assert.Len(t, op.Signatures, 3)
		require.NotNil(t, op.ApprovedAt)
	})

	t.Run("duplicate signer is refused", func(t *testing.T) {
		repo := newFakeOperationRepo()
		svc := newTestService(repo, new(mockDispatcher))
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeBulkTransfer}, 1)
		require.NoError(t, err)

		_, err = svc.AddSignature(ctx, op.ID, 10, "")
		require.NoError(t, err)

		_, err = svc.AddSignature(ctx, op.ID, 10, "again")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeDuplicateSignature, apperr.CodeOf(err))

		stored := repo.stored(op.ID)
		assert.Len(t, stored.Signatures, 1)
	})

	t.Run("signing a decided operation is refused", func(t *testing.T) {
		repo := newFakeOperationRepo()
		svc := newTestService(repo, new(mockDispatcher))
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeSecurityUpdate}, 1)
		require.NoError(t, err)

		_, err = svc.AddSignature(ctx, op.ID, 10, "")
		require.NoError(t, err)
		_, err = svc.AddSignature(ctx, op.ID, 11, "")
		require.NoError(t, err)

		_, err = svc.AddSignature(ctx, op.ID, 12, "late")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

		stored := repo.stored(op.ID)
		assert.Equal(t, models.OperationStatusApproved, stored.Status)
		assert.Len(t, stored.Signatures, 2)
	})

	t.Run("existing signer on a decided operation gets invalid state", func(t *testing.T) {
		repo := newFakeOperationRepo()
		svc := newTestService(repo, new(mockDispatcher))
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeBulkTransfer}, 1)
		require.NoError(t, err)

		_, err = svc.AddSignature(ctx, op.ID, 10, "")
		require.NoError(t, err)
		_, err = svc.RejectOperation(ctx, op.ID, 7, "superseded")
		require.NoError(t, err)

		// The closed state wins over the stale duplicate.
		_, err = svc.AddSignature(ctx, op.ID, 10, "again")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
	})

	t.Run("unknown operation", func(t *testing.T) {
		svc := newTestService(newFakeOperationRepo(), new(mockDispatcher))
		_, err := svc.AddSignature(ctx, "no-such-id", 10, "")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})
}

func TestAddSignature_ConcurrentSigners(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOperationRepo()
	svc := newTestService(repo, new(mockDispatcher))

	op, err := svc.CreateOperation(ctx, CreateOperationInput{
		Type:               models.OpTypeEmergencyFreeze,
		RequiredSignatures: 3,
	}, 1)
	require.NoError(t, err)

	const signers = 8
	var wg sync.WaitGroup
	errs := make([]error, signers)
	for i := 0; i < signers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddSignature(ctx, op.ID, uint(100+i), "")
		}(i)
	}
	wg.Wait()

	stored := repo.stored(op.ID)
	assert.Equal(t, models.OperationStatusApproved, stored.Status)
	require.NotNil(t, stored.ApprovedAt)
	assert.GreaterOrEqual(t, len(stored.Signatures), 3)

	// No signer appears twice regardless of interleaving.
	seen := make(map[uint]bool)
	for _, sig := range stored.Signatures {
		assert.False(t, seen[sig.SignedBy], "signer %d recorded twice", sig.SignedBy)
		seen[sig.SignedBy] = true
	}

	// Every call either succeeded, found the operation already decided, or
	// surfaced the bounded-retry conflict; nothing else.
	for _, err := range errs {
		if err == nil {
			continue
		}
		code := apperr.CodeOf(err)
		assert.Contains(t, []string{apperr.CodeInvalidState, apperr.CodeConcurrencyConflict}, code)
	}
}

func TestRejectOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("pending operation is rejected", func(t *testing.T) {
		repo := newFakeOperationRepo()
		svc := newTestService(repo, new(mockDispatcher))
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeDeleteMultipleVouchers}, 1)
		require.NoError(t, err)

		op, err = svc.RejectOperation(ctx, op.ID, 7, "scope too broad")
		require.NoError(t, err)
		assert.Equal(t, models.OperationStatusRejected, op.Status)
		require.NotNil(t, op.RejectedBy)
		assert.Equal(t, uint(7), *op.RejectedBy)
		assert.Equal(t, "scope too broad", op.RejectionReason)
	})

	t.Run("reason is mandatory", func(t *testing.T) {
		svc := newTestService(newFakeOperationRepo(), new(mockDispatcher))
		_, err := svc.RejectOperation(ctx, "any", 7, "")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("approved operation cannot be rejected", func(t *testing.T) {
		repo := newFakeOperationRepo()
		svc := newTestService(repo, new(mockDispatcher))
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeChangeMerchantStatus}, 1)
		require.NoError(t, err)
		_, err = svc.AddSignature(ctx, op.ID, 10, "")
		require.NoError(t, err)
		_, err = svc.AddSignature(ctx, op.ID, 11, "")
		require.NoError(t, err)

		_, err = svc.RejectOperation(ctx, op.ID, 7, "too late")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
	})
}

func TestExecuteOperation(t *testing.T) {
	ctx := context.Background()

	approvedOp := func(t *testing.T, svc Service) *models.Operation {
		t.Helper()
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeEmergencyFreeze}, 1)
		require.NoError(t, err)
		_, err = svc.AddSignature(ctx, op.ID, 10, "")
		require.NoError(t, err)
		op, err = svc.AddSignature(ctx, op.ID, 11, "")
		require.NoError(t, err)
		require.Equal(t, models.OperationStatusApproved, op.Status)
		return op
	}

	t.Run("approved operation executes once", func(t *testing.T) {
		repo := newFakeOperationRepo()
		dispatcher := new(mockDispatcher)
		svc := newTestService(repo, dispatcher)
		op := approvedOp(t, svc)

		dispatcher.On("Execute", mock.Anything, mock.Anything).
			Return(models.JSON{"reference": "tx-1"}, nil).Once()

		op, err := svc.ExecuteOperation(ctx, op.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OperationStatusExecuted, op.Status)
		assert.Equal(t, "tx-1", op.ExecutionResult["reference"])

		// A second execute finds a terminal record and never reaches the ledger.
		_, err = svc.ExecuteOperation(ctx, op.ID)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
		dispatcher.AssertExpectations(t)
	})

	t.Run("audit signature during dispatch does not block the result", func(t *testing.T) {
		repo := newFakeOperationRepo()
		dispatcher := new(mockDispatcher)
		svc := newTestService(repo, dispatcher)
		op := approvedOp(t, svc)

		// A last-slot race loser appends its signature while the ledger call
		// is in flight, bumping the version under the claim holder.
		dispatcher.On("Execute", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				late := repo.stored(op.ID)
				late.Signatures = append(late.Signatures, models.Signature{SignedBy: 12, SignedAt: time.Now()})
				require.NoError(t, repo.UpdateConditional(ctx, late, late.Version, models.OperationStatusApproved))
			}).
			Return(models.JSON{"reference": "tx-2"}, nil).Once()

		_, err := svc.ExecuteOperation(ctx, op.ID)
		require.NoError(t, err)

		stored := repo.stored(op.ID)
		assert.Equal(t, models.OperationStatusExecuted, stored.Status)
		assert.Equal(t, "tx-2", stored.ExecutionResult["reference"])
		assert.Len(t, stored.Signatures, 3)
		dispatcher.AssertExpectations(t)
	})

	t.Run("claim retries past a late audit signature", func(t *testing.T) {
		inner := newFakeOperationRepo()
		repo := &claimRacingRepo{fakeOperationRepo: inner}
		dispatcher := new(mockDispatcher)
		svc := newTestService(repo, dispatcher)
		op := approvedOp(t, svc)

		repo.beforeClaim = func() {
			late := inner.stored(op.ID)
			late.Signatures = append(late.Signatures, models.Signature{SignedBy: 12, SignedAt: time.Now()})
			require.NoError(t, inner.UpdateConditional(ctx, late, late.Version, models.OperationStatusApproved))
		}

		dispatcher.On("Execute", mock.Anything, mock.Anything).
			Return(models.JSON{"reference": "tx-3"}, nil).Once()

		got, err := svc.ExecuteOperation(ctx, op.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OperationStatusExecuted, got.Status)

		stored := inner.stored(op.ID)
		assert.Equal(t, models.OperationStatusExecuted, stored.Status)
		assert.Len(t, stored.Signatures, 3)
		dispatcher.AssertExpectations(t)
	})

	t.Run("pending operation cannot execute", func(t *testing.T) {
		repo := newFakeOperationRepo()
		dispatcher := new(mockDispatcher)
		svc := newTestService(repo, dispatcher)
		op, err := svc.CreateOperation(ctx, CreateOperationInput{Type: models.OpTypeBulkTransfer}, 1)
		require.NoError(t, err)

		_, err = svc.ExecuteOperation(ctx, op.ID)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
		dispatcher.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("dispatch failure marks the operation failed", func(t *testing.T) {
		repo := newFakeOperationRepo()
		dispatcher := new(mockDispatcher)
		svc := newTestService(repo, dispatcher)
		op := approvedOp(t, svc)

		dispatcher.On("Execute", mock.Anything, mock.Anything).
			Return(nil, assert.AnError).Once()

		_, err := svc.ExecuteOperation(ctx, op.ID)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeLedger, apperr.CodeOf(err))

		stored := repo.stored(op.ID)
		assert.Equal(t, models.OperationStatusFailed, stored.Status)
		assert.Contains(t, stored.ExecutionResult, "error")
	})

	t.Run("concurrent executes dispatch exactly once", func(t *testing.T) {
		repo := newFakeOperationRepo()
		dispatcher := new(mockDispatcher)
		svc := newTestService(repo, dispatcher)
		op := approvedOp(t, svc)

		var calls int64
		var callMu sync.Mutex
		dispatcher.On("Execute", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				callMu.Lock()
				calls++
				callMu.Unlock()
			}).
			Return(models.JSON{"reference": "tx-9"}, nil)

		const racers = 6
		var wg sync.WaitGroup
		succeeded := make([]bool, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.ExecuteOperation(ctx, op.ID)
				succeeded[i] = err == nil
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, ok := range succeeded {
			if ok {
				wins++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, int64(1), calls)
		assert.Equal(t, models.OperationStatusExecuted, repo.stored(op.ID).Status)
	})
}

func TestExpireOldOperations(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOperationRepo()
	svc := newTestService(repo, new(mockDispatcher))

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	claimed := time.Now()

	seed := []*models.Operation{
		{ID: "overdue-pending", OperationType: models.OpTypeBulkTransfer, RequiredSignatures: 2,
			Status: models.OperationStatusPending, Version: 1, ExpiresAt: &past},
		{ID: "overdue-approved", OperationType: models.OpTypeBulkTransfer, RequiredSignatures: 2,
			Status: models.OperationStatusApproved, Version: 3, ExpiresAt: &past},
		{ID: "still-live", OperationType: models.OpTypeBulkTransfer, RequiredSignatures: 2,
			Status: models.OperationStatusPending, Version: 1, ExpiresAt: &future},
		{ID: "already-executed", OperationType: models.OpTypeBulkTransfer, RequiredSignatures: 2,
			Status: models.OperationStatusExecuted, Version: 4, ExpiresAt: &past},
		{ID: "claimed-for-execution", OperationType: models.OpTypeBulkTransfer, RequiredSignatures: 2,
			Status: models.OperationStatusApproved, Version: 2, ExpiresAt: &past, ExecutionClaimedAt: &claimed},
	}
	for _, op := range seed {
		require.NoError(t, repo.Create(ctx, op))
	}

	expired, err := svc.ExpireOldOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	assert.Equal(t, models.OperationStatusExpired, repo.stored("overdue-pending").Status)
	assert.Equal(t, models.OperationStatusExpired, repo.stored("overdue-approved").Status)
	assert.Equal(t, models.OperationStatusPending, repo.stored("still-live").Status)
	assert.Equal(t, models.OperationStatusExecuted, repo.stored("already-executed").Status)
	assert.Equal(t, models.OperationStatusApproved, repo.stored("claimed-for-execution").Status)
}
