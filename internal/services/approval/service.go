// Package approval owns the multi-signature operation state machine: create,
// sign, reject, execute and expire. Per-operation serialization comes from
// version-guarded conditional writes in the repository, not from locks, so
// unrelated operations never contend and a racing mutator loses cleanly.
package approval

import (
	"context"
	"errors"
	"time"

	apperr "voucly/internal/errors"
	"voucly/internal/models"
	"voucly/internal/repositories"
	"voucly/internal/services/executor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache is the optional read-path cache. All methods are stale-tolerant.
type Cache interface {
	GetPendingOperations(ctx context.Context) ([]models.Operation, bool, error)
	CachePendingOperations(ctx context.Context, ops []models.Operation) error
	InvalidatePendingOperations(ctx context.Context) error
	GetOperationStats(ctx context.Context, dest interface{}) (bool, error)
	CacheOperationStats(ctx context.Context, stats interface{}) error
}

// Service is the approval engine.
type Service interface {
	CreateOperation(ctx context.Context, in CreateOperationInput, initiator uint) (*models.Operation, error)
	AddSignature(ctx context.Context, id string, signer uint, comment string) (*models.Operation, error)
	RejectOperation(ctx context.Context, id string, rejecter uint, reason string) (*models.Operation, error)
	ExecuteOperation(ctx context.Context, id string) (*models.Operation, error)
	ExpireOldOperations(ctx context.Context) (int, error)
	GetOperation(ctx context.Context, id string) (*models.Operation, error)
	GetPendingOperations(ctx context.Context) ([]models.Operation, error)
	ListOperations(ctx context.Context, filter repositories.OperationFilter) ([]models.Operation, error)
	Stats(ctx context.Context) (*repositories.OperationStats, error)
}

type service struct {
	repo       repositories.OperationRepository
	dispatcher executor.Dispatcher
	cache      Cache
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates the approval engine. cache may be nil.
func NewService(repo repositories.OperationRepository, dispatcher executor.Dispatcher, cache Cache, cfg Config, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		cache:      cache,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *service) CreateOperation(ctx context.Context, in CreateOperationInput, initiator uint) (*models.Operation, error) {
	if !models.ValidOperationTypes[in.Type] {
		return nil, apperr.Validation("unknown operation type %q", in.Type)
	}

	required := in.RequiredSignatures
	if required == 0 {
		required = s.cfg.DefaultRequiredSignatures
	}
	if required < models.MinRequiredSignatures || required > models.MaxRequiredSignatures {
		return nil, apperr.Validation("required signatures must be between %d and %d",
			models.MinRequiredSignatures, models.MaxRequiredSignatures)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, apperr.Validation("expiry must be in the future")
	}

	op := &models.Operation{
		ID:                 uuid.NewString(),
		OperationType:      in.Type,
		OperationData:      in.Data,
		InitiatedBy:        initiator,
		RequiredSignatures: required,
		Signatures:         models.SignatureList{},
		Status:             models.OperationStatusPending,
		Version:            1,
		ExpiresAt:          in.ExpiresAt,
	}
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, err
	}

	s.invalidatePending(ctx)
	s.logger.Info("operation created",
		zap.String("operation_id", op.ID),
		zap.String("operation_type", op.OperationType),
		zap.Uint("initiated_by", initiator),
		zap.Int("required_signatures", required))
	return op, nil
}

// AddSignature appends the signer's approval and, in the same conditional
// write, flips the operation to approved when the threshold is reached. The
// threshold transition lands exactly once: concurrent signers of the last
// slot race on the version column, and only the writer whose update commits
// at the target count observes the flip. A loser re-validates on the fresh
// record; if it finds the operation already approved its signature is still
// appended for the audit trail and the call succeeds idempotently.
func (s *service) AddSignature(ctx context.Context, id string, signer uint, comment string) (*models.Operation, error) {
	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		op, err := s.getForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}

		sig := models.Signature{SignedBy: signer, SignedAt: s.now(), Comment: comment}

		switch op.Status {
		case models.OperationStatusPending:
			if op.HasSigned(signer) {
				return nil, apperr.ErrDuplicateSignature
			}
			op.Signatures = append(op.Signatures, sig)
			crossed := len(op.Signatures) >= op.RequiredSignatures
			if crossed {
				now := s.now()
				op.Status = models.OperationStatusApproved
				op.ApprovedAt = &now
			}
			err = s.repo.UpdateConditional(ctx, op, op.Version, models.OperationStatusPending)
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, err
			}
			s.invalidatePending(ctx)
			if crossed {
				s.logger.Info("signature threshold crossed",
					zap.String("operation_id", op.ID),
					zap.Uint("signed_by", signer),
					zap.Int("signatures", len(op.Signatures)))
			}
			return op, nil

		case models.OperationStatusApproved:
			if attempt == 0 {
				// Fresh call against an already-decided operation.
				return nil, apperr.InvalidState("operation is %s, signatures are closed", op.Status)
			}
			// Lost the last-slot race: record the signature, leave the
			// decision fields alone.
			if op.HasSigned(signer) {
				return nil, apperr.ErrDuplicateSignature
			}
			op.Signatures = append(op.Signatures, sig)
			err = s.repo.UpdateConditional(ctx, op, op.Version, models.OperationStatusApproved)
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return op, nil

		default:
			return nil, apperr.InvalidState("operation is %s, signatures are closed", op.Status)
		}
	}
	return nil, apperr.Conflict("operation is being modified concurrently, retry")
}

func (s *service) RejectOperation(ctx context.Context, id string, rejecter uint, reason string) (*models.Operation, error) {
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		op, err := s.getForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if !CanTransition(op.Status, models.OperationStatusRejected) {
			return nil, apperr.InvalidState("only pending operations can be rejected, operation is %s", op.Status)
		}

		op.Status = models.OperationStatusRejected
		op.RejectedBy = &rejecter
		op.RejectionReason = reason
		err = s.repo.UpdateConditional(ctx, op, op.Version, models.OperationStatusPending)
		if errors.Is(err, repositories.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidatePending(ctx)
		s.logger.Info("operation rejected",
			zap.String("operation_id", op.ID),
			zap.Uint("rejected_by", rejecter))
		return op, nil
	}
	return nil, apperr.Conflict("operation is being modified concurrently, retry")
}

// ExecuteOperation performs the irreversible side effect of an approved
// operation at most once. The claim write is the arbitration point: under
// concurrent execute calls (or a racing expiry sweep) only one caller's
// conditional update lands; everyone else gets InvalidStateTransition and no
// second ledger call ever happens.
func (s *service) ExecuteOperation(ctx context.Context, id string) (*models.Operation, error) {
	op, err := s.claimForExecution(ctx, id)
	if err != nil {
		return nil, err
	}

	result, dispatchErr := s.dispatcher.Execute(ctx, op)
	if dispatchErr != nil {
		op.Status = models.OperationStatusFailed
		op.ExecutionResult = models.JSON{"error": dispatchErr.Error()}
		s.logger.Error("operation execution failed",
			zap.String("operation_id", op.ID),
			zap.String("operation_type", op.OperationType),
			zap.Error(dispatchErr))
	} else {
		op.Status = models.OperationStatusExecuted
		op.ExecutionResult = result
		s.logger.Info("operation executed",
			zap.String("operation_id", op.ID),
			zap.String("operation_type", op.OperationType))
	}

	// The terminal write matches on the claim, not the version: a late
	// audit-signature append may still bump the version while we hold the
	// claim and must not keep the outcome from landing.
	if err := s.repo.RecordExecutionResult(ctx, op); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, apperr.Conflict("operation changed while recording execution result")
		}
		return nil, err
	}

	if dispatchErr != nil {
		return op, apperr.Ledger(dispatchErr.Error())
	}
	return op, nil
}

// claimForExecution acquires the execution claim, retrying reads whose claim
// write misses only because an audit-signature append bumped the version.
// A record that actually left the approved state or is already claimed is
// refused, not retried.
func (s *service) claimForExecution(ctx context.Context, id string) (*models.Operation, error) {
	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		op, err := s.getForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if !CanTransition(op.Status, models.OperationStatusExecuted) {
			return nil, apperr.InvalidState("only approved operations can be executed, operation is %s", op.Status)
		}
		if op.ExecutionClaimedAt != nil {
			return nil, apperr.InvalidState("operation execution already in progress")
		}

		err = s.repo.ClaimExecution(ctx, op, op.Version, s.now())
		if errors.Is(err, repositories.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return op, nil
	}
	return nil, apperr.Conflict("operation is being modified concurrently, retry")
}

// ExpireOldOperations transitions overdue pending/approved operations to
// expired and returns the count actually transitioned. A record that is
// concurrently signed, rejected or claimed for execution loses nothing: the
// per-record conditional write simply misses and the record is skipped.
func (s *service) ExpireOldOperations(ctx context.Context) (int, error) {
	ops, err := s.repo.ListExpirable(ctx, s.now(), s.cfg.ExpiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range ops {
		op := &ops[i]
		err := s.repo.Expire(ctx, op.ID, op.Version)
		if errors.Is(err, repositories.ErrConflict) {
			s.logger.Debug("operation left eligible state before expiry", zap.String("operation_id", op.ID))
			continue
		}
		if err != nil {
			// One record's failure must not abort the batch.
			s.logger.Warn("failed to expire operation", zap.String("operation_id", op.ID), zap.Error(err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.invalidatePending(ctx)
		s.logger.Info("expired stale operations", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *service) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	return s.getForUpdate(ctx, id)
}

func (s *service) GetPendingOperations(ctx context.Context) ([]models.Operation, error) {
	if s.cache != nil {
		if ops, found, err := s.cache.GetPendingOperations(ctx); err == nil && found {
			return ops, nil
		}
	}

	ops, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.CachePendingOperations(ctx, ops)
	}
	return ops, nil
}

func (s *service) ListOperations(ctx context.Context, filter repositories.OperationFilter) ([]models.Operation, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Stats(ctx context.Context) (*repositories.OperationStats, error) {
	if s.cache != nil {
		var cached repositories.OperationStats
		if found, err := s.cache.GetOperationStats(ctx, &cached); err == nil && found {
			return &cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.CacheOperationStats(ctx, stats)
	}
	return stats, nil
}

func (s *service) getForUpdate(ctx context.Context, id string) (*models.Operation, error) {
	op, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrOperationNotFound) {
		return nil, apperr.NotFound("operation")
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *service) invalidatePending(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidatePendingOperations(ctx)
	}
}
