// Package transferflow runs the voucher ownership transfer workflow: the
// same conditional-update state machine as approvals, narrowed to a single
// approver who must be an admin or the voucher's issuing merchant.
package transferflow

import (
	"context"
	"errors"
	"time"

	apperr "voucly/internal/errors"
	"voucly/internal/models"
	"voucly/internal/repositories"
	"voucly/internal/services/executor"
	"voucly/internal/services/permission"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache invalidates the voucher read cache after an ownership change.
type Cache interface {
	InvalidateVoucher(ctx context.Context, code string) error
}

// CreateTransferInput carries the creation parameters.
type CreateTransferInput struct {
	VoucherCode  string
	FromAddress  string
	ToAddress    string
	TransferType string
	Amount       *float64
}

// Config holds workflow tunables.
type Config struct {
	// ApprovalThreshold is the voucher denomination (or partial amount) at or
	// above which a transfer requires an explicit approval.
	ApprovalThreshold float64

	// MaxConflictRetries bounds optimistic-write retries.
	MaxConflictRetries int
}

func (c Config) withDefaults() Config {
	if c.ApprovalThreshold == 0 {
		c.ApprovalThreshold = 100
	}
	if c.MaxConflictRetries == 0 {
		c.MaxConflictRetries = 3
	}
	return c
}

// Service handles voucher ownership transfers.
type Service interface {
	CreateTransfer(ctx context.Context, in CreateTransferInput, initiator permission.Actor) (*models.Transfer, error)
	ApproveTransfer(ctx context.Context, id string, actor permission.Actor, comment string) (*models.Transfer, error)
	RejectTransfer(ctx context.Context, id string, actor permission.Actor, reason string) (*models.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*models.Transfer, error)
	GetTransferHistory(ctx context.Context, voucherID uint) ([]models.Transfer, error)
	RejectStaleTransfers(ctx context.Context, olderThan time.Duration) (int, error)
}

type service struct {
	transfers  repositories.TransferRepository
	vouchers   repositories.VoucherRepository
	dispatcher executor.Dispatcher
	cache      Cache
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new transfer workflow instance. cache may be nil.
func NewService(transfers repositories.TransferRepository, vouchers repositories.VoucherRepository, dispatcher executor.Dispatcher, cache Cache, cfg Config, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		transfers:  transfers,
		vouchers:   vouchers,
		dispatcher: dispatcher,
		cache:      cache,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *service) CreateTransfer(ctx context.Context, in CreateTransferInput, initiator permission.Actor) (*models.Transfer, error) {
	switch in.TransferType {
	case models.TransferTypePartial:
		if in.Amount == nil || *in.Amount <= 0 {
			return nil, apperr.Validation("Amount required for partial transfers")
		}
	case models.TransferTypeFull:
		if in.Amount != nil {
			return nil, apperr.Validation("amount is only valid for partial transfers")
		}
	default:
		return nil, apperr.Validation("transfer type must be %q or %q", models.TransferTypeFull, models.TransferTypePartial)
	}
	if in.FromAddress == "" || in.ToAddress == "" {
		return nil, apperr.Validation("from and to addresses are required")
	}
	if in.FromAddress == in.ToAddress {
		return nil, apperr.Validation("cannot transfer a voucher to its current owner")
	}

	voucher, err := s.getVoucherByCode(ctx, in.VoucherCode)
	if err != nil {
		return nil, err
	}
	if voucher.Status != models.VoucherStatusActive {
		return nil, apperr.Validation("voucher is %s and cannot be transferred", voucher.Status)
	}

	t := &models.Transfer{
		ID:               uuid.NewString(),
		VoucherID:        voucher.ID,
		FromAddress:      in.FromAddress,
		ToAddress:        in.ToAddress,
		TransferType:     in.TransferType,
		Amount:           in.Amount,
		RequiresApproval: s.requiresApproval(in, voucher, initiator),
		Status:           models.TransferStatusPending,
		Version:          1,
		InitiatedBy:      initiator.UserID,
	}
	if err := s.transfers.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("transfer created",
		zap.String("transfer_id", t.ID),
		zap.String("voucher_code", voucher.Code),
		zap.Bool("requires_approval", t.RequiresApproval))

	if !t.RequiresApproval {
		return s.complete(ctx, t, voucher)
	}
	return t, nil
}

// requiresApproval is the creation-time policy hook. Partial splits always
// need a human decision; full transfers only when the voucher denomination
// reaches the configured threshold and the initiator is not an admin.
func (s *service) requiresApproval(in CreateTransferInput, v *models.Voucher, initiator permission.Actor) bool {
	if in.TransferType == models.TransferTypePartial {
		return true
	}
	if initiator.IsAdmin() {
		return false
	}
	return v.Denomination >= s.cfg.ApprovalThreshold
}

func (s *service) ApproveTransfer(ctx context.Context, id string, actor permission.Actor, comment string) (*models.Transfer, error) {
	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		t, voucher, err := s.loadForReview(ctx, id, actor)
		if err != nil {
			return nil, err
		}

		now := s.now()
		t.Status = models.TransferStatusApproved
		t.ApprovedBy = &actor.UserID
		t.ApprovedAt = &now
		t.ApprovalComment = comment
		err = s.transfers.UpdateConditional(ctx, t, t.Version, models.TransferStatusPending)
		if errors.Is(err, repositories.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("transfer approved",
			zap.String("transfer_id", t.ID),
			zap.Uint("approved_by", actor.UserID))
		return s.complete(ctx, t, voucher)
	}
	return nil, apperr.Conflict("transfer is being modified concurrently, retry")
}

func (s *service) RejectTransfer(ctx context.Context, id string, actor permission.Actor, reason string) (*models.Transfer, error) {
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	for attempt := 0; attempt <= s.cfg.MaxConflictRetries; attempt++ {
		t, _, err := s.loadForReview(ctx, id, actor)
		if err != nil {
			return nil, err
		}

		t.Status = models.TransferStatusRejected
		t.RejectedBy = &actor.UserID
		t.RejectionReason = reason
		err = s.transfers.UpdateConditional(ctx, t, t.Version, models.TransferStatusPending)
		if errors.Is(err, repositories.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("transfer rejected",
			zap.String("transfer_id", t.ID),
			zap.Uint("rejected_by", actor.UserID))
		return t, nil
	}
	return nil, apperr.Conflict("transfer is being modified concurrently, retry")
}

func (s *service) GetTransfer(ctx context.Context, id string) (*models.Transfer, error) {
	t, err := s.transfers.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrTransferNotFound) {
		return nil, apperr.NotFound("transfer")
	}
	return t, err
}

func (s *service) GetTransferHistory(ctx context.Context, voucherID uint) ([]models.Transfer, error) {
	if _, err := s.vouchers.GetByID(ctx, voucherID); err != nil {
		if errors.Is(err, repositories.ErrVoucherNotFound) {
			return nil, apperr.NotFound("voucher")
		}
		return nil, err
	}
	return s.transfers.HistoryByVoucher(ctx, voucherID)
}

// RejectStaleTransfers closes pending transfers whose approval window has
// elapsed. Records that change concurrently lose nothing; their conditional
// write misses and they are skipped.
func (s *service) RejectStaleTransfers(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.transfers.ListStalePending(ctx, s.now().Add(-olderThan), 200)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range stale {
		t := &stale[i]
		t.Status = models.TransferStatusRejected
		t.RejectionReason = "approval window elapsed"
		err := s.transfers.UpdateConditional(ctx, t, t.Version, models.TransferStatusPending)
		if errors.Is(err, repositories.ErrConflict) {
			continue
		}
		if err != nil {
			s.logger.Warn("failed to close stale transfer", zap.String("transfer_id", t.ID), zap.Error(err))
			continue
		}
		closed++
	}

	if closed > 0 {
		s.logger.Info("closed stale transfers", zap.Int("count", closed))
	}
	return closed, nil
}

// loadForReview fetches the transfer plus its voucher and checks that the
// actor is allowed to decide it and that it is still pending.
func (s *service) loadForReview(ctx context.Context, id string, actor permission.Actor) (*models.Transfer, *models.Voucher, error) {
	t, err := s.GetTransfer(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	voucher, err := s.vouchers.GetByID(ctx, t.VoucherID)
	if err != nil {
		if errors.Is(err, repositories.ErrVoucherNotFound) {
			return nil, nil, apperr.NotFound("voucher")
		}
		return nil, nil, err
	}

	if !permission.CanReviewTransfer(actor, voucher.MerchantID) {
		return nil, nil, apperr.PermissionDenied("only an admin or the issuing merchant may decide this transfer")
	}
	if t.Status != models.TransferStatusPending {
		return nil, nil, apperr.InvalidState("transfer is %s and can no longer be decided", t.Status)
	}
	return t, voucher, nil
}

// complete performs the ledger move and records the terminal status. For
// approved transfers the row is already at approved; auto-completing
// transfers go straight from pending.
func (s *service) complete(ctx context.Context, t *models.Transfer, voucher *models.Voucher) (*models.Transfer, error) {
	ref, err := s.dispatcher.ExecuteTransfer(ctx, t, voucher)
	fromStatus := t.Status

	if err != nil {
		t.Status = models.TransferStatusFailed
		t.FailureReason = err.Error()
		if uerr := s.transfers.UpdateConditional(ctx, t, t.Version, fromStatus); uerr != nil {
			return nil, uerr
		}
		s.logger.Error("transfer execution failed", zap.String("transfer_id", t.ID), zap.Error(err))
		return t, apperr.Ledger(err.Error())
	}

	t.Status = models.TransferStatusCompleted
	t.LedgerRef = ref
	if uerr := s.transfers.UpdateConditional(ctx, t, t.Version, fromStatus); uerr != nil {
		return nil, uerr
	}

	// Mirror the ownership change into the directory. A split leaves the
	// original voucher with its current owner.
	if t.TransferType == models.TransferTypeFull {
		if uerr := s.vouchers.UpdateOwner(ctx, voucher.ID, t.ToAddress); uerr != nil {
			s.logger.Warn("failed to update directory owner", zap.String("transfer_id", t.ID), zap.Error(uerr))
		}
		if s.cache != nil {
			_ = s.cache.InvalidateVoucher(ctx, voucher.Code)
		}
	}

	s.logger.Info("transfer completed", zap.String("transfer_id", t.ID), zap.String("ledger_ref", ref))
	return t, nil
}

func (s *service) getVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	if code == "" {
		return nil, apperr.Validation("voucher code is required")
	}
	v, err := s.vouchers.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrVoucherNotFound) {
		return nil, apperr.NotFound("voucher")
	}
	return v, err
}
