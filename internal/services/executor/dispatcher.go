// Package executor translates approved operations and transfers into
// chaincode invocations. It is stateless: the approval engine and the
// transfer workflow own all record mutation.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"voucly/internal/ledger"
	"voucly/internal/models"

	"go.uber.org/zap"
)

// Dispatcher performs the irreversible side effect of a decided action.
type Dispatcher interface {
	// Execute submits an approved operation to the ledger and returns the
	// result payload stored on the operation.
	Execute(ctx context.Context, op *models.Operation) (models.JSON, error)

	// ExecuteTransfer moves voucher ownership on the ledger and returns the
	// ledger reference.
	ExecuteTransfer(ctx context.Context, t *models.Transfer, v *models.Voucher) (string, error)
}

// chaincodeFns maps each operation type to its chaincode function. The map
// is the closed dispatch table; an unmapped type is a fatal error, not a
// fallthrough.
var chaincodeFns = map[string]string{
	models.OpTypeCreateVoucherBatch:     "CreateVoucherBatch",
	models.OpTypeModifyCriticalSettings: "ModifySettings",
	models.OpTypeDeleteMultipleVouchers: "DeleteVouchers",
	models.OpTypeChangeMerchantStatus:   "SetMerchantStatus",
	models.OpTypeBulkTransfer:           "BulkTransfer",
	models.OpTypeEmergencyFreeze:        "FreezeAll",
	models.OpTypeSystemMaintenance:      "SetMaintenanceMode",
	models.OpTypeSecurityUpdate:         "RotateSecurityParams",
}

type dispatcher struct {
	ledger ledger.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher backed by the given ledger client.
func NewDispatcher(client ledger.Client, logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dispatcher{ledger: client, logger: logger, now: time.Now}
}

func (d *dispatcher) Execute(ctx context.Context, op *models.Operation) (models.JSON, error) {
	fn, ok := chaincodeFns[op.OperationType]
	if !ok {
		return nil, &ledger.Error{
			Fn:        op.OperationType,
			Retryable: false,
			Err:       fmt.Errorf("no chaincode mapping for operation type %q", op.OperationType),
		}
	}

	payload, err := json.Marshal(op.OperationData)
	if err != nil {
		return nil, &ledger.Error{Fn: fn, Retryable: false, Err: err}
	}

	d.logger.Debug("submitting operation to ledger",
		zap.String("operation_id", op.ID),
		zap.String("chaincode_fn", fn))

	out, err := d.ledger.Submit(ctx, fn, op.ID, string(payload))
	if err != nil {
		return nil, err
	}

	return models.JSON{
		"reference":    string(out),
		"chaincode_fn": fn,
		"submitted_at": d.now().UTC().Format(time.RFC3339),
	}, nil
}

func (d *dispatcher) ExecuteTransfer(ctx context.Context, t *models.Transfer, v *models.Voucher) (string, error) {
	fn := "TransferVoucher"
	args := []string{t.ID, v.Code, t.FromAddress, t.ToAddress}
	if t.TransferType == models.TransferTypePartial {
		fn = "SplitVoucher"
		amount := 0.0
		if t.Amount != nil {
			amount = *t.Amount
		}
		args = append(args, strconv.FormatFloat(amount, 'f', -1, 64))
	}

	out, err := d.ledger.Submit(ctx, fn, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
