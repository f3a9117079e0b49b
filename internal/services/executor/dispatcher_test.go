package executor

import (
	"context"
	"errors"
	"testing"

	"voucly/internal/ledger"
	"voucly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Submit(ctx context.Context, fn string, args ...string) ([]byte, error) {
	callArgs := m.Called(ctx, fn, args)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).([]byte), callArgs.Error(1)
}

func (m *mockLedger) Evaluate(ctx context.Context, fn string, args ...string) ([]byte, error) {
	callArgs := m.Called(ctx, fn, args)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).([]byte), callArgs.Error(1)
}

func (m *mockLedger) Close() {
	m.Called()
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("submits the mapped chaincode function", func(t *testing.T) {
		client := new(mockLedger)
		d := NewDispatcher(client, nil)

		op := &models.Operation{
			ID:            "op-1",
			OperationType: models.OpTypeEmergencyFreeze,
			OperationData: models.JSON{"scope": "all"},
		}
		client.On("Submit", mock.Anything, "FreezeAll", mock.MatchedBy(func(args []string) bool {
			return len(args) == 2 && args[0] == "op-1"
		})).Return([]byte("tx-abc"), nil)

		result, err := d.Execute(ctx, op)
		require.NoError(t, err)
		assert.Equal(t, "tx-abc", result["reference"])
		assert.Equal(t, "FreezeAll", result["chaincode_fn"])
		assert.NotEmpty(t, result["submitted_at"])
		client.AssertExpectations(t)
	})

	t.Run("unmapped operation type never reaches the ledger", func(t *testing.T) {
		client := new(mockLedger)
		d := NewDispatcher(client, nil)

		_, err := d.Execute(ctx, &models.Operation{ID: "op-2", OperationType: "UNKNOWN_KIND"})
		require.Error(t, err)

		var lerr *ledger.Error
		require.True(t, errors.As(err, &lerr))
		assert.False(t, lerr.Retryable)
		client.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ledger failure propagates", func(t *testing.T) {
		client := new(mockLedger)
		d := NewDispatcher(client, nil)

		client.On("Submit", mock.Anything, "BulkTransfer", mock.Anything).
			Return(nil, errors.New("endorsement failure"))

		_, err := d.Execute(ctx, &models.Operation{
			ID:            "op-3",
			OperationType: models.OpTypeBulkTransfer,
		})
		require.Error(t, err)
	})
}

func TestExecuteTransfer(t *testing.T) {
	ctx := context.Background()
	voucher := &models.Voucher{Code: "V-abc", OwnerAddress: "addr-a"}

	t.Run("full transfer moves the whole voucher", func(t *testing.T) {
		client := new(mockLedger)
		d := NewDispatcher(client, nil)

		client.On("Submit", mock.Anything, "TransferVoucher",
			[]string{"t-1", "V-abc", "addr-a", "addr-b"}).
			Return([]byte("tx-full"), nil)

		ref, err := d.ExecuteTransfer(ctx, &models.Transfer{
			ID:           "t-1",
			TransferType: models.TransferTypeFull,
			FromAddress:  "addr-a",
			ToAddress:    "addr-b",
		}, voucher)
		require.NoError(t, err)
		assert.Equal(t, "tx-full", ref)
		client.AssertExpectations(t)
	})

	t.Run("partial transfer splits with the amount", func(t *testing.T) {
		client := new(mockLedger)
		d := NewDispatcher(client, nil)
		amount := 25.5

		client.On("Submit", mock.Anything, "SplitVoucher",
			[]string{"t-2", "V-abc", "addr-a", "addr-b", "25.5"}).
			Return([]byte("tx-split"), nil)

		ref, err := d.ExecuteTransfer(ctx, &models.Transfer{
			ID:           "t-2",
			TransferType: models.TransferTypePartial,
			FromAddress:  "addr-a",
			ToAddress:    "addr-b",
			Amount:       &amount,
		}, voucher)
		require.NoError(t, err)
		assert.Equal(t, "tx-split", ref)
		client.AssertExpectations(t)
	})
}
