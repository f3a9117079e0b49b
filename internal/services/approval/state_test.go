package approval

import (
	"testing"

	"voucly/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.OperationStatusPending, models.OperationStatusApproved, true},
		{models.OperationStatusPending, models.OperationStatusRejected, true},
		{models.OperationStatusPending, models.OperationStatusExpired, true},
		{models.OperationStatusPending, models.OperationStatusExecuted, false},
		{models.OperationStatusApproved, models.OperationStatusExecuted, true},
		{models.OperationStatusApproved, models.OperationStatusFailed, true},
		{models.OperationStatusApproved, models.OperationStatusExpired, true},
		{models.OperationStatusApproved, models.OperationStatusRejected, false},
		{models.OperationStatusRejected, models.OperationStatusApproved, false},
		{models.OperationStatusExecuted, models.OperationStatusExpired, false},
		{models.OperationStatusExpired, models.OperationStatusApproved, false},
		{models.OperationStatusFailed, models.OperationStatusExecuted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(models.OperationStatusPending))
	assert.False(t, IsTerminal(models.OperationStatusApproved))
	assert.True(t, IsTerminal(models.OperationStatusRejected))
	assert.True(t, IsTerminal(models.OperationStatusExecuted))
	assert.True(t, IsTerminal(models.OperationStatusFailed))
	assert.True(t, IsTerminal(models.OperationStatusExpired))
}
