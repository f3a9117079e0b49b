package approval

import (
	"time"

	"voucly/internal/models"
)

// CreateOperationInput carries the creation parameters. RequiredSignatures
// of zero selects the configured default.
type CreateOperationInput struct {
	Type               string
	Data               models.JSON
	RequiredSignatures int
	ExpiresAt          *time.Time
}

// Config holds engine tunables.
type Config struct {
	// DefaultRequiredSignatures is applied when a creation request does not
	// specify a threshold. Must lie within the model bounds.
	DefaultRequiredSignatures int

	// MaxConflictRetries bounds how often a lost optimistic write is retried
	// to re-validate state before ConcurrencyConflict surfaces.
	MaxConflictRetries int

	// ExpiryBatchSize caps how many records one sweep pass loads.
	ExpiryBatchSize int
}

func (c Config) withDefaults() Config {
	if c.DefaultRequiredSignatures == 0 {
		c.DefaultRequiredSignatures = models.MinRequiredSignatures
	}
	if c.MaxConflictRetries == 0 {
		c.MaxConflictRetries = 3
	}
	if c.ExpiryBatchSize == 0 {
		c.ExpiryBatchSize = 200
	}
	return c
}
