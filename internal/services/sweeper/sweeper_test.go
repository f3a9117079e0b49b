package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	mu      sync.Mutex
	calls   int
	expired int
	err     error
}

func (e *countingExpirer) ExpireOldOperations(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.expired, e.err
}

type countingTransferExpirer struct {
	mu     sync.Mutex
	calls  int
	closed int
	err    error
	ttl    time.Duration
}

func (e *countingTransferExpirer) RejectStaleTransfers(_ context.Context, olderThan time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.ttl = olderThan
	return e.closed, e.err
}

func TestRunOnce(t *testing.T) {
	t.Run("reports both counts", func(t *testing.T) {
		ops := &countingExpirer{expired: 3}
		transfers := &countingTransferExpirer{closed: 2}
		s := New(ops, transfers, Config{TransferTTL: 48 * time.Hour}, nil)

		expired, closed, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, expired)
		assert.Equal(t, 2, closed)
		assert.Equal(t, 48*time.Hour, transfers.ttl)
	})

	t.Run("operation sweep failure aborts the pass", func(t *testing.T) {
		ops := &countingExpirer{err: assert.AnError}
		transfers := &countingTransferExpirer{}
		s := New(ops, transfers, Config{}, nil)

		_, _, err := s.RunOnce(context.Background())
		require.Error(t, err)
		assert.Equal(t, 0, transfers.calls)
	})

	t.Run("transfer sweep failure still reports expired operations", func(t *testing.T) {
		ops := &countingExpirer{expired: 4}
		transfers := &countingTransferExpirer{err: assert.AnError}
		s := New(ops, transfers, Config{}, nil)

		expired, closed, err := s.RunOnce(context.Background())
		require.Error(t, err)
		assert.Equal(t, 4, expired)
		assert.Equal(t, 0, closed)
	})

	t.Run("nil transfer expirer is allowed", func(t *testing.T) {
		ops := &countingExpirer{expired: 1}
		s := New(ops, nil, Config{}, nil)

		expired, closed, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, expired)
		assert.Equal(t, 0, closed)
	})
}

func TestStartStop(t *testing.T) {
	ops := &countingExpirer{}
	transfers := &countingTransferExpirer{}
	s := New(ops, transfers, Config{Interval: 10 * time.Millisecond}, nil)

	s.Start()
	time.Sleep(55 * time.Millisecond)
	s.Stop()

	ops.mu.Lock()
	calls := ops.calls
	ops.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 2)

	// No passes after Stop returns.
	time.Sleep(30 * time.Millisecond)
	ops.mu.Lock()
	assert.Equal(t, calls, ops.calls)
	ops.mu.Unlock()
}
