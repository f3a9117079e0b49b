// Package sweeper drives the periodic expiry pass over operations and stale
// pending transfers. Every transition it makes goes through the same
// conditional-update discipline as request handlers, so overlapping sweeps
// or a sweep racing a signer lose gracefully.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OperationExpirer is the slice of the approval engine the sweeper uses.
type OperationExpirer interface {
	ExpireOldOperations(ctx context.Context) (int, error)
}

// TransferExpirer is the slice of the transfer workflow the sweeper uses.
type TransferExpirer interface {
	RejectStaleTransfers(ctx context.Context, olderThan time.Duration) (int, error)
}

// Config holds sweeper tunables.
type Config struct {
	Interval    time.Duration
	TransferTTL time.Duration
	RunTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = time.Minute
	}
	if c.TransferTTL == 0 {
		c.TransferTTL = 72 * time.Hour
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = 30 * time.Second
	}
	return c
}

// Sweeper runs the expiry pass on a ticker.
type Sweeper struct {
	operations OperationExpirer
	transfers  TransferExpirer
	cfg        Config
	logger     *zap.Logger
	stop       chan struct{}
	done       chan struct{}
}

// New creates a sweeper. Call Start to begin sweeping.
func New(operations OperationExpirer, transfers TransferExpirer, cfg Config, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		operations: operations,
		transfers:  transfers,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the background loop.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
			if _, _, err := s.RunOnce(ctx); err != nil {
				s.logger.Warn("sweep pass failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunOnce performs a single pass and returns how many operations expired and
// how many stale transfers were closed. It is also the administrative
// trigger behind POST /maintenance/expire.
func (s *Sweeper) RunOnce(ctx context.Context) (int, int, error) {
	expired, err := s.operations.ExpireOldOperations(ctx)
	if err != nil {
		return 0, 0, err
	}

	closed := 0
	if s.transfers != nil {
		closed, err = s.transfers.RejectStaleTransfers(ctx, s.cfg.TransferTTL)
		if err != nil {
			// Operations already swept; report the partial result.
			return expired, 0, err
		}
	}
	return expired, closed, nil
}
