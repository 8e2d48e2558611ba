package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/authgate/internal/models"
)

type sweepTokenStore interface {
	FindByExpiryBefore(ctx context.Context, cutoff time.Time) ([]models.ActiveToken, error)
	DeleteByToken(ctx context.Context, token string) error
}

// SweeperService periodically evicts expired token records and their
// revocation entries. A revocation entry is only removed once the token has
// expired, so a revoked token can never become acceptable again early.
type SweeperService struct {
	store    sweepTokenStore
	registry RevocationRegistry
	interval time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewSweeperService constructs a sweeper. Interval defaults to one hour.
func NewSweeperService(store sweepTokenStore, registry RevocationRegistry, interval time.Duration, logger *zap.Logger, metrics *MetricsService) *SweeperService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{
		store:    store,
		registry: registry,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// RunOnce executes a single sweep and returns the number of records fully
// cleaned. A failed expiry query skips the run; a failure on one record
// logs and moves on so a single bad row cannot block the batch.
func (s *SweeperService) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().UTC()

	expired, err := s.store.FindByExpiryBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep query failed, skipping run", zap.Error(err))
		return 0, err
	}

	cleaned := 0
	for _, record := range expired {
		if err := s.registry.Unrevoke(ctx, record.Token); err != nil {
			// Keep the record so the next run retries both halves.
			s.logger.Warn("failed to drop revocation entry", zap.Int64("user_id", record.UserID), zap.Error(err))
			continue
		}
		if err := s.store.DeleteByToken(ctx, record.Token); err != nil {
			s.logger.Warn("failed to delete expired token record", zap.Int64("user_id", record.UserID), zap.Error(err))
			continue
		}
		cleaned++
	}

	if s.metrics != nil && cleaned > 0 {
		s.metrics.IncTokensSwept(cleaned)
	}
	s.logger.Info("expired token sweep complete",
		zap.Int("expired", len(expired)),
		zap.Int("cleaned", cleaned),
	)
	return cleaned, nil
}

// Start launches the periodic sweep loop. Safe to call once.
func (s *SweeperService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(runCtx); err != nil {
					// Already logged; the scheduler itself never stops on a
					// failed run.
					continue
				}
			}
		}
	}()

	s.logger.Sugar().Infow("sweeper started", "interval", s.interval)
}

// Stop cancels the loop and waits for the current run to finish. No new
// run starts after Stop returns.
func (s *SweeperService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.mu.Unlock()
	<-done
	s.logger.Sugar().Infow("sweeper stopped")
}
