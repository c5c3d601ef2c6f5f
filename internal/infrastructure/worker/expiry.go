package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TradeExpirer cancels trades that have been idle for longer than idleFor.
type TradeExpirer interface {
	ExpireIdle(ctx context.Context, idleFor time.Duration, limit int) (int, error)
}

// ExpirySweeper periodically cancels abandoned trades.
type ExpirySweeper struct {
	expirer     TradeExpirer
	logger      zerolog.Logger
	idleTimeout time.Duration
	interval    time.Duration
	batchSize   int
}

// ExpiryConfig for ExpirySweeper.
type ExpiryConfig struct {
	Expirer     TradeExpirer
	Logger      zerolog.Logger
	IdleTimeout time.Duration // Trades untouched for this long are canceled
	Interval    time.Duration // Sweep interval
	BatchSize   int           // Max trades expired per sweep
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(cfg ExpiryConfig) *ExpirySweeper {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}

	return &ExpirySweeper{
		expirer:     cfg.Expirer,
		logger:      cfg.Logger.With().Str("component", "expiry_sweeper").Logger(),
		idleTimeout: cfg.IdleTimeout,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
	}
}

// Start sweeps on every tick until ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.logger.Info().
		Dur("idle_timeout", s.idleTimeout).
		Dur("interval", s.interval).
		Msg("expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A full batch is followed immediately by another so a
// backlog drains without waiting for the next tick.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	total := 0

	for ctx.Err() == nil {
		n, err := s.expirer.ExpireIdle(ctx, s.idleTimeout, s.batchSize)
		total += n

		if err != nil {
			s.logger.Error().Err(err).Msg("error expiring idle trades")
			break
		}

		if n < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info().Int("count", total).Msg("expired idle trades")
	}

	return total
}
