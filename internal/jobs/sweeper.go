package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"adgen/internal/domain"
)

// StuckReason is stored on ads failed by the sweeper.
const StuckReason = "timed out"

const defaultSweepBatch = 100

// Sweeper fails pending ads that outlived any continuation that could still
// finish them, typically because the instance running it went away.
type Sweeper struct {
	ads        domain.AdRepository
	stuckAfter time.Duration
	batch      int
	logger     zerolog.Logger
	now        func() time.Time
}

func NewSweeper(ads domain.AdRepository, stuckAfter time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		ads:        ads,
		stuckAfter: stuckAfter,
		batch:      defaultSweepBatch,
		logger:     logger.With().Str("component", "sweeper").Logger(),
		now:        time.Now,
	}
}

// SweepOnce fails every pending ad created before now minus the stuck
// threshold and reports how many it moved.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.stuckAfter)
	swept := 0
	for {
		stale, err := s.ads.ListByStatus(ctx, domain.AdStatusPending, cutoff, s.batch)
		if err != nil {
			return swept, err
		}
		moved := 0
		for _, ad := range stale {
			err := s.ads.MarkFailed(ctx, ad.ID, StuckReason)
			switch {
			case err == nil:
				moved++
				s.logger.Info().Str("ad_id", ad.ID).Time("created_at", ad.CreatedAt).Msg("stuck ad failed")
			case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
				// finished concurrently
			default:
				return swept + moved, err
			}
		}
		swept += moved
		if len(stale) < s.batch || moved == 0 {
			return swept, nil
		}
	}
}

// Run sweeps every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := s.SweepOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.Error().Err(err).Msg("sweep failed")
		case n > 0:
			s.logger.Info().Int("count", n).Msg("sweep finished")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
