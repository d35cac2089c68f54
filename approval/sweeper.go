package approval

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically re-evaluates promotion for records that carry both
// approvals but never reached por_dispersar. It is the backstop for the rare
// interleaving where neither approving transaction saw the other's flag.
type Sweeper struct {
	engine   *Engine
	repo     Repository
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(engine *Engine, repo Repository, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		engine:   engine,
		repo:     repo,
		interval: interval,
		log:      log,
	}
}

// Run sweeps until ctx is cancelled. One failing record does not stop the
// pass; the next tick retries it.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ids, err := s.repo.ListPromotionCandidates(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("promotion sweep: list candidates")
		return
	}
	for _, id := range ids {
		promoted, err := s.engine.EvaluatePromotion(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("application_id", id).Msg("promotion sweep: evaluate")
			continue
		}
		if promoted {
			s.log.Info().Str("application_id", id).Msg("promotion sweep: promoted to por_dispersar")
		}
	}
}
