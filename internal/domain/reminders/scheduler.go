package reminders

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler corre el matcher a intervalo fijo (60s por default).
// La cancelación es determinística vía context; sin eso el ticker es el
// leak clásico a testear.
type Scheduler struct {
	matcher  *Matcher
	interval time.Duration
	log      zerolog.Logger
}

func NewScheduler(matcher *Matcher, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Scheduler{
		matcher:  matcher,
		interval: interval,
		log:      log,
	}
}

// Run bloquea hasta que ctx se cancele. Un tick con error no detiene el
// loop: no hay retry automático, el próximo tick vuelve a intentar.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("reminder scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			if err := s.matcher.Check(ctx); err != nil {
				s.log.Error().Err(err).Msg("reminder check failed")
			}
		}
	}
}
