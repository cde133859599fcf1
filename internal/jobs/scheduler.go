package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type TokenPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic maintenance jobs: expired refresh-token rows
// are purged daily so the session table only holds live sessions.
type Scheduler struct {
	cron   *cron.Cron
	tokens TokenPurger
	log    zerolog.Logger
}

func NewScheduler(tokens TokenPurger, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		tokens: tokens,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.tokens == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 0 * * *", s.purgeExpiredTokens); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

func (s *Scheduler) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("refresh token purge failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("expired refresh tokens purged")
	}
}
