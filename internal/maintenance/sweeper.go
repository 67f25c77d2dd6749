// Package maintenance runs periodic background jobs.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/schedulehq/schedulehq/internal/metrics"
)

// InvitationPurger deletes unused invitations that expired before the cutoff
// and reports how many rows were removed.
type InvitationPurger interface {
	PurgeExpiredInvitations(ctx context.Context, before time.Time) (int64, error)
}

// DefaultSweepSchedule runs the sweeper hourly.
const DefaultSweepSchedule = "@hourly"

// RetentionPeriod is how long expired invitations are kept before deletion,
// so support can still inspect recently expired tokens.
const RetentionPeriod = 24 * time.Hour

// Sweeper periodically purges expired invitations.
type Sweeper struct {
	purger   InvitationPurger
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewSweeper creates a Sweeper. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(purger InvitationPurger, schedule string, logger zerolog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		purger:   purger,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("invitation sweeper started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("invitation sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-RetentionPeriod)
	purged, err := s.purger.PurgeExpiredInvitations(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to purge expired invitations")
		return
	}
	if purged > 0 {
		metrics.InvitationsPurged.Add(float64(purged))
		s.logger.Info().Int64("purged", purged).Msg("purged expired invitations")
	}
}
