package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const maintenanceStream = "convflow:maintenance"

// SessionSweeper reclaims expired refresh sessions. Sessions expire lazily
// at validation time; the sweep only bounds table growth.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sessions SessionSweeper
	queue    *redis.Client
	log      zerolog.Logger
}

func NewScheduler(sessions SessionSweeper, queue *redis.Client, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sessions: sessions,
		queue:    queue,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish, bounded by a short timeout.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expired session sweep failed")
		return
	}
	s.log.Info().Int64("deleted", deleted).Msg("expired sessions swept")

	s.publishMaintenance(ctx, map[string]any{
		"type":    "session_sweep",
		"deleted": deleted,
	})
}

// publishMaintenance signals downstream workers on the maintenance stream;
// the sweep itself has already happened, so publish errors are only logged.
func (s *Scheduler) publishMaintenance(ctx context.Context, payload map[string]any) {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: maintenanceStream,
		Values: payload,
	}).Result(); err != nil {
		s.log.Error().Err(err).Msg("publish maintenance event failed")
	}
}
