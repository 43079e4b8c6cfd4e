package grimoire

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/siherrmann/grimoire/helper"
)

// Scheduler runs index rebuilds on a cron schedule.
// A run is skipped while the previous one is still going.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// ScheduleRebuilds starts rebuilding the configured corpus on schedule, a standard
// five field cron expression or a descriptor like "@daily".
func (g *Grimoire) ScheduleRebuilds(schedule string) (*Scheduler, error) {
	return newScheduler(schedule, func(ctx context.Context) error {
		_, err := g.BuildIndex(ctx, "")
		return err
	}, g.log)
}

func newScheduler(schedule string, rebuild func(ctx context.Context) error, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		start := time.Now()
		logger.Info("Scheduled rebuild started", slog.String("schedule", schedule))

		if err := rebuild(context.Background()); err != nil {
			logger.Error("Scheduled rebuild failed", slog.Any("error", err))
			return
		}

		logger.Info("Scheduled rebuild finished", slog.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return nil, helper.NewError("parse rebuild schedule", err)
	}

	c.Start()
	logger.Info("Scheduled rebuilds", slog.String("schedule", schedule))

	return &Scheduler{cron: c, logger: logger}, nil
}

// Stop stops scheduling and waits for a running rebuild until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
