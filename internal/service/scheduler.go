package service

import (
	"bitwise74/waitlist-api/internal/metrics"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of background work run on a cron schedule
type Job func(ctx context.Context) error

type Scheduler struct {
	c *cron.Cron
}

func NewScheduler() *Scheduler {
	l := cronLogger{}

	return &Scheduler{
		c: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// Add registers job under name. Every run gets its own context that expires
// after timeout
func (s *Scheduler) Add(name, schedule string, timeout time.Duration, job Job) error {
	_, err := s.c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		err := job(ctx)
		metrics.ObserveJob(name, err)

		if err != nil {
			zap.L().Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}

		zap.L().Debug("Scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s, %w", schedule, name, err)
	}

	zap.L().Debug("Job attached", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop stops scheduling new runs and waits for running ones until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	zap.L().Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	zap.L().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
