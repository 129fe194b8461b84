package app

import (
	"bitwise74/waitlist-api/aws"
	"bitwise74/waitlist-api/config"
	"bitwise74/waitlist-api/internal/metrics"
	"bitwise74/waitlist-api/internal/service"
	"bitwise74/waitlist-api/internal/store"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	reconcileTimeout = 10 * time.Minute
	exportTimeout    = 5 * time.Minute
)

// StartJobs attaches the configured background jobs and starts the scheduler
func StartJobs(ctx context.Context, cfg *config.Config, users *store.Users) (*service.Scheduler, error) {
	s := service.NewScheduler()

	reconciler := service.NewReconciler(users)
	reconcile := func(ctx context.Context) error {
		n, err := reconciler.Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("Referral stats reconciled", zap.Int("updated", n))
		return nil
	}

	if cfg.Jobs.ReconcileSchedule != "" {
		if err := s.Add("reconcile", cfg.Jobs.ReconcileSchedule, reconcileTimeout, reconcile); err != nil {
			return nil, err
		}
	}

	if cfg.Jobs.ReconcileOnStart {
		runNow(ctx, "reconcile", reconcileTimeout, reconcile)
	}

	if cfg.Export.Enabled {
		s3, err := aws.NewS3(ctx, cfg.Export)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		exporter := service.NewExporter(users, s3.Uploader, cfg.Export.Bucket, cfg.Export.Prefix)
		export := func(ctx context.Context) error {
			_, err := exporter.Run(ctx)
			return err
		}

		if err := s.Add("export", cfg.Export.Schedule, exportTimeout, export); err != nil {
			return nil, err
		}

		if cfg.Jobs.ExportOnStart {
			runNow(ctx, "export", exportTimeout, export)
		}
	} else if cfg.Jobs.ExportOnStart {
		zap.L().Warn("Export requested on startup but export is disabled")
	}

	s.Start()
	return s, nil
}

func runNow(ctx context.Context, name string, timeout time.Duration, job service.Job) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := job(ctx)
	metrics.ObserveJob(name, err)

	if err != nil {
		zap.L().Error("Startup job failed", zap.String("job", name), zap.Error(err))
	}
}
