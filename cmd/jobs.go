package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sesiku/ms-go-reconciliation/app/service"
	"github.com/sesiku/ms-go-reconciliation/config"
)

var (
	workerMode bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-verify stale waiting/pending bookings against the gateway",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcileInterval },
			func(s *service.ReconcileService, ctx context.Context) error {
				_, err := s.RunReconcileBatch(ctx)
				return err
			},
		)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Fail unpaid bookings whose session start has passed",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireInterval },
			func(s *service.ReconcileService, ctx context.Context) error {
				_, err := s.RunExpireUnpaidBatch(ctx)
				return err
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(expireCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.ReconcileService, ctx context.Context) error,
) {
	cfg, reconcileService, cleanup := mustCreateReconcileService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), reconcileService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(reconcileService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	reconcileService *service.ReconcileService,
	fn func(s *service.ReconcileService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(reconcileService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(reconcileService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
