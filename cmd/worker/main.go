package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearspend/reconciler/internal/config"
	infraBQ "github.com/clearspend/reconciler/internal/infra/bigquery"
	"github.com/clearspend/reconciler/internal/jobs"
	"github.com/clearspend/reconciler/internal/jobs/inmemory"
	"github.com/clearspend/reconciler/internal/logger"
	"github.com/clearspend/reconciler/internal/reconcile"
	"github.com/clearspend/reconciler/internal/reports"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	log.Info().Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.GCPProjectID, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction repository")
	}
	defer repo.Close()

	var archiver reconcile.ReportArchiver
	if cfg.ReportsBucket != "" {
		gcsArchiver, err := reports.NewGCSArchiver(ctx, cfg.ReportsBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create report archiver")
		}
		defer gcsArchiver.Close()
		archiver = gcsArchiver
	}

	engine := reconcile.NewEngine(repo, cfg.ReconcileConfig(), log)
	runner := reconcile.NewRunner(engine, reconcile.NewUserGuard(), repo, archiver, log)

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkerCount, jobStore)

	handler := func(ctx context.Context, job jobs.Job) error {
		reconcileJob, ok := job.(*jobs.ReconcileUserJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Str("user_id", reconcileJob.UserID).
			Msg("Processing reconciliation job")

		result, err := runner.Run(logger.WithContext(ctx, log), reconcileJob.UserID)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", reconcileJob.JobID).
				Str("user_id", reconcileJob.UserID).
				Msg("Reconciliation run failed")
			return err
		}
		reconcileJob.Result = &result

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Str("user_id", reconcileJob.UserID).
			Int("transfers", result.TransfersDetected).
			Int("refunds", result.RefundsDetected).
			Int("bounced", result.BouncedPaymentsDetected).
			Int("transactions_updated", result.TransactionsUpdated).
			Msg("Reconciliation run completed")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
