package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/billrecon/internal/billsource"
	"github.com/dvloznov/billrecon/internal/config"
	"github.com/dvloznov/billrecon/internal/domain"
	"github.com/dvloznov/billrecon/internal/jobs"
	"github.com/dvloznov/billrecon/internal/jobs/inmemory"
	ledgermem "github.com/dvloznov/billrecon/internal/ledger/inmemory"
	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/notionsync"
	"github.com/dvloznov/billrecon/internal/pipeline"
	"github.com/robfig/cron/v3"
)

func main() {
	envFile := flag.String("env", ".env", "Path to a .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewFromConfig(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Inbox == "" {
		log.Fatal().Msg("BILLRECON_INBOX is required")
	}

	src := billsource.New()
	engine, err := pipeline.NewEngineFromConfig(cfg, src)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure import engine")
	}
	ledger := ledgermem.NewStore()
	ingester := pipeline.NewIngester(engine, ledger, src)

	var notion notionsync.NotionService
	if cfg.NotionEnabled() {
		notion = notionsync.NewClient(cfg.NotionToken)
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(cfg.Workers))

	log.Info().
		Str("inbox", cfg.Inbox).
		Str("schedule", cfg.Schedule).
		Int("workers", cfg.Workers).
		Bool("notion", cfg.NotionEnabled()).
		Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	handler := func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportBillJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		jobLog := log.With().
			Str("job_id", importJob.JobID).
			Str("uri", importJob.URI).
			Int("attempt", importJob.RetryCount+1).
			Logger()
		jobLog.Info().Msg("Processing import job")

		opts := pipeline.IngestOptions{
			Options: pipeline.Options{AllowUnreconciled: importJob.AllowUnreconciled},
			Source:  domain.Source(importJob.Source),
			Strict:  cfg.Strict,
		}
		if cfg.Archive != "" {
			opts.ArchiveTo = billsource.Join(cfg.Archive, billsource.Filename(importJob.URI))
		}

		res, err := ingester.Ingest(logger.WithContext(ctx, jobLog), importJob.URI, opts)
		if res != nil && res.Import != nil {
			importJob.Verdict = string(res.Import.Verdict.Status)
			importJob.Warnings = len(res.Import.Warnings)
		}
		if err != nil {
			jobLog.Error().Err(err).Msg("Import job failed")
			return err
		}

		importJob.Inserted = res.Saved.Inserted
		importJob.Duplicates = res.Saved.Duplicates

		if notion != nil && res.Saved.Inserted > 0 {
			// Best effort: the ledger already holds the batch.
			if _, err := notionsync.SyncTransactions(logger.WithContext(ctx, jobLog), notion, cfg.NotionDatabase, res.Import.Transactions, false); err != nil {
				jobLog.Warn().Err(err).Msg("Notion sync failed")
			}
		}
		jobLog.Info().
			Str("verdict", importJob.Verdict).
			Int("inserted", importJob.Inserted).
			Int("duplicates", importJob.Duplicates).
			Int("ledger_size", ledger.Len()).
			Msg("Import job completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scanner := jobs.NewInboxScanner(src, jobQueue, cfg.Inbox)
	scanner.AllowUnreconciled = cfg.AllowUnreconciled
	scanner.Jobs = jobStore
	scan := func() {
		scanCtx, scanCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer scanCancel()
		n, err := scanner.Scan(scanCtx)
		if err != nil {
			log.Error().Err(err).Msg("Inbox scan failed")
			return
		}
		log.Debug().Int("queued", n).Msg("Inbox scanned")
	}

	c := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := c.AddFunc(cfg.Schedule, scan); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Schedule).Msg("Unable to schedule inbox scan")
	}
	c.Start()
	go scan()

	log.Info().Msg("Worker service started, watching inbox...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Wait for a running scan before closing the queue it publishes to.
	<-c.Stop().Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	if report, err := jobs.Report(shutdownCtx, jobStore); err != nil {
		log.Error().Err(err).Msg("Failed to summarize jobs")
	} else {
		for _, job := range report.Failed {
			log.Warn().
				Str("job_id", job.JobID).
				Str("uri", job.URI).
				Str("error", job.Error).
				Msg("Import job failed permanently")
		}
		log.Info().
			Int("total", report.Total()).
			Int("completed", report.Counts[jobs.JobStatusCompleted]).
			Int("failed", report.Counts[jobs.JobStatusFailed]).
			Int("pending", report.Counts[jobs.JobStatusPending]+report.Counts[jobs.JobStatusRetrying]).
			Msg("Job summary")
	}

	log.Info().Msg("Worker service exited")
}
