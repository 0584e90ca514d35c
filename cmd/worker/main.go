package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/config"
	infraBQ "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/jobs"
	"github.com/insightcart/demopipe/internal/jobs/inmemory"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/pipeline"
)

func main() {
	var (
		mapping = flag.String("mapping", "", "Product name mapping table (YAML)")
		useBQ   = flag.Bool("bigquery", false, "Record runs and sink rows into BigQuery")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var repo infraBQ.RunRepository
	if *useBQ {
		bqRepo, err := infraBQ.NewBigQueryRunRepository(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create run repository")
		}
		defer bqRepo.Close()
		repo = bqRepo
	}

	// Create job handler that processes dataset jobs
	handler := func(ctx context.Context, job jobs.Job) error {
		datasetJob, ok := job.(*jobs.ProcessDatasetJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", datasetJob.JobID).
			Str("input_uri", datasetJob.InputURI).
			Msg("Processing dataset job")

		state, err := pipeline.Run(ctx, datasetJob.InputURI, pipeline.Options{
			Output: config.OutputConfig{
				DatasetPath:     "processed_transactions.json",
				UploadURI:       datasetJob.OutputURI,
				BigQueryEnabled: repo != nil,
			},
			Anonymizer:  anonymizer.DefaultConfig(),
			MappingPath: *mapping,
			Repo:        repo,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", datasetJob.JobID).
				Msg("Pipeline execution failed")
			return err
		}
		datasetJob.RunID = state.RunID

		log.Info().
			Str("job_id", datasetJob.JobID).
			Str("run_id", state.RunID).
			Int("records", state.Stats.Processed.TotalTransactions).
			Msg("Pipeline execution completed successfully")

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
