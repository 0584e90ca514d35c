package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/api/handlers"
	"github.com/insightcart/demopipe/internal/api/middleware"
	"github.com/insightcart/demopipe/internal/config"
	infraBQ "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/jobs"
	"github.com/insightcart/demopipe/internal/jobs/inmemory"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/pipeline"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		mapping = flag.String("mapping", os.Getenv("PRODUCT_MAPPING"), "Product name mapping table (or set PRODUCT_MAPPING env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	// Initialize repositories
	repo, err := infraBQ.NewBigQueryRunRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run repository")
	}
	defer repo.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Create job handler for processing dataset jobs
	jobHandler := func(ctx context.Context, job jobs.Job) error {
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
				BigQueryEnabled: true,
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
			Msg("Pipeline execution completed successfully")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	runsHandler := handlers.NewRunsHandler(repo, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Runs endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			runsHandler.ListRuns(w, r)
		case http.MethodPost:
			runsHandler.CreateRun(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
			return
		}
		if runID, ok := strings.CutSuffix(rest, "/stats"); ok {
			runsHandler.GetRunStats(w, r, runID)
			return
		}
		runsHandler.GetRun(w, r, rest)
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
