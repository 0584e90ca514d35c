package handlers

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightcart/demopipe/internal/api/middleware"
	infra "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/jobs"
)

// RunsHandler handles processing-run endpoints.
type RunsHandler struct {
	repo      infra.RunRepository
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo infra.RunRepository, publisher jobs.Publisher, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// CreateRun handles POST /api/runs
// It enqueues a dataset processing job for asynchronous execution.
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InputURI  string `json:"input_uri"`
		OutputURI string `json:"output_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.InputURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "input_uri is required")
		return
	}

	ctx := r.Context()

	job := &jobs.ProcessDatasetJob{
		InputURI:  req.InputURI,
		OutputURI: req.OutputURI,
	}

	if err := h.publisher.PublishProcessDataset(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("input_uri", req.InputURI).Msg("Processing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"input_uri": req.InputURI,
		"status":    string(job.Status),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	ctx := r.Context()

	run, err := h.repo.GetProcessingRun(ctx, runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	if run == nil {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	runs, err := h.repo.ListProcessingRuns(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunStats handles GET /api/runs/{id}/stats
// It aggregates the processed transactions written by a run.
func (h *RunsHandler) GetRunStats(w http.ResponseWriter, r *http.Request, runID string) {
	ctx := r.Context()

	rows, err := h.repo.QueryTransactionsByRun(ctx, runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to query run transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query run transactions")
		return
	}

	var (
		total   big.Rat
		dateMin time.Time
		dateMax time.Time
		withLoc int
	)
	for _, row := range rows {
		if row.Amount != nil {
			total.Add(&total, row.Amount)
		}
		if dateMin.IsZero() || row.TransactionTS.Before(dateMin) {
			dateMin = row.TransactionTS
		}
		if dateMax.IsZero() || row.TransactionTS.After(dateMax) {
			dateMax = row.TransactionTS
		}
		if row.Latitude.Valid {
			withLoc++
		}
	}

	totalAmount, _ := total.Float64()
	avg := 0.0
	if len(rows) > 0 {
		avg = totalAmount / float64(len(rows))
	}

	stats := map[string]interface{}{
		"run_id":            runID,
		"transaction_count": len(rows),
		"total_amount":      totalAmount,
		"avg_transaction":   avg,
		"with_location":     withLoc,
	}
	if !dateMin.IsZero() {
		stats["date_min"] = dateMin.Format(time.RFC3339)
		stats["date_max"] = dateMax.Format(time.RFC3339)
	}

	middleware.WriteJSON(w, http.StatusOK, stats)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		RunID:  query.Get("run_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
