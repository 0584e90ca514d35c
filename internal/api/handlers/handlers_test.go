package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"

	infra "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/jobs"
	"github.com/insightcart/demopipe/internal/logger"
)

// MockRunRepository is a mock implementation of RunRepository for testing.
type MockRunRepository struct {
	GetProcessingRunFunc       func(ctx context.Context, runID string) (*infra.ProcessingRunRow, error)
	ListProcessingRunsFunc     func(ctx context.Context, limit int) ([]*infra.ProcessingRunRow, error)
	QueryTransactionsByRunFunc func(ctx context.Context, runID string) ([]*infra.ProcessedTransactionRow, error)
}

func (m *MockRunRepository) InsertProcessedTransactions(ctx context.Context, rows []*infra.ProcessedTransactionRow) error {
	return nil
}

func (m *MockRunRepository) StartProcessingRun(ctx context.Context, inputURI string) (string, error) {
	return "run-test", nil
}

func (m *MockRunRepository) MarkProcessingRunFailed(ctx context.Context, runID string, runErr error) {}

func (m *MockRunRepository) MarkProcessingRunSucceeded(ctx context.Context, runID string, recordCount int) error {
	return nil
}

func (m *MockRunRepository) GetProcessingRun(ctx context.Context, runID string) (*infra.ProcessingRunRow, error) {
	if m.GetProcessingRunFunc != nil {
		return m.GetProcessingRunFunc(ctx, runID)
	}
	return nil, nil
}

func (m *MockRunRepository) ListProcessingRuns(ctx context.Context, limit int) ([]*infra.ProcessingRunRow, error) {
	if m.ListProcessingRunsFunc != nil {
		return m.ListProcessingRunsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockRunRepository) QueryTransactionsByRun(ctx context.Context, runID string) ([]*infra.ProcessedTransactionRow, error) {
	if m.QueryTransactionsByRunFunc != nil {
		return m.QueryTransactionsByRunFunc(ctx, runID)
	}
	return nil, nil
}

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishProcessDatasetFunc func(ctx context.Context, job *jobs.ProcessDatasetJob) error
	Published                 []*jobs.ProcessDatasetJob
}

func (m *MockPublisher) PublishProcessDataset(ctx context.Context, job *jobs.ProcessDatasetJob) error {
	if job.JobID == "" {
		job.JobID = "job-test"
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	m.Published = append(m.Published, job)
	if m.PublishProcessDatasetFunc != nil {
		return m.PublishProcessDatasetFunc(ctx, job)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockJobStore is a mock implementation of jobs.JobStore for testing.
type MockJobStore struct {
	GetJobFunc   func(ctx context.Context, jobID string) (*jobs.ProcessDatasetJob, error)
	ListJobsFunc func(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessDatasetJob, error)
}

func (m *MockJobStore) SaveJob(ctx context.Context, job *jobs.ProcessDatasetJob) error { return nil }

func (m *MockJobStore) GetJob(ctx context.Context, jobID string) (*jobs.ProcessDatasetJob, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, jobID)
	}
	return nil, errors.New("not found")
}

func (m *MockJobStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessDatasetJob, error) {
	if m.ListJobsFunc != nil {
		return m.ListJobsFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockJobStore) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	return nil
}

func runsHandler(repo *MockRunRepository, pub *MockPublisher) *RunsHandler {
	return NewRunsHandler(repo, pub, logger.NewWithWriter(&bytes.Buffer{}))
}

func TestCreateRun(t *testing.T) {
	pub := &MockPublisher{}
	h := runsHandler(&MockRunRepository{}, pub)

	body := strings.NewReader(`{"input_uri": "gs://demo-bucket/raw.json"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	rec := httptest.NewRecorder()

	h.CreateRun(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(pub.Published) != 1 {
		t.Fatalf("published jobs = %d, want 1", len(pub.Published))
	}
	if pub.Published[0].InputURI != "gs://demo-bucket/raw.json" {
		t.Errorf("InputURI = %q", pub.Published[0].InputURI)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["job_id"] != "job-test" {
		t.Errorf("job_id = %q", resp["job_id"])
	}
}

func TestCreateRun_Validation(t *testing.T) {
	h := runsHandler(&MockRunRepository{}, &MockPublisher{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing input_uri", `{"output_uri": "gs://out"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.CreateRun(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	repo := &MockRunRepository{
		GetProcessingRunFunc: func(ctx context.Context, runID string) (*infra.ProcessingRunRow, error) {
			if runID == "run-1" {
				return &infra.ProcessingRunRow{RunID: "run-1", Status: "SUCCESS"}, nil
			}
			return nil, nil
		},
	}
	h := runsHandler(repo, &MockPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rec := httptest.NewRecorder()
	h.GetRun(rec, req, "run-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var run infra.ProcessingRunRow
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.RunID != "run-1" || run.Status != "SUCCESS" {
		t.Errorf("run = %+v", run)
	}

	rec = httptest.NewRecorder()
	h.GetRun(rec, req, "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for unknown run = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListRuns(t *testing.T) {
	var gotLimit int
	repo := &MockRunRepository{
		ListProcessingRunsFunc: func(ctx context.Context, limit int) ([]*infra.ProcessingRunRow, error) {
			gotLimit = limit
			return []*infra.ProcessingRunRow{
				{RunID: "run-1"},
				{RunID: "run-2"},
			}, nil
		},
	}
	h := runsHandler(repo, &MockPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestGetRunStats(t *testing.T) {
	repo := &MockRunRepository{
		QueryTransactionsByRunFunc: func(ctx context.Context, runID string) ([]*infra.ProcessedTransactionRow, error) {
			return []*infra.ProcessedTransactionRow{
				{
					TransactionID: "txn-1",
					TransactionTS: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
					Amount:        big.NewRat(30, 1),
					Latitude:      bigquery.NullFloat64{Float64: 51.5, Valid: true},
				},
				{
					TransactionID: "txn-2",
					TransactionTS: time.Date(2024, 4, 3, 9, 0, 0, 0, time.UTC),
					Amount:        big.NewRat(10, 1),
				},
			}, nil
		},
	}
	h := runsHandler(repo, &MockPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/stats", nil)
	rec := httptest.NewRecorder()
	h.GetRunStats(rec, req, "run-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats struct {
		TransactionCount int     `json:"transaction_count"`
		TotalAmount      float64 `json:"total_amount"`
		AvgTransaction   float64 `json:"avg_transaction"`
		WithLocation     int     `json:"with_location"`
		DateMin          string  `json:"date_min"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.TransactionCount != 2 || stats.TotalAmount != 40 || stats.AvgTransaction != 20 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.WithLocation != 1 {
		t.Errorf("with_location = %d, want 1", stats.WithLocation)
	}
	if stats.DateMin != "2024-04-01T09:00:00Z" {
		t.Errorf("date_min = %q", stats.DateMin)
	}
}

func TestJobsHandler(t *testing.T) {
	store := &MockJobStore{
		GetJobFunc: func(ctx context.Context, jobID string) (*jobs.ProcessDatasetJob, error) {
			if jobID == "job-1" {
				return &jobs.ProcessDatasetJob{JobID: "job-1", Status: jobs.JobStatusCompleted}, nil
			}
			return nil, errors.New("not found")
		},
		ListJobsFunc: func(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessDatasetJob, error) {
			if filter.RunID == "run-1" {
				return []*jobs.ProcessDatasetJob{{JobID: "job-1", RunID: "run-1"}}, nil
			}
			return nil, nil
		},
	}
	h := NewJobsHandler(store, logger.NewWithWriter(&bytes.Buffer{}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	h.GetJob(rec, req, "job-1")
	if rec.Code != http.StatusOK {
		t.Errorf("GetJob status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, req, "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetJob unknown status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs?run_id=run-1", nil)
	rec = httptest.NewRecorder()
	h.ListJobs(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ListJobs status = %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}
