package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/config"
	"github.com/insightcart/demopipe/internal/domain"
	infra "github.com/insightcart/demopipe/internal/infra/bigquery"
	"github.com/insightcart/demopipe/internal/logger"
	"github.com/insightcart/demopipe/internal/pipeline"
)

// MockRunRepository is a mock implementation of RunRepository for testing.
type MockRunRepository struct {
	StartProcessingRunFunc          func(ctx context.Context, inputURI string) (string, error)
	MarkProcessingRunFailedFunc     func(ctx context.Context, runID string, runErr error)
	MarkProcessingRunSucceededFunc  func(ctx context.Context, runID string, recordCount int) error
	InsertProcessedTransactionsFunc func(ctx context.Context, rows []*infra.ProcessedTransactionRow) error

	InsertedRows []*infra.ProcessedTransactionRow
	FailedWith   error
	Succeeded    bool
}

func (m *MockRunRepository) StartProcessingRun(ctx context.Context, inputURI string) (string, error) {
	if m.StartProcessingRunFunc != nil {
		return m.StartProcessingRunFunc(ctx, inputURI)
	}
	return "run-test", nil
}

func (m *MockRunRepository) MarkProcessingRunFailed(ctx context.Context, runID string, runErr error) {
	m.FailedWith = runErr
	if m.MarkProcessingRunFailedFunc != nil {
		m.MarkProcessingRunFailedFunc(ctx, runID, runErr)
	}
}

func (m *MockRunRepository) MarkProcessingRunSucceeded(ctx context.Context, runID string, recordCount int) error {
	m.Succeeded = true
	if m.MarkProcessingRunSucceededFunc != nil {
		return m.MarkProcessingRunSucceededFunc(ctx, runID, recordCount)
	}
	return nil
}

func (m *MockRunRepository) InsertProcessedTransactions(ctx context.Context, rows []*infra.ProcessedTransactionRow) error {
	m.InsertedRows = rows
	if m.InsertProcessedTransactionsFunc != nil {
		return m.InsertProcessedTransactionsFunc(ctx, rows)
	}
	return nil
}

func (m *MockRunRepository) GetProcessingRun(ctx context.Context, runID string) (*infra.ProcessingRunRow, error) {
	return nil, nil
}

func (m *MockRunRepository) ListProcessingRuns(ctx context.Context, limit int) ([]*infra.ProcessingRunRow, error) {
	return nil, nil
}

func (m *MockRunRepository) QueryTransactionsByRun(ctx context.Context, runID string) ([]*infra.ProcessedTransactionRow, error) {
	return nil, nil
}

// MockDatasetSource is a mock implementation of DatasetSource for testing.
type MockDatasetSource struct {
	FetchDatasetFunc func(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error)
}

func (m *MockDatasetSource) FetchDataset(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error) {
	if m.FetchDatasetFunc != nil {
		return m.FetchDatasetFunc(ctx, uri, sensitiveFields)
	}
	return testRecords(), nil
}

// MockUploader is a mock implementation of Uploader for testing.
type MockUploader struct {
	UploadFileFunc func(ctx context.Context, uri, filePath string) error
	Uploaded       []string
}

func (m *MockUploader) UploadFile(ctx context.Context, uri, filePath string) error {
	m.Uploaded = append(m.Uploaded, filePath)
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, uri, filePath)
	}
	return nil
}

func testRecords() []domain.TransactionRecord {
	return []domain.TransactionRecord{
		{
			ID:          "txn-001",
			Timestamp:   time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
			Amount:      41.00,
			Currency:    "EUR",
			Status:      "completed",
			PaymentType: domain.PaymentTypeCard,
			Location:    &domain.Location{Lat: 51.5074, Lon: -0.1278},
			Products: []domain.ProductEntry{
				{Name: "Espresso", Quantity: 2, UnitPrice: 15.50, TotalPrice: 31.00},
			},
			Sensitive: map[string]string{"internal_id": "secret"},
		},
		{
			ID:          "txn-002",
			Timestamp:   time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
			Amount:      5.25,
			Currency:    "EUR",
			Status:      "completed",
			PaymentType: domain.PaymentTypeCash,
		},
	}
}

func testProcessor(t *testing.T) *anonymizer.Processor {
	t.Helper()
	p, err := anonymizer.NewProcessor(
		anonymizer.DefaultConfig(),
		rand.New(rand.NewSource(11)),
		logger.NewWithWriter(&bytes.Buffer{}),
	)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	return p
}

func testContext() context.Context {
	log := logger.NewWithWriter(&bytes.Buffer{})
	return logger.WithContext(context.Background(), log)
}

func TestProcessingPipeline_FullRun(t *testing.T) {
	dir := t.TempDir()
	repo := &MockRunRepository{}
	uploader := &MockUploader{}

	output := config.OutputConfig{
		DatasetPath:     filepath.Join(dir, "processed.json"),
		TransactionsCSV: filepath.Join(dir, "transactions.csv"),
		ProductsCSV:     filepath.Join(dir, "products.csv"),
		UploadURI:       "gs://demo-bucket/processed.json",
		BigQueryEnabled: true,
	}

	p := pipeline.NewProcessingPipeline(pipeline.Deps{
		Repo:      repo,
		Source:    &MockDatasetSource{},
		Uploader:  uploader,
		Processor: testProcessor(t),
		Output:    output,
	})

	state := &pipeline.PipelineState{InputURI: "gs://demo-bucket/raw.json"}
	if err := p.Execute(testContext(), state); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if state.RunID != "run-test" {
		t.Errorf("RunID = %q", state.RunID)
	}
	if len(state.Processed) != 2 {
		t.Fatalf("processed records = %d, want 2", len(state.Processed))
	}
	if state.Stats.Original.TotalTransactions != 2 || state.Stats.Processed.TotalTransactions != 2 {
		t.Errorf("stats = %+v", state.Stats)
	}

	for _, path := range []string{output.DatasetPath, output.TransactionsCSV, output.ProductsCSV} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected artifact %s: %v", path, err)
		}
	}
	if len(state.Artifacts) != 3 {
		t.Errorf("Artifacts = %v", state.Artifacts)
	}

	if len(uploader.Uploaded) != 1 || uploader.Uploaded[0] != output.DatasetPath {
		t.Errorf("Uploaded = %v", uploader.Uploaded)
	}

	if len(repo.InsertedRows) != 2 {
		t.Errorf("inserted rows = %d, want 2", len(repo.InsertedRows))
	}
	for _, row := range repo.InsertedRows {
		if row.RunID != "run-test" {
			t.Errorf("row RunID = %q", row.RunID)
		}
	}
	if !repo.Succeeded {
		t.Error("expected run marked succeeded")
	}
	if repo.FailedWith != nil {
		t.Errorf("unexpected failure mark: %v", repo.FailedWith)
	}
}

func TestProcessingPipeline_FetchFailureMarksRun(t *testing.T) {
	repo := &MockRunRepository{}
	fetchErr := errors.New("object not found")

	p := pipeline.NewProcessingPipeline(pipeline.Deps{
		Repo: repo,
		Source: &MockDatasetSource{
			FetchDatasetFunc: func(ctx context.Context, uri string, fields []string) ([]domain.TransactionRecord, error) {
				return nil, fetchErr
			},
		},
		Processor: testProcessor(t),
	})

	state := &pipeline.PipelineState{InputURI: "gs://demo-bucket/missing.json"}
	err := p.Execute(testContext(), state)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, fetchErr) {
		t.Errorf("error = %v, want wrapped %v", err, fetchErr)
	}
	if !strings.Contains(err.Error(), "step 2") {
		t.Errorf("error should name the failing step: %v", err)
	}
	if !errors.Is(repo.FailedWith, fetchErr) {
		t.Errorf("run not marked failed with fetch error: %v", repo.FailedWith)
	}
	if repo.Succeeded {
		t.Error("run must not be marked succeeded")
	}
}

func TestProcessingPipeline_NoBookkeeping(t *testing.T) {
	dir := t.TempDir()
	output := config.OutputConfig{DatasetPath: filepath.Join(dir, "processed.json")}

	p := pipeline.NewProcessingPipeline(pipeline.Deps{
		Source:    &MockDatasetSource{},
		Processor: testProcessor(t),
		Output:    output,
	})

	state := &pipeline.PipelineState{InputURI: "raw.json"}
	if err := p.Execute(testContext(), state); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if state.RunID != "" {
		t.Errorf("RunID = %q, want empty without repository", state.RunID)
	}
	if _, err := os.Stat(output.DatasetPath); err != nil {
		t.Errorf("expected dataset artifact: %v", err)
	}
}

func TestProcessingPipeline_SensitiveFieldsScrubbed(t *testing.T) {
	p := pipeline.NewProcessingPipeline(pipeline.Deps{
		Source:    &MockDatasetSource{},
		Processor: testProcessor(t),
	})

	state := &pipeline.PipelineState{InputURI: "raw.json"}
	if err := p.Execute(testContext(), state); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, rec := range state.Processed {
		if rec.Sensitive != nil {
			t.Errorf("record %s kept sensitive fields: %v", rec.ID, rec.Sensitive)
		}
	}
}
