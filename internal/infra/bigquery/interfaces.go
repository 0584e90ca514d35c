package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// RunRepository provides an interface for processing-run database operations.
// This interface enables mocking and testing of the run bookkeeping.
type RunRepository interface {
	// InsertProcessedTransactions inserts a batch of processed rows.
	InsertProcessedTransactions(ctx context.Context, rows []*ProcessedTransactionRow) error

	// StartProcessingRun inserts a new run with status=RUNNING and returns the run_id.
	StartProcessingRun(ctx context.Context, inputURI string) (string, error)

	// MarkProcessingRunFailed sets status=FAILED, finished_ts and error_message for a run.
	MarkProcessingRunFailed(ctx context.Context, runID string, runErr error)

	// MarkProcessingRunSucceeded sets status=SUCCESS, finished_ts and record_count for a run.
	MarkProcessingRunSucceeded(ctx context.Context, runID string, recordCount int) error

	// GetProcessingRun fetches a single run by id, nil if not found.
	GetProcessingRun(ctx context.Context, runID string) (*ProcessingRunRow, error)

	// ListProcessingRuns returns the most recent runs, newest first.
	ListProcessingRuns(ctx context.Context, limit int) ([]*ProcessingRunRow, error)

	// QueryTransactionsByRun returns all processed transactions written by a run.
	QueryTransactionsByRun(ctx context.Context, runID string) ([]*ProcessedTransactionRow, error)
}

// BigQueryRunRepository is the concrete implementation of RunRepository.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type BigQueryRunRepository struct {
	client *bigquery.Client
}

// NewBigQueryRunRepository creates a new instance of BigQueryRunRepository
// with a shared BigQuery client.
func NewBigQueryRunRepository(ctx context.Context) (*BigQueryRunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{
		client: client,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertProcessedTransactions delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) InsertProcessedTransactions(ctx context.Context, rows []*ProcessedTransactionRow) error {
	return InsertProcessedTransactionsWithClient(ctx, r.client, rows)
}

// StartProcessingRun delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) StartProcessingRun(ctx context.Context, inputURI string) (string, error) {
	return StartProcessingRunWithClient(ctx, r.client, inputURI)
}

// MarkProcessingRunFailed delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) MarkProcessingRunFailed(ctx context.Context, runID string, runErr error) {
	MarkProcessingRunFailedWithClient(ctx, r.client, runID, runErr)
}

// MarkProcessingRunSucceeded delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) MarkProcessingRunSucceeded(ctx context.Context, runID string, recordCount int) error {
	return MarkProcessingRunSucceededWithClient(ctx, r.client, runID, recordCount)
}

// GetProcessingRun delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) GetProcessingRun(ctx context.Context, runID string) (*ProcessingRunRow, error) {
	return GetProcessingRunWithClient(ctx, r.client, runID)
}

// ListProcessingRuns delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) ListProcessingRuns(ctx context.Context, limit int) ([]*ProcessingRunRow, error) {
	return ListProcessingRunsWithClient(ctx, r.client, limit)
}

// QueryTransactionsByRun delegates to the existing function with the shared client.
func (r *BigQueryRunRepository) QueryTransactionsByRun(ctx context.Context, runID string) ([]*ProcessedTransactionRow, error) {
	return QueryTransactionsByRunWithClient(ctx, r.client, runID)
}
