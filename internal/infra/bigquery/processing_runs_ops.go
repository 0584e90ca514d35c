package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/insightcart/demopipe/internal/logger"
)

const processingRunsTable = "processing_runs"

// StartProcessingRun inserts a new row into demopipe.processing_runs with
// status=RUNNING and returns the generated run_id.
func StartProcessingRun(ctx context.Context, inputURI string) (string, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("StartProcessingRun: bigquery client: %w", err)
	}
	defer client.Close()

	return StartProcessingRunWithClient(ctx, client, inputURI)
}

// StartProcessingRunWithClient inserts a new row into demopipe.processing_runs
// with status=RUNNING and returns the generated run_id using the provided
// BigQuery client.
func StartProcessingRunWithClient(ctx context.Context, client *bigquery.Client, inputURI string) (string, error) {
	runID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			input_uri,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@input_uri,
			@started_ts,
			@status
		)
	`, datasetID, processingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "input_uri", Value: inputURI},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: "RUNNING"},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("StartProcessingRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("StartProcessingRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("StartProcessingRun: job error: %w", err)
	}

	return runID, nil
}

// MarkProcessingRunFailed sets status=FAILED, finished_ts and error_message.
func MarkProcessingRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkProcessingRunFailed: bigquery client error")
		return
	}
	defer client.Close()

	MarkProcessingRunFailedWithClient(ctx, client, runID, runErr)
}

// MarkProcessingRunFailedWithClient sets status=FAILED, finished_ts and
// error_message using the provided BigQuery client.
func MarkProcessingRunFailedWithClient(ctx context.Context, client *bigquery.Client, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, processingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkProcessingRunFailed: running update query")
		return
	}

	status, err := job.Wait(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkProcessingRunFailed: waiting for job")
		return
	}
	if err := status.Err(); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkProcessingRunFailed: job completed with error")
	}
}

// MarkProcessingRunSucceeded sets status=SUCCESS, finished_ts and
// record_count, clears error_message.
func MarkProcessingRunSucceeded(ctx context.Context, runID string, recordCount int) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("MarkProcessingRunSucceeded: bigquery client: %w", err)
	}
	defer client.Close()

	return MarkProcessingRunSucceededWithClient(ctx, client, runID, recordCount)
}

// MarkProcessingRunSucceededWithClient sets status=SUCCESS, finished_ts and
// record_count, clears error_message using the provided BigQuery client.
func MarkProcessingRunSucceededWithClient(ctx context.Context, client *bigquery.Client, runID string, recordCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    record_count = @record_count,
		    error_message = ""
		WHERE run_id = @run_id
	`, datasetID, processingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "record_count", Value: recordCount},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("MarkProcessingRunSucceeded: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("MarkProcessingRunSucceeded: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("MarkProcessingRunSucceeded: job error: %w", err)
	}

	return nil
}

// GetProcessingRun fetches a single run row by id.
func GetProcessingRun(ctx context.Context, runID string) (*ProcessingRunRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("GetProcessingRun: bigquery client: %w", err)
	}
	defer client.Close()

	return GetProcessingRunWithClient(ctx, client, runID)
}

// GetProcessingRunWithClient fetches a single run row by id using the
// provided BigQuery client.
func GetProcessingRunWithClient(ctx context.Context, client *bigquery.Client, runID string) (*ProcessingRunRow, error) {
	q := client.Query(`
		SELECT
			run_id,
			input_uri,
			started_ts,
			finished_ts,
			status,
			error_message,
			record_count,
			config
		FROM demopipe.processing_runs
		WHERE run_id = @run_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetProcessingRun: query read: %w", err)
	}

	var row ProcessingRunRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetProcessingRun: iter next: %w", err)
	}
	return &row, nil
}

// ListProcessingRuns returns the most recent runs, newest first.
func ListProcessingRuns(ctx context.Context, limit int) ([]*ProcessingRunRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListProcessingRuns: bigquery client: %w", err)
	}
	defer client.Close()

	return ListProcessingRunsWithClient(ctx, client, limit)
}

// ListProcessingRunsWithClient returns the most recent runs, newest first,
// using the provided BigQuery client.
func ListProcessingRunsWithClient(ctx context.Context, client *bigquery.Client, limit int) ([]*ProcessingRunRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := client.Query(`
		SELECT
			run_id,
			input_uri,
			started_ts,
			finished_ts,
			status,
			error_message,
			record_count,
			config
		FROM demopipe.processing_runs
		ORDER BY started_ts DESC
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListProcessingRuns: query read: %w", err)
	}

	var rows []*ProcessingRunRow
	for {
		var r ProcessingRunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListProcessingRuns: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
