package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	projectID                  = "insightcart-demo-202404"
	datasetID                  = "demopipe"
	processedTransactionsTable = "processed_transactions"
)

// InsertProcessedTransactions inserts a batch of rows into
// demopipe.processed_transactions.
func InsertProcessedTransactions(ctx context.Context, rows []*ProcessedTransactionRow) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertProcessedTransactions: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertProcessedTransactionsWithClient(ctx, client, rows)
}

// InsertProcessedTransactionsWithClient inserts a batch of rows into
// demopipe.processed_transactions using the provided BigQuery client.
func InsertProcessedTransactionsWithClient(ctx context.Context, client *bigquery.Client, rows []*ProcessedTransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	table := client.DatasetInProject(projectID, datasetID).Table(processedTransactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertProcessedTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsByRun returns all processed transactions written by a run.
func QueryTransactionsByRun(ctx context.Context, runID string) ([]*ProcessedTransactionRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByRun: bigquery client: %w", err)
	}
	defer client.Close()

	return QueryTransactionsByRunWithClient(ctx, client, runID)
}

// QueryTransactionsByRunWithClient returns all processed transactions written
// by a run using the provided BigQuery client.
func QueryTransactionsByRunWithClient(ctx context.Context, client *bigquery.Client, runID string) ([]*ProcessedTransactionRow, error) {
	q := client.Query(`
		SELECT
			t.transaction_id,
			t.run_id,
			t.transaction_ts,
			t.transaction_date,
			t.amount,
			t.currency,
			t.status,
			t.payment_type,
			t.latitude,
			t.longitude,
			t.total_items,
			t.products,
			t.created_ts
		FROM demopipe.processed_transactions t
		WHERE t.run_id = @run_id
		ORDER BY t.transaction_ts, t.created_ts
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByRun: query read: %w", err)
	}

	var rows []*ProcessedTransactionRow
	for {
		var r ProcessedTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByRun: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
