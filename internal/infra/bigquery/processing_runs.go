package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

type ProcessingRunRow struct {
	RunID    string `bigquery:"run_id"`    // REQUIRED
	InputURI string `bigquery:"input_uri"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	RecordCount bigquery.NullInt64 `bigquery:"record_count"` // NULLABLE

	Config bigquery.NullJSON `bigquery:"config"` // NULLABLE JSON
}
