package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/insightcart/demopipe/internal/domain"
)

type ProcessedTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	RunID         string `bigquery:"run_id"`         // REQUIRED

	TransactionTS   time.Time  `bigquery:"transaction_ts"`   // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Status      string `bigquery:"status"`       // REQUIRED STRING
	PaymentType string `bigquery:"payment_type"` // REQUIRED STRING

	Latitude  bigquery.NullFloat64 `bigquery:"latitude"`  // NULLABLE
	Longitude bigquery.NullFloat64 `bigquery:"longitude"` // NULLABLE

	TotalItems bigquery.NullInt64 `bigquery:"total_items"` // NULLABLE
	Products   bigquery.NullJSON  `bigquery:"products"`    // NULLABLE JSON

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// RowFromRecord converts a processed record into its BigQuery row shape.
func RowFromRecord(rec domain.TransactionRecord, runID string) *ProcessedTransactionRow {
	row := &ProcessedTransactionRow{
		TransactionID:   rec.ID,
		RunID:           runID,
		TransactionTS:   rec.Timestamp,
		TransactionDate: civil.DateOf(rec.Timestamp),
		Amount:          new(big.Rat).SetFloat64(rec.Amount),
		Currency:        rec.Currency,
		Status:          rec.Status,
		PaymentType:     rec.PaymentType,
		CreatedTS:       time.Now().UTC(),
	}

	if rec.Location != nil {
		row.Latitude = bigquery.NullFloat64{Float64: rec.Location.Lat, Valid: true}
		row.Longitude = bigquery.NullFloat64{Float64: rec.Location.Lon, Valid: true}
	}

	if len(rec.Products) > 0 {
		totalItems := 0
		for _, p := range rec.Products {
			totalItems += p.Quantity
		}
		row.TotalItems = bigquery.NullInt64{Int64: int64(totalItems), Valid: true}

		row.Products = bigquery.NullJSON{JSONVal: rec.Products, Valid: true}
	}

	return row
}
