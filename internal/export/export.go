// Package export writes processed datasets to disk. It emits the
// anonymized JSON dataset plus two CSV views: one row per transaction
// and a companion file with one row per product line item.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/insightcart/demopipe/internal/domain"
)

var transactionHeader = []string{
	"id", "timestamp", "amount", "currency", "status", "payment_type",
	"latitude", "longitude", "total_items",
}

var productHeader = []string{
	"transaction_id", "timestamp", "product_name", "quantity",
	"unit_price", "total_price",
}

// WriteDatasetJSON writes records as a JSON array, matching the shape the
// ingest side reads back.
func WriteDatasetJSON(path string, records []domain.TransactionRecord) error {
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToPayload(rec))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("WriteDatasetJSON: failed to marshal records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("WriteDatasetJSON: failed to write %s: %w", path, err)
	}
	return nil
}

// WriteTransactionsCSV writes one row per transaction. Records without a
// location get empty latitude/longitude cells.
func WriteTransactionsCSV(path string, records []domain.TransactionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteTransactionsCSV: failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(transactionHeader); err != nil {
		return fmt.Errorf("WriteTransactionsCSV: failed to write header: %w", err)
	}

	for _, rec := range records {
		lat, lon := "", ""
		if rec.Location != nil {
			lat = formatFloat(rec.Location.Lat)
			lon = formatFloat(rec.Location.Lon)
		}
		totalItems := 0
		for _, p := range rec.Products {
			totalItems += p.Quantity
		}
		row := []string{
			rec.ID,
			rec.Timestamp.Format(time.RFC3339),
			formatFloat(rec.Amount),
			rec.Currency,
			rec.Status,
			rec.PaymentType,
			lat,
			lon,
			strconv.Itoa(totalItems),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("WriteTransactionsCSV: failed to write row for %s: %w", rec.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("WriteTransactionsCSV: failed to flush: %w", err)
	}
	return nil
}

// WriteProductsCSV writes the product line-item view: one row per product
// entry, keyed back to its transaction.
func WriteProductsCSV(path string, records []domain.TransactionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteProductsCSV: failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(productHeader); err != nil {
		return fmt.Errorf("WriteProductsCSV: failed to write header: %w", err)
	}

	for _, rec := range records {
		ts := rec.Timestamp.Format(time.RFC3339)
		for _, p := range rec.Products {
			row := []string{
				rec.ID,
				ts,
				p.Name,
				strconv.Itoa(p.Quantity),
				formatFloat(p.UnitPrice),
				formatFloat(p.TotalPrice),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("WriteProductsCSV: failed to write row for %s: %w", rec.ID, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("WriteProductsCSV: failed to flush: %w", err)
	}
	return nil
}

func recordToPayload(rec domain.TransactionRecord) map[string]interface{} {
	payload := map[string]interface{}{
		"id":           rec.ID,
		"timestamp":    rec.Timestamp.Format(time.RFC3339),
		"amount":       rec.Amount,
		"currency":     rec.Currency,
		"status":       rec.Status,
		"payment_type": rec.PaymentType,
	}
	if rec.Location != nil {
		payload["location"] = map[string]interface{}{
			"lat": rec.Location.Lat,
			"lon": rec.Location.Lon,
		}
	}
	if len(rec.Products) > 0 {
		products := make([]map[string]interface{}, 0, len(rec.Products))
		for _, p := range rec.Products {
			products = append(products, map[string]interface{}{
				"name":        p.Name,
				"quantity":    p.Quantity,
				"unit_price":  p.UnitPrice,
				"total_price": p.TotalPrice,
			})
		}
		payload["products"] = products
	}
	return payload
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
