package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/insightcart/demopipe/internal/domain"
)

func TestRowFromRecord(t *testing.T) {
	rec := domain.TransactionRecord{
		ID:          "txn-001",
		Timestamp:   time.Date(2024, 4, 15, 14, 30, 0, 0, time.UTC),
		Amount:      41.00,
		Currency:    "GBP",
		Status:      "SUCCESSFUL",
		PaymentType: "CARD",
		Location:    &domain.Location{Lat: 51.5074, Lon: -0.1278},
		Products: []domain.ProductEntry{
			{Name: "Croissant", Quantity: 2, UnitPrice: 15.50, TotalPrice: 31.00},
			{Name: "Espresso", Quantity: 1, UnitPrice: 10.00, TotalPrice: 10.00},
		},
	}

	row := RowFromRecord(rec, "run-abc")

	if row.TransactionID != "txn-001" || row.RunID != "run-abc" {
		t.Errorf("identity = (%q, %q)", row.TransactionID, row.RunID)
	}
	if row.TransactionDate != civil.DateOf(rec.Timestamp) {
		t.Errorf("TransactionDate = %v", row.TransactionDate)
	}
	if want := new(big.Rat).SetFloat64(41.00); row.Amount.Cmp(want) != 0 {
		t.Errorf("Amount = %v, want %v", row.Amount, want)
	}
	if !row.Latitude.Valid || row.Latitude.Float64 != 51.5074 {
		t.Errorf("Latitude = %+v", row.Latitude)
	}
	if !row.TotalItems.Valid || row.TotalItems.Int64 != 3 {
		t.Errorf("TotalItems = %+v", row.TotalItems)
	}

	// The JSON column carries the product entries themselves so the client
	// serializes them as an array, not as a pre-encoded string.
	if !row.Products.Valid {
		t.Fatal("Products column not set")
	}
	products, ok := row.Products.JSONVal.([]domain.ProductEntry)
	if !ok {
		t.Fatalf("Products JSONVal has type %T, want []domain.ProductEntry", row.Products.JSONVal)
	}
	if len(products) != 2 || products[0].Name != "Croissant" {
		t.Errorf("Products = %+v", products)
	}
}

func TestRowFromRecord_BareRecord(t *testing.T) {
	rec := domain.TransactionRecord{
		ID:          "txn-002",
		Timestamp:   time.Date(2024, 4, 16, 9, 0, 0, 0, time.UTC),
		Amount:      5.00,
		Currency:    "GBP",
		Status:      "FAILED",
		PaymentType: "CASH",
	}

	row := RowFromRecord(rec, "run-abc")

	if row.Latitude.Valid || row.Longitude.Valid {
		t.Errorf("coordinates = (%+v, %+v), want null", row.Latitude, row.Longitude)
	}
	if row.TotalItems.Valid || row.Products.Valid {
		t.Errorf("product columns = (%+v, %+v), want null", row.TotalItems, row.Products)
	}
}
