package domain

import (
	"time"
)

// DatasetStats summarizes one dataset. Computed independently for the
// original and processed datasets so an operator can compare pattern
// preservation after a run.
type DatasetStats struct {
	TotalTransactions int       `json:"total_transactions"`
	DateMin           time.Time `json:"date_min"`
	DateMax           time.Time `json:"date_max"`
	TotalAmount       float64   `json:"total_amount"`
	AvgTransaction    float64   `json:"avg_transaction"`
	UniqueLocations   int       `json:"unique_locations"`

	// UniqueGeohashCells counts distinct ~5 km geohash cells (precision 5).
	// The location jitter magnitude is ~5 km, so this count should stay in
	// the same order of magnitude across a run.
	UniqueGeohashCells int `json:"unique_geohash_cells"`
}

// ProcessingStats pairs the before/after summaries of a transformation run.
type ProcessingStats struct {
	Original  DatasetStats `json:"original"`
	Processed DatasetStats `json:"processed"`
}
