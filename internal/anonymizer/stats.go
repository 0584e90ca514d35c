package anonymizer

import (
	"github.com/mmcloughlin/geohash"

	"github.com/insightcart/demopipe/internal/domain"
)

// geohashPrecision 5 yields cells of roughly 5 km x 5 km, matching the
// jitter magnitude, so the cell count is a usable cluster-preservation
// signal.
const geohashPrecision = 5

// ComputeDatasetStats summarizes one dataset.
func ComputeDatasetStats(records []domain.TransactionRecord) domain.DatasetStats {
	stats := domain.DatasetStats{TotalTransactions: len(records)}
	if len(records) == 0 {
		return stats
	}

	locations := make(map[domain.Location]struct{})
	cells := make(map[string]struct{})

	stats.DateMin = records[0].Timestamp
	stats.DateMax = records[0].Timestamp

	for _, r := range records {
		if r.Timestamp.Before(stats.DateMin) {
			stats.DateMin = r.Timestamp
		}
		if r.Timestamp.After(stats.DateMax) {
			stats.DateMax = r.Timestamp
		}
		stats.TotalAmount += r.Amount

		if r.Location != nil {
			locations[*r.Location] = struct{}{}
			cells[geohash.EncodeWithPrecision(r.Location.Lat, r.Location.Lon, geohashPrecision)] = struct{}{}
		}
	}

	stats.AvgTransaction = stats.TotalAmount / float64(len(records))
	stats.UniqueLocations = len(locations)
	stats.UniqueGeohashCells = len(cells)
	return stats
}

// GetProcessingStats computes before/after summaries for a transformation
// run so an operator can verify pattern preservation.
func GetProcessingStats(original, processed []domain.TransactionRecord) domain.ProcessingStats {
	return domain.ProcessingStats{
		Original:  ComputeDatasetStats(original),
		Processed: ComputeDatasetStats(processed),
	}
}
