// Package anonymizer applies the pattern-preserving transformation pipeline
// that turns a real POS dataset into a demo-safe one. Four stages run in a
// fixed order over the full dataset: timestamp shift, amount scaling,
// location jitter, then scrub-and-normalize. Each stage takes a dataset and
// returns a new one; input datasets are never mutated.
package anonymizer

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightcart/demopipe/internal/domain"
	"github.com/insightcart/demopipe/internal/normalizer"
)

// locationJitterDegrees is the half-width of the uniform noise added to each
// coordinate, roughly 5 km at mid latitudes.
const locationJitterDegrees = 0.045

// coordinatePrecision is the number of decimal places kept on jittered
// coordinates.
const coordinatePrecision = 6

// Config holds the transformation parameters. There is no hidden global
// state; callers construct one explicitly and pass it in.
type Config struct {
	// VolumeMultiplierMin and VolumeMultiplierMax bound the uniform range
	// one amount multiplier per record is drawn from.
	VolumeMultiplierMin float64
	VolumeMultiplierMax float64

	// TimeShiftDays is added to every record's timestamp. A whole number of
	// days preserves day-of-week and time-of-day by construction.
	TimeShiftDays int

	// SensitiveFields are removed from records during the scrub stage.
	SensitiveFields []string
}

// DefaultConfig returns the standard demo parameters.
func DefaultConfig() Config {
	return Config{
		VolumeMultiplierMin: 1.2,
		VolumeMultiplierMax: 1.8,
		TimeShiftDays:       30,
		SensitiveFields:     []string{"internal_id", "merchant_code", "username", "auth_code"},
	}
}

// Validate checks that the multiplier range is usable.
func (c Config) Validate() error {
	if c.VolumeMultiplierMin <= 0 {
		return fmt.Errorf("volume multiplier min must be positive, got %v", c.VolumeMultiplierMin)
	}
	if c.VolumeMultiplierMax < c.VolumeMultiplierMin {
		return fmt.Errorf("volume multiplier range inverted: [%v, %v]",
			c.VolumeMultiplierMin, c.VolumeMultiplierMax)
	}
	return nil
}

// Processor runs the anonymization pipeline. The random source is injected
// so tests can seed it; per-record draws stay independent and uniformly
// distributed either way.
type Processor struct {
	cfg Config
	rng *rand.Rand
	log zerolog.Logger
}

// NewProcessor creates a processor with an explicit configuration and random
// source.
func NewProcessor(cfg Config, rng *rand.Rand, log zerolog.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewProcessor: %w", err)
	}
	if rng == nil {
		return nil, fmt.Errorf("NewProcessor: random source is required")
	}
	return &Processor{cfg: cfg, rng: rng, log: log}, nil
}

// stage is one dataset-wide transformation. Stages exchange only the dataset
// itself; none sees another's internal state.
type stage struct {
	name  string
	apply func([]domain.TransactionRecord) []domain.TransactionRecord
}

// ProcessTransactions applies the four stages strictly in order and returns
// the transformed dataset. The stage order is a correctness requirement:
// scrubbing runs last so defaulting sees the fully shifted and scaled
// values. An empty dataset passes through as an empty dataset.
func (p *Processor) ProcessTransactions(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := records
	for _, s := range p.stages() {
		out = s.apply(out)
		p.log.Debug().
			Str("stage", s.name).
			Int("records", len(out)).
			Msg("Anonymization stage completed")
	}
	return out
}

func (p *Processor) stages() []stage {
	return []stage{
		{name: "shift_timestamps", apply: p.shiftTimestamps},
		{name: "scale_amounts", apply: p.scaleAmounts},
		{name: "jitter_locations", apply: p.jitterLocations},
		{name: "scrub_and_normalize", apply: p.scrubAndNormalize},
	}
}

// shiftTimestamps adds the configured number of days to every timestamp.
// Only the calendar date changes; day-of-week and time-of-day survive.
func (p *Processor) shiftTimestamps(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, len(records))
	for i, r := range records {
		c := r.Clone()
		c.Timestamp = c.Timestamp.AddDate(0, 0, p.cfg.TimeShiftDays)
		out[i] = c
	}
	return out
}

// scaleAmounts draws one multiplier per record and applies it to every
// monetary field on that record, so the ratio between the gross amount and
// the line-item prices is preserved up to rounding.
func (p *Processor) scaleAmounts(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, len(records))
	for i, r := range records {
		c := r.Clone()
		multiplier := p.uniform(p.cfg.VolumeMultiplierMin, p.cfg.VolumeMultiplierMax)

		c.Amount = normalizer.RoundTo(c.Amount*multiplier, 2)
		for j := range c.Products {
			c.Products[j].UnitPrice = normalizer.RoundTo(c.Products[j].UnitPrice*multiplier, 2)
			c.Products[j].TotalPrice = normalizer.RoundTo(c.Products[j].TotalPrice*multiplier, 2)
		}
		out[i] = c
	}
	return out
}

// jitterLocations adds independent uniform noise to latitude and longitude
// of records that carry coordinates. Jitter is independent per record, so
// tight clusters spread proportionally to the jitter magnitude.
func (p *Processor) jitterLocations(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, len(records))
	for i, r := range records {
		c := r.Clone()
		if c.Location != nil {
			c.Location.Lat = normalizer.RoundTo(
				c.Location.Lat+p.uniform(-locationJitterDegrees, locationJitterDegrees),
				coordinatePrecision)
			c.Location.Lon = normalizer.RoundTo(
				c.Location.Lon+p.uniform(-locationJitterDegrees, locationJitterDegrees),
				coordinatePrecision)
		}
		out[i] = c
	}
	return out
}

// scrubAndNormalize removes the configured sensitive fields, upper-cases the
// status, and fills missing categorical fields with UNKNOWN. Records are
// never dropped; degraded fields survive with defaults.
func (p *Processor) scrubAndNormalize(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, len(records))
	for i, r := range records {
		c := r.Clone()

		for _, field := range p.cfg.SensitiveFields {
			delete(c.Sensitive, field)
		}
		if len(c.Sensitive) == 0 {
			c.Sensitive = nil
		}

		c.Status = normalizeCategorical(c.Status, true)
		c.Currency = normalizeCategorical(c.Currency, false)
		c.PaymentType = normalizeCategorical(c.PaymentType, false)
		c.ID = normalizeCategorical(c.ID, false)
		for j := range c.Products {
			c.Products[j].Name = normalizeCategorical(c.Products[j].Name, false)
		}

		out[i] = c
	}
	return out
}

func (p *Processor) uniform(min, max float64) float64 {
	if min == max {
		return min
	}
	return min + p.rng.Float64()*(max-min)
}

func normalizeCategorical(value string, upper bool) string {
	if value == "" {
		return domain.UnknownValue
	}
	if upper {
		return strings.ToUpper(value)
	}
	return value
}
