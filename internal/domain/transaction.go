package domain

import (
	"time"
)

// Payment type categories produced by normalization. Every raw payment_type
// string classifies into exactly one of these.
const (
	PaymentTypeCash  = "CASH"
	PaymentTypeCard  = "CARD"
	PaymentTypeOther = "OTHER"
)

// UnknownValue is the default filled into missing categorical fields during
// the scrub stage.
const UnknownValue = "UNKNOWN"

// Location is a (lat, lon) coordinate pair attached to a transaction.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ProductEntry is one line item within a transaction.
type ProductEntry struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// TransactionRecord is one normalized POS transaction. It is created once at
// the ingestion boundary and treated as immutable downstream; pipeline stages
// that change a record operate on a Clone.
type TransactionRecord struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Amount      float64        `json:"amount"`
	Currency    string         `json:"currency"`
	Status      string         `json:"status"`
	PaymentType string         `json:"payment_type"`
	Location    *Location      `json:"location,omitempty"`
	Products    []ProductEntry `json:"products,omitempty"`

	// Sensitive holds fields that must not survive anonymization
	// (internal id, merchant code, username, auth code). Present only on
	// records that have not yet passed the scrub stage.
	Sensitive map[string]string `json:"-"`
}

// Clone returns a deep copy of the record. Pipeline stages never mutate
// their input dataset, so every stage works on clones.
func (r TransactionRecord) Clone() TransactionRecord {
	out := r
	if r.Location != nil {
		loc := *r.Location
		out.Location = &loc
	}
	if r.Products != nil {
		out.Products = make([]ProductEntry, len(r.Products))
		copy(out.Products, r.Products)
	}
	if r.Sensitive != nil {
		out.Sensitive = make(map[string]string, len(r.Sensitive))
		for k, v := range r.Sensitive {
			out.Sensitive[k] = v
		}
	}
	return out
}

// CloneDataset deep-copies a full dataset.
func CloneDataset(records []TransactionRecord) []TransactionRecord {
	out := make([]TransactionRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// TimeFeatures are the derived temporal attributes of a timestamp, used by
// downstream analytics to verify that the temporal rhythm of a dataset
// survived anonymization.
type TimeFeatures struct {
	Hour            int  `json:"hour"`
	DayOfWeek       int  `json:"day_of_week"` // 0 = Monday
	DayOfMonth      int  `json:"day_of_month"`
	Month           int  `json:"month"`
	Quarter         int  `json:"quarter"`
	Year            int  `json:"year"`
	IsWeekend       bool `json:"is_weekend"`
	IsBusinessHours bool `json:"is_business_hours"`
}

// DerivedAmounts decomposes a gross transaction amount into net, VAT and fee
// components. VAT is backed out of the tax-inclusive gross; the settlement
// amount is only meaningful when a fee rate was supplied.
type DerivedAmounts struct {
	GrossAmount      float64 `json:"gross_amount"`
	NetAmount        float64 `json:"net_amount"`
	VATAmount        float64 `json:"vat_amount"`
	FeeAmount        float64 `json:"fee_amount,omitempty"`
	SettlementAmount float64 `json:"settlement_amount,omitempty"`

	// HasFee reports whether a fee rate was supplied and therefore whether
	// FeeAmount and SettlementAmount were computed.
	HasFee bool `json:"-"`
}
