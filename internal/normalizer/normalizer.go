// Package normalizer provides stateless, field-at-a-time validation and
// standardization for POS transaction data. Validators return sentinel values
// (nil, false) for bad input instead of failing; the one exception is
// timestamp parsing, which fails loudly because a record without a valid
// instant cannot be time-shifted downstream.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/insightcart/demopipe/internal/domain"
)

// ErrInvalidTimestamp is returned when a timestamp string cannot be parsed
// with any of the accepted layouts.
var ErrInvalidTimestamp = errors.New("invalid timestamp format")

// timestampLayouts are tried in order when standardizing a string timestamp.
// Layouts without a zone designator produce naive instants, which are
// assumed UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// cashTokens and cardTokens drive payment-type classification. The CASH
// check runs before the CARD check, so a value matching both resolves to
// CASH.
var (
	cashTokens = []string{"CASH"}
	cardTokens = []string{"CARD", "POS", "CONTACTLESS", "VISA", "MASTERCARD", "AMEX"}
)

// StandardizeTimestamp converts a timestamp to a UTC instant. It accepts a
// string or an already-parsed time.Time. Naive instants are tagged UTC
// without conversion; aware instants are converted to UTC.
func StandardizeTimestamp(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, value)
	}
}

// ExtractTimeFeatures derives temporal attributes from a timestamp. Pure
// function of its input; never fails.
func ExtractTimeFeatures(t time.Time) domain.TimeFeatures {
	// time.Weekday counts from Sunday; analytics downstream expect Monday=0.
	dayOfWeek := (int(t.Weekday()) + 6) % 7
	month := int(t.Month())

	return domain.TimeFeatures{
		Hour:            t.Hour(),
		DayOfWeek:       dayOfWeek,
		DayOfMonth:      t.Day(),
		Month:           month,
		Quarter:         (month-1)/3 + 1,
		Year:            t.Year(),
		IsWeekend:       dayOfWeek >= 5,
		IsBusinessHours: t.Hour() >= 9 && t.Hour() <= 17,
	}
}

// ValidateCoordinates reports whether lat and lon form a valid coordinate
// pair. Both bounds are inclusive. Non-numeric input (including nil) returns
// false rather than failing.
func ValidateCoordinates(lat, lon interface{}) bool {
	latF, ok := toFloat(lat)
	if !ok {
		return false
	}
	lonF, ok := toFloat(lon)
	if !ok {
		return false
	}
	return latF >= -90 && latF <= 90 && lonF >= -180 && lonF <= 180
}

// ValidateCurrencyAmount validates and standardizes a monetary value to two
// decimal places. Strings may carry thousands separators, which are stripped
// before parsing. Returns nil for input that cannot be interpreted as a
// number.
func ValidateCurrencyAmount(value interface{}) *float64 {
	var f float64
	switch v := value.(type) {
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		parsed, ok := toFloat(value)
		if !ok {
			return nil
		}
		f = parsed
	}
	rounded := RoundTo(f, 2)
	return &rounded
}

// ValidateRequiredFields reports whether every named field is present and
// non-nil in data.
func ValidateRequiredFields(data map[string]interface{}, required []string) bool {
	for _, name := range required {
		v, ok := data[name]
		if !ok || v == nil {
			return false
		}
	}
	return true
}

// StandardizePaymentType classifies a raw payment-type string into CASH,
// CARD or OTHER. The value is trimmed and upper-cased, then checked for
// exact membership in the CASH token set, then for any CASH token as a
// substring; the same exact-then-substring pass runs for CARD tokens.
// Anything matching neither classifies as OTHER.
func StandardizePaymentType(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))

	if matchesTokens(v, cashTokens) {
		return domain.PaymentTypeCash
	}
	if matchesTokens(v, cardTokens) {
		return domain.PaymentTypeCard
	}
	return domain.PaymentTypeOther
}

// CalculateDerivedAmounts decomposes a gross amount into net, VAT and fee
// components. VAT is backed out of the tax-inclusive gross
// (vat = gross * rate / (1 + rate)); the fee applies to the net amount.
// Each derived quantity is rounded to two decimal places independently.
// A nil or zero rate means the corresponding component is not computed.
func CalculateDerivedAmounts(gross float64, vatRate, feeRate *float64) domain.DerivedAmounts {
	result := domain.DerivedAmounts{GrossAmount: RoundTo(gross, 2)}

	if vatRate != nil && *vatRate != 0 {
		result.VATAmount = RoundTo(gross*(*vatRate)/(1+*vatRate), 2)
		result.NetAmount = RoundTo(gross-result.VATAmount, 2)
	} else {
		result.NetAmount = result.GrossAmount
		result.VATAmount = 0
	}

	if feeRate != nil && *feeRate != 0 {
		result.FeeAmount = RoundTo(result.NetAmount*(*feeRate), 2)
		result.SettlementAmount = RoundTo(result.NetAmount-result.FeeAmount, 2)
		result.HasFee = true
	}

	return result
}

// RoundTo rounds a value to the given number of decimal places.
func RoundTo(val float64, places int) float64 {
	ratio := math.Pow(10, float64(places))
	return math.Round(val*ratio) / ratio
}

func matchesTokens(value string, tokens []string) bool {
	for _, tok := range tokens {
		if value == tok {
			return true
		}
	}
	for _, tok := range tokens {
		if strings.Contains(value, tok) {
			return true
		}
	}
	return false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
