// Package ingest parses raw POS transaction JSON into typed records. The
// loosely-typed payload is validated once, here, at the boundary; everything
// downstream works with domain.TransactionRecord.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/insightcart/demopipe/internal/domain"
	"github.com/insightcart/demopipe/internal/normalizer"
)

// DefaultSensitiveFields are the recognizable sensitive field names collected
// from incoming payloads. The scrub stage removes them before a dataset is
// emitted.
var DefaultSensitiveFields = []string{"internal_id", "merchant_code", "username", "auth_code"}

// priceFields are tried in order when resolving a line item's unit price.
var priceFields = []string{"price", "price_with_vat", "unit_price"}

// LoadFile reads and parses a transaction dataset from a JSON file. A
// missing file or malformed payload is fatal; no partial dataset is
// produced.
func LoadFile(path string, sensitiveFields []string) ([]domain.TransactionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: reading %q: %w", path, err)
	}
	return ParseDataset(data, sensitiveFields)
}

// ParseDataset converts a JSON array of transaction objects into typed
// records. Structural problems (not an array, element not an object, invalid
// timestamp) abort parsing; field-level problems degrade the affected field
// to its zero value and leave the record in the dataset.
func ParseDataset(data []byte, sensitiveFields []string) ([]domain.TransactionRecord, error) {
	var payload []map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("ParseDataset: decoding payload: %w", err)
	}

	records := make([]domain.TransactionRecord, 0, len(payload))
	for i, obj := range payload {
		record, err := parseTransaction(obj, sensitiveFields)
		if err != nil {
			return nil, fmt.Errorf("ParseDataset: transaction %d: %w", i, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func parseTransaction(obj map[string]interface{}, sensitiveFields []string) (domain.TransactionRecord, error) {
	var record domain.TransactionRecord

	id, err := getStringField(obj, "id", true)
	if err != nil {
		return record, err
	}

	tsRaw, ok := obj["timestamp"]
	if !ok || tsRaw == nil {
		return record, fmt.Errorf("missing required field %q", "timestamp")
	}
	ts, err := normalizer.StandardizeTimestamp(tsRaw)
	if err != nil {
		return record, err
	}

	record.ID = id
	record.Timestamp = ts

	// Monetary and categorical fields degrade to zero values when invalid;
	// the scrub stage supplies defaults later.
	if amount := normalizer.ValidateCurrencyAmount(obj["amount"]); amount != nil {
		record.Amount = *amount
	}
	record.Currency, _ = getStringField(obj, "currency", false)
	record.Status, _ = getStringField(obj, "status", false)

	paymentType, _ := getStringField(obj, "payment_type", false)
	record.PaymentType = normalizer.StandardizePaymentType(paymentType)

	record.Location = parseLocation(obj)
	record.Products = parseProducts(obj)
	record.Sensitive = collectSensitive(obj, sensitiveFields)

	return record, nil
}

// parseLocation extracts a coordinate pair from either a nested "location"
// object or top-level "lat"/"lon" fields. Invalid coordinates yield nil.
func parseLocation(obj map[string]interface{}) *domain.Location {
	latRaw, lonRaw := obj["lat"], obj["lon"]
	if loc, ok := obj["location"].(map[string]interface{}); ok {
		latRaw, lonRaw = loc["lat"], loc["lon"]
	}

	if !normalizer.ValidateCoordinates(latRaw, lonRaw) {
		return nil
	}

	lat, _ := getFloat64Value(latRaw)
	lon, _ := getFloat64Value(lonRaw)
	return &domain.Location{Lat: lat, Lon: lon}
}

func parseProducts(obj map[string]interface{}) []domain.ProductEntry {
	rawList, ok := obj["products"].([]interface{})
	if !ok || len(rawList) == 0 {
		return nil
	}

	products := make([]domain.ProductEntry, 0, len(rawList))
	for _, item := range rawList {
		p, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		entry := domain.ProductEntry{Quantity: 1}
		entry.Name, _ = getStringField(p, "name", false)

		if qty, ok := getFloat64Value(p["quantity"]); ok && qty >= 1 {
			entry.Quantity = int(qty)
		}
		entry.UnitPrice = resolveUnitPrice(p)
		if total, ok := getFloat64Value(p["total_price"]); ok {
			entry.TotalPrice = total
		}

		products = append(products, entry)
	}

	return products
}

// resolveUnitPrice returns the first present price field, or 0 when none is.
func resolveUnitPrice(p map[string]interface{}) float64 {
	for _, field := range priceFields {
		if v, ok := p[field]; ok {
			if f, ok := getFloat64Value(v); ok {
				return f
			}
		}
	}
	return 0.0
}

func collectSensitive(obj map[string]interface{}, sensitiveFields []string) map[string]string {
	var out map[string]string
	for _, field := range sensitiveFields {
		v, ok := obj[field]
		if !ok || v == nil {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[field] = fmt.Sprintf("%v", v)
	}
	return out
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		if required {
			return "", fmt.Errorf("field %q has type %T, want string", key, v)
		}
		return "", nil
	}
}

// getFloat64Value accepts the numeric shapes JSON decoding and upstream
// exports produce, including numbers serialized as strings.
func getFloat64Value(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
