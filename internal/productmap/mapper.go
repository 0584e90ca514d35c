// Package productmap canonicalizes raw product labels against a configured
// lookup table. Unmapped names fall back to a fixed label and are recorded
// for operator review; canonicalization never aborts processing.
package productmap

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FallbackLabel is assigned to product names with no mapping entry.
const FallbackLabel = "Other Product"

// Mapper resolves raw product labels to canonical ones.
type Mapper struct {
	mapping map[string]string
	log     zerolog.Logger

	mu       sync.Mutex
	unmapped map[string]int
}

// NewMapper creates a mapper over the given raw→canonical lookup table.
func NewMapper(mapping map[string]string, log zerolog.Logger) *Mapper {
	return &Mapper{
		mapping:  mapping,
		log:      log,
		unmapped: make(map[string]int),
	}
}

// Canonicalize resolves a raw product name. Lookup order: exact match,
// case-insensitive match, then the fallback label. The second return value
// reports whether a mapping entry matched.
func (m *Mapper) Canonicalize(rawName string) (string, bool) {
	name := strings.TrimSpace(rawName)

	if canonical, ok := m.mapping[name]; ok {
		return canonical, true
	}

	lower := strings.ToLower(name)
	for original, canonical := range m.mapping {
		if strings.ToLower(original) == lower {
			return canonical, true
		}
	}

	m.mu.Lock()
	m.unmapped[name]++
	m.mu.Unlock()

	m.log.Warn().Str("product_name", name).Msg("No mapping found for product")
	return FallbackLabel, false
}

// UnmappedNames returns the distinct raw names that fell back, sorted, with
// occurrence counts. Operators review this after a run to extend the table.
func (m *Mapper) UnmappedNames() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.unmapped))
	for k, v := range m.unmapped {
		out[k] = v
	}
	return out
}

// LogUnmapped emits one summary line per unmapped name.
func (m *Mapper) LogUnmapped() {
	unmapped := m.UnmappedNames()
	names := make([]string, 0, len(unmapped))
	for name := range unmapped {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m.log.Warn().
			Str("product_name", name).
			Int("occurrences", unmapped[name]).
			Msg("Product name left unmapped after run")
	}
}

// mappingFile is the YAML shape of a product mapping table:
//
//	mapping:
//	  Croissant: Pastry A
//	  Espresso: Beverage B
type mappingFile struct {
	Mapping map[string]string `yaml:"mapping"`
}

// LoadMapping reads a product mapping table from a YAML file.
func LoadMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadMapping: reading %q: %w", path, err)
	}

	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("LoadMapping: parsing %q: %w", path, err)
	}
	if len(file.Mapping) == 0 {
		return nil, fmt.Errorf("LoadMapping: %q contains no mapping entries", path)
	}

	return file.Mapping, nil
}
