package productmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/insightcart/demopipe/internal/logger"
)

func testMapper(mapping map[string]string) *Mapper {
	return NewMapper(mapping, logger.NewWithWriter(&bytes.Buffer{}))
}

func TestCanonicalize(t *testing.T) {
	mapping := map[string]string{
		"Croissant": "Pastry A",
		"Espresso":  "Beverage B",
	}

	tests := []struct {
		name       string
		input      string
		want       string
		wantMapped bool
	}{
		{"exact match", "Croissant", "Pastry A", true},
		{"trailing whitespace trimmed", "Croissant ", "Pastry A", true},
		{"case-insensitive match", "croissant", "Pastry A", true},
		{"mixed case", "ESPRESSO", "Beverage B", true},
		{"unmapped falls back", "Mystery Item", FallbackLabel, false},
		{"empty name falls back", "", FallbackLabel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMapper(mapping)
			got, mapped := m.Canonicalize(tt.input)
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if mapped != tt.wantMapped {
				t.Errorf("Canonicalize(%q) mapped = %v, want %v", tt.input, mapped, tt.wantMapped)
			}
		})
	}
}

func TestUnmappedNames(t *testing.T) {
	m := testMapper(map[string]string{"Croissant": "Pastry A"})

	m.Canonicalize("Mystery Item")
	m.Canonicalize("Mystery Item")
	m.Canonicalize("Another Thing")
	m.Canonicalize("Croissant")

	unmapped := m.UnmappedNames()
	if len(unmapped) != 2 {
		t.Fatalf("UnmappedNames() has %d entries, want 2: %v", len(unmapped), unmapped)
	}
	if unmapped["Mystery Item"] != 2 {
		t.Errorf("Mystery Item count = %d, want 2", unmapped["Mystery Item"])
	}
	if unmapped["Another Thing"] != 1 {
		t.Errorf("Another Thing count = %d, want 1", unmapped["Another Thing"])
	}
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.yaml")
	content := []byte("mapping:\n  Croissant: Pastry A\n  Espresso: Beverage B\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	mapping, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping failed: %v", err)
	}
	if mapping["Croissant"] != "Pastry A" {
		t.Errorf("mapping[Croissant] = %q, want %q", mapping["Croissant"], "Pastry A")
	}
	if len(mapping) != 2 {
		t.Errorf("mapping has %d entries, want 2", len(mapping))
	}
}

func TestLoadMapping_Errors(t *testing.T) {
	if _, err := LoadMapping(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte("mapping: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMapping(empty); err == nil {
		t.Error("expected error for empty mapping table")
	}
}
