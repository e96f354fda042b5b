package classifier

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return r
}

func TestClassify(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"civil pcn", "PCN123456789", "civil_pcn"},
		{"civil pcn lower case", "pcn123456789", "civil_pcn"},
		{"civil pcn padded", "  PCN123456789\n", "civil_pcn"},
		{"council format", "WK12345678A", "civil_pcn"},
		{"speed camera", "NIP123456789", "speed_camera"},
		{"speed camera with dash", "NIP-12345678", "speed_camera"},
		{"fixed penalty", "FPN1234567", "fixed_penalty"},
		{"private parking pcm", "PCM00112233", "private_parking"},
		{"private parking short", "PC12345678", "private_parking"},
		{"bus lane", "BLE1234567", "bus_lane"},
		{"congestion charge", "CC123456789", "congestion_charge"},
		{"empty", "", UnknownID},
		{"whitespace only", "   ", UnknownID},
		{"garbage", "hello world", UnknownID},
		{"internal whitespace is not stripped", "PCN 123456789", UnknownID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(tt.identifier)
			if got.ID != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.identifier, got.ID, tt.want)
			}
		})
	}
}

func TestClassify_NoIdentifierMatchesTwoCategories(t *testing.T) {
	r := newRegistry(t)

	samples := []string{
		"PCN123456", "PCN123456789012", "WK12345678A", "AB87654321Z",
		"NIP123456", "NIP/123456789", "FPN123456", "PCM123456",
		"PC12345678", "BL123456", "BLE1234567890", "CC12345678",
		"CC1234567890", "PC123456789", "CC12345678A", "BL12345678A",
	}
	for _, s := range samples {
		if ids := r.Matches(s); len(ids) > 1 {
			t.Errorf("%q matches %d categories: %v", s, len(ids), ids)
		}
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	data := []byte(`
categories:
  - id: first
    patterns: ['^AB\d+$']
  - id: second
    patterns: ['^AB\d{3}$']
unknown:
  id: none
`)
	r, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Classify("AB123").ID; got != "first" {
		t.Errorf("expected first declared category to win, got %q", got)
	}
	if diff := cmp.Diff([]string{"first", "second"}, r.Matches("AB123")); diff != "" {
		t.Errorf("Matches mismatch (-want +got):\n%s", diff)
	}
	if got := r.Classify("ZZ").ID; got != "none" {
		t.Errorf("expected custom sentinel, got %q", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "categories: [oops"},
		{"bad regex", "categories:\n  - id: x\n    patterns: ['(']\n"},
		{"empty id", "categories:\n  - name: nameless\n"},
		{"duplicate id", "categories:\n  - id: x\n  - id: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGetAndCategories(t *testing.T) {
	r := newRegistry(t)

	c, ok := r.Get("speed_camera")
	if !ok {
		t.Fatal("expected speed_camera to exist")
	}
	if c.LegalCategory != "criminal" {
		t.Errorf("expected criminal, got %q", c.LegalCategory)
	}
	if _, ok := r.Get(UnknownID); !ok {
		t.Error("expected sentinel to be addressable by id")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("expected missing category")
	}

	for _, c := range r.Categories() {
		if c.ID == UnknownID {
			t.Error("Categories must not include the sentinel")
		}
		if len(c.Patterns) == 0 {
			t.Errorf("category %s has no patterns", c.ID)
		}
	}
}
