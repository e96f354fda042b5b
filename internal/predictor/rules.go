package predictor

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Cluster is a group of keywords that together indicate one ground of appeal.
type Cluster struct {
	Name        string   `yaml:"name"`
	Weight      float64  `yaml:"weight"`
	Factor      string   `yaml:"factor"`
	LegalGround string   `yaml:"legal_ground"`
	Evidence    []string `yaml:"evidence"`
	Keywords    []string `yaml:"keywords"`
}

type LocationRule struct {
	Name     string   `yaml:"name"`
	Bonus    float64  `yaml:"bonus"`
	Factor   string   `yaml:"factor"`
	Keywords []string `yaml:"keywords"`
}

type GracePeriodRule struct {
	Bonus       float64  `yaml:"bonus"`
	MaxMinutes  int      `yaml:"max_minutes"`
	Keywords    []string `yaml:"keywords"`
	LegalGround string   `yaml:"legal_ground"`
}

type EvidenceKind struct {
	Kind       string   `yaml:"kind"`
	Bonus      float64  `yaml:"bonus"`
	Extensions []string `yaml:"extensions"`
	Keywords   []string `yaml:"keywords"`
}

type EvidenceRule struct {
	Cap   float64        `yaml:"cap"`
	Kinds []EvidenceKind `yaml:"kinds"`
}

type NarrativeRule struct {
	MinLength int     `yaml:"min_length"`
	Bonus     float64 `yaml:"bonus"`
}

type KeywordBonus struct {
	Bonus    float64  `yaml:"bonus"`
	Keywords []string `yaml:"keywords"`
}

type PenaltyRule struct {
	Penalty  float64  `yaml:"penalty"`
	Factor   string   `yaml:"factor"`
	Keywords []string `yaml:"keywords"`
}

type Band struct {
	Min  float64 `yaml:"min"`
	Text string  `yaml:"text"`
}

// Rules is the full declarative weight table.
type Rules struct {
	BaseScore          float64            `yaml:"base_score"`
	Clusters           []Cluster          `yaml:"clusters"`
	ContraventionCodes map[string]float64 `yaml:"contravention_codes"`
	Locations          []LocationRule     `yaml:"location"`
	GracePeriod        GracePeriodRule    `yaml:"grace_period"`
	Evidence           EvidenceRule       `yaml:"evidence"`
	Narrative          []NarrativeRule    `yaml:"narrative"`
	LegalTerms         KeywordBonus       `yaml:"legal_terms"`
	WeakMitigation     PenaltyRule        `yaml:"weak_mitigation"`
	FallbackGround     string             `yaml:"fallback_ground"`
	Bands              []Band             `yaml:"bands"`
	Checklist          []string           `yaml:"checklist"`
}

// DefaultRules parses the embedded rules table.
func DefaultRules() (*Rules, error) {
	return LoadRules(defaultRules)
}

// LoadRules parses and validates a rules table.
func LoadRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(r.Checklist) == 0 {
		return nil, fmt.Errorf("rules: checklist must not be empty")
	}
	if r.FallbackGround == "" {
		return nil, fmt.Errorf("rules: fallback_ground must be set")
	}
	if len(r.Bands) == 0 {
		return nil, fmt.Errorf("rules: at least one recommendation band is required")
	}
	sort.SliceStable(r.Bands, func(i, j int) bool { return r.Bands[i].Min > r.Bands[j].Min })
	sort.SliceStable(r.Narrative, func(i, j int) bool { return r.Narrative[i].MinLength < r.Narrative[j].MinLength })

	for i := range r.Clusters {
		r.Clusters[i].Keywords = normalizeKeywords(r.Clusters[i].Keywords)
	}
	for i := range r.Locations {
		r.Locations[i].Keywords = normalizeKeywords(r.Locations[i].Keywords)
	}
	for i := range r.Evidence.Kinds {
		r.Evidence.Kinds[i].Keywords = normalizeKeywords(r.Evidence.Kinds[i].Keywords)
	}
	r.GracePeriod.Keywords = normalizeKeywords(r.GracePeriod.Keywords)
	r.LegalTerms.Keywords = normalizeKeywords(r.LegalTerms.Keywords)
	r.WeakMitigation.Keywords = normalizeKeywords(r.WeakMitigation.Keywords)

	codes := make(map[string]float64, len(r.ContraventionCodes))
	for code, w := range r.ContraventionCodes {
		codes[normalizeCode(code)] = w
	}
	r.ContraventionCodes = codes
	return &r, nil
}

// fold lower-cases text and replaces everything that is not a letter or
// digit with a single space, padding both ends so that phrase lookups can
// match on word boundaries with strings.Contains.
func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if f := fold(k); strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

// containsAny reports whether folded text contains any folded keyword.
func containsAny(folded string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
