package predictor

import (
	"math"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

func newPredictor(t *testing.T) *Predictor {
	t.Helper()
	p, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return p
}

func TestPredict_Scores(t *testing.T) {
	p := newPredictor(t)

	tests := []struct {
		name    string
		signals appeal.Signals
		want    float64
		tier    appeal.Tier
	}{
		{"empty input is base score", appeal.Signals{}, 0.25, appeal.TierLow},
		{"signage with photo", appeal.Signals{Reason: "The signs were hidden behind a tree", Evidence: []string{"sign.jpg"}}, 0.68, appeal.TierMedium},
		{"stacked clusters clamp to one", appeal.Signals{Reason: "Medical emergency, the signs were obscured and I had a valid blue badge displayed"}, 1.0, appeal.TierHigh},
		{"weak mitigation penalised", appeal.Signals{Reason: "I was running late and forgot to pay"}, 0.15, appeal.TierLow},
		{"negative contravention code", appeal.Signals{ContraventionCode: "40"}, 0.15, appeal.TierLow},
		{"positive contravention code", appeal.Signals{ContraventionCode: " 31 "}, 0.35, appeal.TierLow},
		{"unknown contravention code", appeal.Signals{ContraventionCode: "99"}, 0.25, appeal.TierLow},
		{"loading within grace period", appeal.Signals{Description: "I was loading for 5 minutes"}, 0.55, appeal.TierMedium},
		{"waiting within grace period", appeal.Signals{Description: "I waited 8 minutes for the warden"}, 0.35, appeal.TierLow},
		{"waiting beyond grace period", appeal.Signals{Description: "I waited 25 minutes for the warden"}, 0.25, appeal.TierLow},
		{"hospital location", appeal.Signals{Location: "Outside St Mary's Hospital"}, 0.30, appeal.TierLow},
		{"school location", appeal.Signals{Location: "Near the primary school"}, 0.28, appeal.TierLow},
		{"legal terminology", appeal.Signals{Reason: "under the Traffic Management Act"}, 0.30, appeal.TierLow},
		{"medium narrative", appeal.Signals{Description: strings.Repeat("x ", 125)}, 0.28, appeal.TierLow},
		{"long narrative", appeal.Signals{Description: strings.Repeat("x ", 300)}, 0.31, appeal.TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Predict(tt.signals)
			if math.Abs(got.SuccessProbability-tt.want) > 0.001 {
				t.Errorf("score = %f, want %f", got.SuccessProbability, tt.want)
			}
			if got.Confidence != tt.tier {
				t.Errorf("tier = %q, want %q", got.Confidence, tt.tier)
			}
			if got.Source != appeal.SourceFallback {
				t.Errorf("source = %q", got.Source)
			}
		})
	}
}

func TestPredict_AlwaysActionable(t *testing.T) {
	p := newPredictor(t)

	inputs := []appeal.Signals{
		{},
		{Reason: "forgot", ContraventionCode: "47"},
		{Reason: "The sign was faded", Evidence: []string{"", "???"}},
	}
	for _, s := range inputs {
		got := p.Predict(s)
		if len(got.Checklist) == 0 {
			t.Errorf("%+v: empty checklist", s)
		}
		if len(got.LegalGrounds) == 0 {
			t.Errorf("%+v: no legal grounds", s)
		}
		if got.Recommendation == "" {
			t.Errorf("%+v: empty recommendation", s)
		}
		if got.KeyFactors == nil || got.RiskFlags == nil || got.RecommendedEvidence == nil {
			t.Errorf("%+v: nil slices in result", s)
		}
	}

	got := p.Predict(appeal.Signals{})
	if got.LegalGrounds[0] != p.rules.FallbackGround {
		t.Errorf("expected fallback ground, got %q", got.LegalGrounds[0])
	}
	if got.Category != "unknown" {
		t.Errorf("expected unknown category label, got %q", got.Category)
	}
}

func TestPredict_ScoreAlwaysInRange(t *testing.T) {
	p := newPredictor(t)

	var everything []string
	for _, c := range p.rules.Clusters {
		everything = append(everything, strings.TrimSpace(c.Keywords[0]))
	}
	allText := strings.Join(everything, " ") + " tribunal waited 2 minutes " + strings.Repeat("detail ", 100)

	inputs := []appeal.Signals{
		{Reason: allText, Location: "hospital school", Evidence: []string{"a.jpg", "b.mp4", "c.pdf", "witness"}, ContraventionCode: "31"},
		{Reason: "forgot running late unfair everyone parks", ContraventionCode: "47"},
		{Reason: "forgot", ContraventionCode: "48"},
	}
	for _, s := range inputs {
		got := p.Predict(s).SuccessProbability
		if got < 0 || got > 1 {
			t.Errorf("score %f out of range", got)
		}
	}
}

func TestPredict_AddingClusterNeverLowersScore(t *testing.T) {
	p := newPredictor(t)

	bases := []string{
		"",
		"I parked on the street",
		"The machine was out of order",
		"I forgot and was running late",
		strings.Repeat("word ", 60),
	}
	evidence := []string{"photo.jpg"}

	for _, base := range bases {
		before := p.Predict(appeal.Signals{Reason: base, Evidence: evidence, Location: "high street"})
		for _, c := range p.rules.Clusters {
			kw := strings.TrimSpace(c.Keywords[0])
			after := p.Predict(appeal.Signals{Reason: base + " " + kw, Evidence: evidence, Location: "high street"})
			if after.SuccessProbability < before.SuccessProbability {
				t.Errorf("adding %s (%q) to %q lowered score %f -> %f",
					c.Name, kw, base, before.SuccessProbability, after.SuccessProbability)
			}
			found := false
			for _, f := range after.KeyFactors {
				if f == c.Factor {
					found = true
				}
			}
			if !found {
				t.Errorf("adding %q did not surface factor %q", kw, c.Factor)
			}
		}
	}
}

func TestEvidenceBonus_Capped(t *testing.T) {
	p := newPredictor(t)

	tests := []struct {
		name     string
		evidence []string
		want     float64
	}{
		{"none", nil, 0},
		{"one photo", []string{"IMG_0001.JPG"}, 0.08},
		{"duplicates count once", []string{"a.jpg", "b.png", "c.heic"}, 0.08},
		{"photo and witness", []string{"a.jpg", "witness statement"}, 0.14},
		{"all kinds capped", []string{"a.jpg", "b.mp4", "c.pdf", "witness"}, 0.18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.EvidenceBonus(tt.evidence)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("EvidenceBonus = %f, want %f", got, tt.want)
			}
		})
	}

	many := make([]string, 0, 400)
	for i := 0; i < 100; i++ {
		many = append(many, "a.jpg", "b.mov", "receipt", "witness")
	}
	if got := p.EvidenceBonus(many); got > 0.18+1e-9 {
		t.Errorf("evidence bonus %f exceeds cap", got)
	}
}

func TestEvidenceKind(t *testing.T) {
	p := newPredictor(t)

	tests := []struct {
		descriptor string
		want       string
	}{
		{"photo_of_sign.jpg", "photo"},
		{"Screenshot of app", "photo"},
		{"dashcam.mp4", "video"},
		{"CCTV footage", "video"},
		{"permit.pdf", "document"},
		{"parking receipt", "document"},
		{"witness_statement.pdf", "witness"},
		{"", ""},
		{"something else", ""},
	}
	for _, tt := range tests {
		if got := p.EvidenceKind(tt.descriptor); got != tt.want {
			t.Errorf("EvidenceKind(%q) = %q, want %q", tt.descriptor, got, tt.want)
		}
	}
}

func TestTierAndRecommendationBands(t *testing.T) {
	p := newPredictor(t)

	tests := []struct {
		score float64
		tier  appeal.Tier
		band  string
	}{
		{0.9, appeal.TierHigh, "Strong"},
		{0.75, appeal.TierHigh, "Strong"},
		{0.6, appeal.TierMedium, "Reasonable"},
		{0.4, appeal.TierLow, "Possible"},
		{0.1, appeal.TierLow, "Limited"},
	}
	for _, tt := range tests {
		if got := appeal.TierFor(tt.score); got != tt.tier {
			t.Errorf("TierFor(%f) = %q, want %q", tt.score, got, tt.tier)
		}
		if got := p.recommendation(tt.score); !strings.HasPrefix(got, tt.band) {
			t.Errorf("recommendation(%f) = %q, want prefix %q", tt.score, got, tt.band)
		}
	}
}

func TestLoadRules_Validation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "clusters: [oops"},
		{"no checklist", "fallback_ground: x\nbands: [{min: 0, text: y}]\n"},
		{"no fallback", "checklist: [a]\nbands: [{min: 0, text: y}]\n"},
		{"no bands", "checklist: [a]\nfallback_ground: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadRules([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", " "},
		{"Didn't SEE", " didn t see "},
		{"  a&e,  clinic!", " a e clinic "},
	}
	for _, tt := range tests {
		if got := fold(tt.in); got != tt.want {
			t.Errorf("fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
