package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

const circumstances = "parked outside the hospital while the sign was hidden by a tree"

func candidate(category string, outcome appeal.Outcome, text string, evidence ...string) appeal.TrainingCase {
	return appeal.TrainingCase{
		ID:            uuid.New(),
		Category:      category,
		Circumstances: text,
		EvidenceTypes: evidence,
		Outcome:       outcome,
		Active:        true,
	}
}

func TestFindSimilar_FiltersAndLimits(t *testing.T) {
	target := candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "photo")

	self := target
	inactive := candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "photo")
	inactive.Active = false

	corpus := []appeal.TrainingCase{
		self,
		inactive,
		candidate("speed_camera", appeal.OutcomeSuccessful, circumstances, "photo"),
		candidate("civil_pcn", appeal.OutcomeUnsuccessful, circumstances, "photo"),
		candidate("civil_pcn", appeal.OutcomePending, circumstances, "photo"),
		candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "photo"),
		candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "photo", "video"),
		candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances+" again", "photo"),
		candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "photo"),
		candidate("civil_pcn", appeal.OutcomeSuccessful, "completely unrelated words about a bus lane", "photo"),
	}

	got := FindSimilar(target, corpus, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for _, c := range got {
		if c.Category != "civil_pcn" {
			t.Errorf("result from category %q", c.Category)
		}
		if c.Outcome != appeal.OutcomeSuccessful {
			t.Errorf("result with outcome %q", c.Outcome)
		}
		if c.ID == target.ID {
			t.Error("target returned as its own precedent")
		}
		if !c.Active {
			t.Error("inactive case returned")
		}
	}

	if got := FindSimilar(target, corpus, 1); len(got) != 1 {
		t.Errorf("expected k=1 to cap results, got %d", len(got))
	}
	if got := FindSimilar(target, corpus, 0); len(got) != DefaultK {
		t.Errorf("expected default k, got %d", len(got))
	}
}

func TestFindSimilar_Threshold(t *testing.T) {
	target := candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "photo")

	// identical text, no shared evidence: 0.6, below threshold
	noEvidence := candidate("civil_pcn", appeal.OutcomeSuccessful, circumstances, "witness")
	// shared evidence, disjoint text: 0.4
	noText := candidate("civil_pcn", appeal.OutcomeSuccessful, "bus lane camera", "photo")

	if got := FindSimilar(target, []appeal.TrainingCase{noEvidence, noText}, 3); len(got) != 0 {
		t.Errorf("expected no precedent above threshold, got %d", len(got))
	}
	if got := FindSimilar(target, nil, 3); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result for empty corpus, got %v", got)
	}
}

func TestRank_OrderedByScoreThenRecency(t *testing.T) {
	target := candidate("civil_pcn", appeal.OutcomeSuccessful, "sign hidden by tree", "photo", "video")

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.AddDate(0, 1, 0)

	exactOld := candidate("civil_pcn", appeal.OutcomeSuccessful, "sign hidden by tree", "photo", "video")
	exactOld.ResolvedAt = &older
	exactNew := candidate("civil_pcn", appeal.OutcomeSuccessful, "sign hidden by tree", "photo", "video")
	exactNew.ResolvedAt = &newer
	partial := candidate("civil_pcn", appeal.OutcomeSuccessful, "sign hidden by tree", "photo")

	matches := Rank(target, []appeal.TrainingCase{partial, exactOld, exactNew}, 3)
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Case.ID != exactNew.ID || matches[1].Case.ID != exactOld.ID || matches[2].Case.ID != partial.ID {
		t.Errorf("unexpected order: %v %v %v", matches[0].Score, matches[1].Score, matches[2].Score)
	}
	if math.Abs(matches[0].Score-1.0) > 0.0001 {
		t.Errorf("identical case score = %f, want 1", matches[0].Score)
	}
	if math.Abs(matches[2].Score-0.8) > 0.0001 {
		t.Errorf("half-evidence case score = %f, want 0.8", matches[2].Score)
	}
}

func TestEvidenceOverlap(t *testing.T) {
	tests := []struct {
		name string
		want []string
		have []string
		exp  float64
	}{
		{"no wanted evidence", nil, []string{"photo"}, 0},
		{"all present", []string{"photo", "video"}, []string{"video", "photo", "witness"}, 1},
		{"half present", []string{"photo", "video"}, []string{"photo"}, 0.5},
		{"case insensitive", []string{"Photo"}, []string{"photo "}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvidenceOverlap(tt.want, tt.have); math.Abs(got-tt.exp) > 0.0001 {
				t.Errorf("EvidenceOverlap = %f, want %f", got, tt.exp)
			}
		})
	}
}

func TestJaccardAndTokens(t *testing.T) {
	a := Tokens("The SIGN was hidden, the sign!")
	if len(a) != 4 {
		t.Errorf("expected 4 distinct tokens, got %d: %v", len(a), a)
	}
	if _, ok := Tokens("Café")["cafe"]; !ok {
		t.Error("expected accents to be stripped")
	}

	b := Tokens("sign hidden by tree")
	// {the, sign, was, hidden} vs {sign, hidden, by, tree}: 2 / 6
	if got := Jaccard(a, b); math.Abs(got-2.0/6.0) > 0.0001 {
		t.Errorf("Jaccard = %f", got)
	}
	if got := Jaccard(Tokens(""), Tokens("")); got != 0 {
		t.Errorf("Jaccard of empty sets = %f", got)
	}
}
