package similarity

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

const (
	// DefaultK is the number of precedents returned when k is not positive.
	DefaultK = 3
	// Threshold is the minimum score a precedent must exceed.
	Threshold = 0.7

	evidenceWeight = 0.4
	textWeight     = 0.6
)

// Match is a scored precedent.
type Match struct {
	Case  appeal.TrainingCase
	Score float64
}

// FindSimilar returns up to k successful, active cases from the same
// category whose similarity to target exceeds Threshold, best first.
// An empty result means there is no close precedent.
func FindSimilar(target appeal.TrainingCase, corpus []appeal.TrainingCase, k int) []appeal.TrainingCase {
	matches := Rank(target, corpus, k)
	out := make([]appeal.TrainingCase, len(matches))
	for i, m := range matches {
		out[i] = m.Case
	}
	return out
}

// Rank is FindSimilar with scores attached.
func Rank(target appeal.TrainingCase, corpus []appeal.TrainingCase, k int) []Match {
	if k <= 0 {
		k = DefaultK
	}
	words := Tokens(target.Circumstances)

	var matches []Match
	for _, c := range corpus {
		if c.Category != target.Category || c.Outcome != appeal.OutcomeSuccessful || !c.Active {
			continue
		}
		if c.ID == target.ID {
			continue
		}
		score := Score(target.EvidenceTypes, words, c)
		if score > Threshold {
			matches = append(matches, Match{Case: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return resolvedAfter(matches[i].Case, matches[j].Case)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Score combines evidence overlap and circumstance-text Jaccard similarity.
func Score(evidence []string, words map[string]struct{}, candidate appeal.TrainingCase) float64 {
	return evidenceWeight*EvidenceOverlap(evidence, candidate.EvidenceTypes) +
		textWeight*Jaccard(words, Tokens(candidate.Circumstances))
}

// EvidenceOverlap is the fraction of want's evidence types present in have.
func EvidenceOverlap(want, have []string) float64 {
	wanted := set(want)
	if len(wanted) == 0 {
		return 0
	}
	present := set(have)
	var n int
	for w := range wanted {
		if _, ok := present[w]; ok {
			n++
		}
	}
	return float64(n) / float64(len(wanted))
}

// Jaccard is |a ∩ b| / |a ∪ b|, zero when both are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var inter int
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Tokens lower-cases text, strips accents and splits it into a word set.
func Tokens(text string) map[string]struct{} {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	fields := strings.FieldsFunc(b.String(), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func set(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			out[it] = struct{}{}
		}
	}
	return out
}

func resolvedAfter(a, b appeal.TrainingCase) bool {
	switch {
	case a.ResolvedAt == nil:
		return false
	case b.ResolvedAt == nil:
		return true
	default:
		return a.ResolvedAt.After(*b.ResolvedAt)
	}
}
