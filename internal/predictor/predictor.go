package predictor

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

var minutesPattern = regexp.MustCompile(`\b(\d{1,3}) ?(?:mins?|minutes?)\b`)

// Predictor scores appeals with a weighted additive heuristic. It holds no
// mutable state and is safe for concurrent use.
type Predictor struct {
	rules *Rules
}

func New(rules *Rules) *Predictor {
	return &Predictor{rules: rules}
}

// Default returns a predictor over the embedded rules table.
func Default() (*Predictor, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return New(rules), nil
}

// Predict scores the signals. It is a pure function of its input.
func (p *Predictor) Predict(s appeal.Signals) appeal.PredictionResult {
	r := p.rules
	text := s.Text()
	folded := fold(text)

	var (
		factors  []string
		grounds  []string
		risks    []string
		evidence []string
		matched  int
	)

	score := r.BaseScore

	code := normalizeCode(s.ContraventionCode)
	if w, ok := r.ContraventionCodes[code]; ok && code != "" {
		score += w
		if w < 0 {
			risks = append(risks, fmt.Sprintf("Contravention code %s is rarely overturned on appeal", code))
		}
	}

	for _, c := range r.Clusters {
		if !containsAny(folded, c.Keywords) {
			continue
		}
		matched++
		score += c.Weight
		factors = append(factors, c.Factor)
		grounds = append(grounds, c.LegalGround)
		evidence = append(evidence, c.Evidence...)
	}

	location := fold(s.Location)
	for _, l := range r.Locations {
		if containsAny(location, l.Keywords) {
			score += l.Bonus
			factors = append(factors, l.Factor)
		}
	}

	if p.withinGracePeriod(folded) {
		score += r.GracePeriod.Bonus
		factors = append(factors, "Within the statutory grace period")
		grounds = append(grounds, r.GracePeriod.LegalGround)
	}

	kinds := p.evidenceKinds(s.Evidence)
	score += p.bonusFor(kinds)
	if len(kinds) == 0 {
		risks = append(risks, "No supporting evidence supplied")
		evidence = append(evidence, "Photographs of the location, signage and vehicle position")
	}

	score += p.narrativeBonus(len(strings.TrimSpace(text)))

	if containsAny(folded, r.LegalTerms.Keywords) {
		score += r.LegalTerms.Bonus
	}

	if containsAny(folded, r.WeakMitigation.Keywords) {
		score -= r.WeakMitigation.Penalty
		risks = append(risks, r.WeakMitigation.Factor)
	}

	if matched == 0 {
		risks = append(risks, "No recognised ground of appeal identified")
	}
	if len(strings.TrimSpace(text)) < 50 {
		risks = append(risks, "Very little detail about the circumstances")
	}
	if len(grounds) == 0 {
		grounds = append(grounds, r.FallbackGround)
	}

	score = round(clamp(score))
	category := s.Category
	if category == "" {
		category = "unknown"
	}

	return appeal.PredictionResult{
		SuccessProbability:  score,
		Confidence:          appeal.TierFor(score),
		Recommendation:      p.recommendation(score),
		KeyFactors:          nonNil(factors),
		LegalGrounds:        grounds,
		RiskFlags:           nonNil(risks),
		RecommendedEvidence: dedupe(evidence),
		Checklist:           append([]string(nil), r.Checklist...),
		Category:            category,
		Source:              appeal.SourceFallback,
	}
}

// EvidenceBonus is the capped bonus for a list of evidence descriptors.
func (p *Predictor) EvidenceBonus(descriptors []string) float64 {
	return p.bonusFor(p.evidenceKinds(descriptors))
}

// EvidenceKind classifies one descriptor as photo, video, document or
// witness by file extension or keyword. Unrecognised descriptors return "".
func (p *Predictor) EvidenceKind(descriptor string) string {
	lower := strings.ToLower(strings.TrimSpace(descriptor))
	if lower == "" {
		return ""
	}
	ext := path.Ext(lower)
	folded := fold(lower)
	for _, k := range p.rules.Evidence.Kinds {
		for _, e := range k.Extensions {
			if ext == e {
				return k.Kind
			}
		}
		if containsAny(folded, k.Keywords) {
			return k.Kind
		}
	}
	return ""
}

func (p *Predictor) evidenceKinds(descriptors []string) map[string]bool {
	kinds := make(map[string]bool)
	for _, d := range descriptors {
		if k := p.EvidenceKind(d); k != "" {
			kinds[k] = true
		}
	}
	return kinds
}

func (p *Predictor) bonusFor(kinds map[string]bool) float64 {
	var bonus float64
	for _, k := range p.rules.Evidence.Kinds {
		if kinds[k.Kind] {
			bonus += k.Bonus
		}
	}
	return math.Min(bonus, p.rules.Evidence.Cap)
}

func (p *Predictor) narrativeBonus(length int) float64 {
	var bonus float64
	for _, n := range p.rules.Narrative {
		if length > n.MinLength {
			bonus += n.Bonus
		}
	}
	return bonus
}

// withinGracePeriod looks for a short duration mentioned alongside
// grace, observation, waiting or loading language.
func (p *Predictor) withinGracePeriod(folded string) bool {
	g := p.rules.GracePeriod
	if !containsAny(folded, g.Keywords) {
		return false
	}
	for _, m := range minutesPattern.FindAllStringSubmatch(folded, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n <= g.MaxMinutes {
			return true
		}
	}
	return false
}

func (p *Predictor) recommendation(score float64) string {
	for _, b := range p.rules.Bands {
		if score >= b.Min {
			return b.Text
		}
	}
	return p.rules.Bands[len(p.rules.Bands)-1].Text
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

func round(score float64) float64 {
	return math.Round(score*1000) / 1000
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
