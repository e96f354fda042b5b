package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

// ErrInvalidResponse means the service answered with a body that does not
// satisfy the prediction contract.
var ErrInvalidResponse = errors.New("invalid prediction response")

type wirePrediction struct {
	SuccessProbability  *float64  `json:"success_probability"`
	ConfidenceLevel     string    `json:"confidence_level"`
	Recommendation      string    `json:"recommendation"`
	KeyFactors          []string  `json:"key_factors"`
	LegalGrounds        []string  `json:"legal_grounds"`
	RiskFactors         []string  `json:"risk_factors"`
	RecommendedEvidence *[]string `json:"recommended_evidence"`
	Checklist           []string  `json:"checklist"`
}

// decodePrediction validates a service response at the boundary. Anything
// that does not match the contract is rejected.
func decodePrediction(body []byte) (appeal.PredictionResult, error) {
	var w wirePrediction
	if err := json.Unmarshal(body, &w); err != nil {
		return appeal.PredictionResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if w.SuccessProbability == nil {
		return appeal.PredictionResult{}, fmt.Errorf("%w: missing success_probability", ErrInvalidResponse)
	}
	p := *w.SuccessProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return appeal.PredictionResult{}, fmt.Errorf("%w: success_probability %v out of range", ErrInvalidResponse, p)
	}
	if len(nonBlank(w.Checklist)) == 0 {
		return appeal.PredictionResult{}, fmt.Errorf("%w: empty checklist", ErrInvalidResponse)
	}
	if w.RecommendedEvidence == nil {
		return appeal.PredictionResult{}, fmt.Errorf("%w: missing recommended_evidence", ErrInvalidResponse)
	}

	tier := appeal.TierFor(p)
	if w.ConfidenceLevel != "" {
		switch t := appeal.Tier(strings.ToLower(w.ConfidenceLevel)); t {
		case appeal.TierLow, appeal.TierMedium, appeal.TierHigh:
			tier = t
		default:
			return appeal.PredictionResult{}, fmt.Errorf("%w: unknown confidence_level %q", ErrInvalidResponse, w.ConfidenceLevel)
		}
	}

	return appeal.PredictionResult{
		SuccessProbability:  p,
		Confidence:          tier,
		Recommendation:      w.Recommendation,
		KeyFactors:          nonBlank(w.KeyFactors),
		LegalGrounds:        nonBlank(w.LegalGrounds),
		RiskFlags:           nonBlank(w.RiskFactors),
		RecommendedEvidence: nonBlank(*w.RecommendedEvidence),
		Checklist:           nonBlank(w.Checklist),
		Source:              appeal.SourceExternal,
	}, nil
}

func nonBlank(items []string) []string {
	out := []string{}
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			out = append(out, it)
		}
	}
	return out
}
