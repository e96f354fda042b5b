package appeal

// Signals are the inputs a prediction is computed from.
type Signals struct {
	Reason            string   `json:"reason"`
	Description       string   `json:"description"`
	TicketNumber      string   `json:"ticket_number,omitempty"`
	VehicleReg        string   `json:"vehicle_reg,omitempty"`
	FineAmount        float64  `json:"fine_amount,omitempty"`
	Category          string   `json:"category,omitempty"`
	Location          string   `json:"location,omitempty"`
	Evidence          []string `json:"evidence,omitempty"`
	ContraventionCode string   `json:"contravention_code,omitempty"`
}

// Text is the combined free text the heuristics scan.
func (s Signals) Text() string {
	if s.Description == "" {
		return s.Reason
	}
	if s.Reason == "" {
		return s.Description
	}
	return s.Reason + " " + s.Description
}

type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// TierFor buckets a success probability.
func TierFor(p float64) Tier {
	switch {
	case p >= 0.75:
		return TierHigh
	case p >= 0.5:
		return TierMedium
	default:
		return TierLow
	}
}

type Source string

const (
	SourceExternal Source = "external_service"
	SourceFallback Source = "rule_based_fallback"
)

// PredictionResult is returned to callers and never persisted.
type PredictionResult struct {
	SuccessProbability  float64  `json:"success_probability"`
	Confidence          Tier     `json:"confidence_level"`
	Recommendation      string   `json:"recommendation"`
	KeyFactors          []string `json:"key_factors"`
	LegalGrounds        []string `json:"legal_grounds"`
	RiskFlags           []string `json:"risk_factors"`
	RecommendedEvidence []string `json:"recommended_evidence"`
	Checklist           []string `json:"checklist"`
	Category            string   `json:"category"`
	Source              Source   `json:"source"`
}
