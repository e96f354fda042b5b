package appeal

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the real-world result of a submitted appeal.
type Outcome string

const (
	OutcomeSuccessful   Outcome = "successful"
	OutcomeUnsuccessful Outcome = "unsuccessful"
	OutcomePending      Outcome = "pending"
)

// Terminal reports whether the outcome is final and can enter the corpus.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccessful || o == OutcomeUnsuccessful
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o.Terminal() || o == OutcomePending
}

// Category describes a class of penalty notice.
type Category struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	LegalCategory string    `json:"legal_category" yaml:"legal_category"` // civil | criminal | private_contract
	AppealRoute   string    `json:"appeal_route" yaml:"appeal_route"`
	TimeLimitDays int       `json:"time_limit_days" yaml:"time_limit_days"`
	Patterns      []string  `json:"patterns" yaml:"patterns"`
	FineRange     FineRange `json:"fine_range" yaml:"fine_range"`
}

type FineRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// TrainingCase is a resolved appeal used for learning and retrieval.
type TrainingCase struct {
	ID              uuid.UUID  `json:"id"`
	Category        string     `json:"category"`
	Circumstances   string     `json:"circumstances"`
	EvidenceTypes   []string   `json:"evidence_types"`
	AppealText      string     `json:"appeal_text"`
	Outcome         Outcome    `json:"outcome"`
	SuccessFactors  []string   `json:"success_factors,omitempty"`
	KeyArguments    []string   `json:"key_arguments"`
	LegalReferences []string   `json:"legal_references,omitempty"`
	ProcessingDays  *int       `json:"processing_days,omitempty"`
	FineAmount      float64    `json:"fine_amount"`
	FineReduction   *float64   `json:"fine_reduction,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	Active          bool       `json:"active"`
}

// AppealTemplate is the per-category letter skeleton evolved from successful cases.
type AppealTemplate struct {
	Category     string     `json:"category"`
	Text         string     `json:"text"`
	SuccessRate  float64    `json:"success_rate"`
	Version      int64      `json:"version"`
	SourceCaseID uuid.UUID  `json:"source_case_id"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ArgumentStat is the aggregate performance of one recurring argument.
type ArgumentStat struct {
	Argument    string  `json:"argument"`
	Occurrences int     `json:"occurrences"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
}

// MetricsID is the fixed key of the singleton metrics record.
const MetricsID = "current"

// ModelMetrics is the aggregate view over the whole corpus.
type ModelMetrics struct {
	TotalCases            int            `json:"total_cases"`
	SuccessfulCases       int            `json:"successful_cases"`
	SuccessRate           float64        `json:"success_rate"`
	MostSuccessfulArgs    []ArgumentStat `json:"most_successful_arguments"`
	LeastSuccessfulArgs   []ArgumentStat `json:"least_successful_arguments"`
	AverageFineReduction  float64        `json:"average_fine_reduction"`
	AverageProcessingDays float64        `json:"average_processing_days"`
	ConfidenceScore       float64        `json:"confidence_score"`
	UpdatedAt             time.Time      `json:"updated_at"`
}
