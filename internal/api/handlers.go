package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/learning"
	"github.com/MikeSquared-Agency/tribunal/internal/store"
)

const maxBodyBytes = 1 << 20

type predictRequest struct {
	Reason            string   `json:"reason"`
	Description       string   `json:"description"`
	TicketNumber      string   `json:"ticket_number"`
	VehicleReg        string   `json:"vehicle_reg"`
	FineAmount        float64  `json:"fine_amount"`
	Evidence          []string `json:"evidence"`
	Location          string   `json:"location"`
	ContraventionCode string   `json:"contravention_code"`
}

type strategy struct {
	Checklist           []string `json:"checklist"`
	RecommendedEvidence []string `json:"recommended_evidence"`
}

type predictResponse struct {
	appeal.PredictionResult
	Strategy strategy `json:"strategy"`
}

func (s *Server) predictAppeal(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res := s.deps.Predictor.Predict(r.Context(), appeal.Signals{
		Reason:            req.Reason,
		Description:       req.Description,
		TicketNumber:      req.TicketNumber,
		VehicleReg:        req.VehicleReg,
		FineAmount:        req.FineAmount,
		Location:          req.Location,
		Evidence:          req.Evidence,
		ContraventionCode: req.ContraventionCode,
	})

	writeJSON(w, http.StatusOK, predictResponse{
		PredictionResult: res,
		Strategy: strategy{
			Checklist:           res.Checklist,
			RecommendedEvidence: res.RecommendedEvidence,
		},
	})
}

type recordOutcomeRequest struct {
	CaseReference   string     `json:"case_reference"`
	Outcome         string     `json:"outcome"`
	Notes           string     `json:"notes"`
	TicketNumber    string     `json:"ticket_number"`
	Category        string     `json:"category"`
	Circumstances   string     `json:"circumstances"`
	EvidenceTypes   []string   `json:"evidence_types"`
	AppealText      string     `json:"appeal_text"`
	KeyArguments    []string   `json:"key_arguments"`
	SuccessFactors  []string   `json:"success_factors"`
	LegalReferences []string   `json:"legal_references"`
	FineAmount      float64    `json:"fine_amount"`
	FineReduction   *float64   `json:"fine_reduction"`
	ProcessingDays  *int       `json:"processing_days"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}

func (s *Server) recordOutcome(w http.ResponseWriter, r *http.Request) {
	var req recordOutcomeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id, err := uuid.Parse(req.CaseReference)
	if err != nil {
		writeError(w, http.StatusBadRequest, "case_reference must be a UUID")
		return
	}

	category := strings.TrimSpace(req.Category)
	if category == "" && req.TicketNumber != "" {
		category = s.deps.Classifier.Classify(req.TicketNumber).ID
	}

	c := appeal.TrainingCase{
		ID:              id,
		Category:        category,
		Circumstances:   req.Circumstances,
		EvidenceTypes:   req.EvidenceTypes,
		AppealText:      req.AppealText,
		Outcome:         appeal.Outcome(strings.ToLower(strings.TrimSpace(req.Outcome))),
		SuccessFactors:  req.SuccessFactors,
		KeyArguments:    req.KeyArguments,
		LegalReferences: req.LegalReferences,
		ProcessingDays:  req.ProcessingDays,
		FineAmount:      req.FineAmount,
		FineReduction:   req.FineReduction,
		Notes:           req.Notes,
		ResolvedAt:      req.ResolvedAt,
	}
	if req.SubmittedAt != nil {
		c.SubmittedAt = *req.SubmittedAt
	}

	err = s.deps.Recorder.RecordOutcome(r.Context(), c)
	switch {
	case errors.Is(err, learning.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, store.ErrDuplicateCase):
		writeError(w, http.StatusConflict, "case already recorded")
		return
	case err != nil:
		s.logger.Error("record outcome failed", "error", err, "case_id", id)
		writeError(w, http.StatusServiceUnavailable, "corpus unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":         "accepted",
		"case_reference": id.String(),
		"category":       category,
	})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Reader.Metrics(r.Context())
	if err != nil {
		s.logger.Error("load metrics failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "corpus unavailable")
		return
	}
	if m == nil {
		m = &appeal.ModelMetrics{
			MostSuccessfulArgs:  []appeal.ArgumentStat{},
			LeastSuccessfulArgs: []appeal.ArgumentStat{},
		}
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) template(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	t, err := s.deps.Reader.Template(r.Context(), category)
	if err != nil {
		s.logger.Error("load template failed", "error", err, "category", category)
		writeError(w, http.StatusServiceUnavailable, "corpus unavailable")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "no template for category")
		return
	}
	if err := s.deps.Reader.TouchTemplate(r.Context(), category, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to record template use", "error", err, "category", category)
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if strings.TrimSpace(ticket) == "" {
		writeError(w, http.StatusBadRequest, "ticket query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Classifier.Classify(ticket))
}

func (s *Server) deleteCase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	err = s.deps.Recorder.DeactivateCase(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "case not found")
		return
	case err != nil:
		s.logger.Error("deactivate case failed", "error", err, "case_id", id)
		writeError(w, http.StatusServiceUnavailable, "corpus unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
