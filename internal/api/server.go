package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
)

// Version is reported by the status endpoint.
var Version = "dev"

// Predictor produces a prediction and never fails.
type Predictor interface {
	Predict(ctx context.Context, s appeal.Signals) appeal.PredictionResult
}

// Recorder applies outcome reports to the corpus.
type Recorder interface {
	RecordOutcome(ctx context.Context, c appeal.TrainingCase) error
	DeactivateCase(ctx context.Context, id uuid.UUID) error
}

// Reader serves the corpus read models.
type Reader interface {
	Metrics(ctx context.Context) (*appeal.ModelMetrics, error)
	Template(ctx context.Context, category string) (*appeal.AppealTemplate, error)
	TouchTemplate(ctx context.Context, category string, at time.Time) error
	Ping(ctx context.Context) error
}

type Deps struct {
	Predictor  Predictor
	Recorder   Recorder
	Reader     Reader
	Classifier *classifier.Registry
	// Mode describes the wiring for the status endpoint, e.g. which queue is in use.
	Mode map[string]string
}

type Server struct {
	router *chi.Mux
	http   *http.Server
	deps   Deps
	logger *slog.Logger
}

func NewServer(port int, apiToken string, deps Deps, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		deps:   deps,
		logger: logger,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/tribunal/status", s.status)
		r.Post("/predict-appeal", s.predictAppeal)
		r.Post("/record-outcome", s.recordOutcome)
		r.Get("/metrics", s.metrics)
		r.Get("/templates/{category}", s.template)
		r.Get("/categories/classify", s.classify)
		r.Delete("/cases/{id}", s.deleteCase)
	})

	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"service": "tribunal",
		"version": Version,
		"status":  "ok",
		"store":   "ok",
	}
	if err := s.deps.Reader.Ping(r.Context()); err != nil {
		body["status"] = "degraded"
		body["store"] = "unavailable"
	}
	for k, v := range s.deps.Mode {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
