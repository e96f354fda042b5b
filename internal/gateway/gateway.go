package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
	"github.com/MikeSquared-Agency/tribunal/internal/predictor"
)

const DefaultTimeout = 10 * time.Second

// Oracle is an external prediction service.
type Oracle interface {
	Predict(ctx context.Context, s appeal.Signals) (appeal.PredictionResult, error)
}

// Gateway prefers the external service and falls back to the rule-based
// predictor on any failure. Predict always returns a result.
type Gateway struct {
	oracle     Oracle
	fallback   *predictor.Predictor
	classifier *classifier.Registry
	timeout    time.Duration
	logger     *slog.Logger
}

// New builds a gateway. oracle may be nil, in which case every prediction
// comes from the fallback.
func New(oracle Oracle, fallback *predictor.Predictor, reg *classifier.Registry, timeout time.Duration, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		oracle:     oracle,
		fallback:   fallback,
		classifier: reg,
		timeout:    timeout,
		logger:     logger,
	}
}

type outcome struct {
	res appeal.PredictionResult
	err error
}

func (g *Gateway) Predict(ctx context.Context, s appeal.Signals) appeal.PredictionResult {
	s.Category = g.categoryOf(s)

	if g.oracle == nil {
		return g.fallback.Predict(s)
	}

	res, err := g.external(ctx, s)
	if err != nil {
		g.logger.Warn("external prediction failed, using rule-based fallback",
			"error", err,
			"category", s.Category,
		)
		return g.fallback.Predict(s)
	}
	res.Category = s.Category
	res.Source = appeal.SourceExternal
	return res
}

// external runs the service call in its own goroutine so a slow service
// cannot hold the caller past the timeout.
func (g *Gateway) external(ctx context.Context, s appeal.Signals) (appeal.PredictionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("external predictor panicked: %v", r)}
			}
		}()
		res, err := g.oracle.Predict(ctx, s)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return appeal.PredictionResult{}, fmt.Errorf("external predictor timed out after %s", g.timeout)
		}
		return appeal.PredictionResult{}, ctx.Err()
	}
}

func (g *Gateway) categoryOf(s appeal.Signals) string {
	if s.Category != "" {
		return s.Category
	}
	if s.TicketNumber != "" && g.classifier != nil {
		return g.classifier.Classify(s.TicketNumber).ID
	}
	return classifier.UnknownID
}
