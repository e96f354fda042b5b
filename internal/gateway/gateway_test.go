package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
	"github.com/MikeSquared-Agency/tribunal/internal/predictor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type oracleFunc func(ctx context.Context, s appeal.Signals) (appeal.PredictionResult, error)

func (f oracleFunc) Predict(ctx context.Context, s appeal.Signals) (appeal.PredictionResult, error) {
	return f(ctx, s)
}

func newGateway(t *testing.T, o Oracle, timeout time.Duration) *Gateway {
	t.Helper()
	p, err := predictor.Default()
	if err != nil {
		t.Fatalf("predictor.Default: %v", err)
	}
	reg, err := classifier.Default()
	if err != nil {
		t.Fatalf("classifier.Default: %v", err)
	}
	return New(o, p, reg, timeout, discardLogger())
}

var signals = appeal.Signals{
	Reason:       "The signs were hidden behind a tree",
	TicketNumber: "pcn12345678",
	Evidence:     []string{"photo of sign"},
}

func TestPredict_ExternalSuccess(t *testing.T) {
	var seen appeal.Signals
	o := oracleFunc(func(_ context.Context, s appeal.Signals) (appeal.PredictionResult, error) {
		seen = s
		return appeal.PredictionResult{
			SuccessProbability:  0.9,
			Confidence:          appeal.TierHigh,
			Checklist:           []string{"Send it"},
			RecommendedEvidence: []string{},
			Source:              appeal.SourceExternal,
		}, nil
	})

	got := newGateway(t, o, time.Second).Predict(context.Background(), signals)
	if got.Source != appeal.SourceExternal {
		t.Errorf("source = %q, want external", got.Source)
	}
	if got.SuccessProbability != 0.9 {
		t.Errorf("probability = %f", got.SuccessProbability)
	}
	if got.Category != "civil_pcn" || seen.Category != "civil_pcn" {
		t.Errorf("category = %q (sent %q), want civil_pcn", got.Category, seen.Category)
	}
}

func TestPredict_FallbackOnError(t *testing.T) {
	o := oracleFunc(func(context.Context, appeal.Signals) (appeal.PredictionResult, error) {
		return appeal.PredictionResult{}, errors.New("502 bad gateway")
	})

	got := newGateway(t, o, time.Second).Predict(context.Background(), signals)
	if got.Source != appeal.SourceFallback {
		t.Errorf("source = %q, want fallback", got.Source)
	}
	if len(got.Checklist) == 0 || len(got.LegalGrounds) == 0 {
		t.Error("fallback result must be actionable")
	}
	if got.Category != "civil_pcn" {
		t.Errorf("category = %q", got.Category)
	}
}

func TestPredict_TimeoutFallsBackPromptly(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	o := oracleFunc(func(context.Context, appeal.Signals) (appeal.PredictionResult, error) {
		// ignores cancellation entirely
		<-release
		return appeal.PredictionResult{SuccessProbability: 1, Checklist: []string{"late"}}, nil
	})

	g := newGateway(t, o, 50*time.Millisecond)
	start := time.Now()
	got := g.Predict(context.Background(), signals)
	elapsed := time.Since(start)

	if got.Source != appeal.SourceFallback {
		t.Errorf("source = %q, want fallback", got.Source)
	}
	if elapsed > time.Second {
		t.Errorf("gateway waited %s for a hung service", elapsed)
	}
}

func TestPredict_TimeoutCancelsContext(t *testing.T) {
	cancelled := make(chan struct{})
	o := oracleFunc(func(ctx context.Context, _ appeal.Signals) (appeal.PredictionResult, error) {
		<-ctx.Done()
		close(cancelled)
		return appeal.PredictionResult{}, ctx.Err()
	})

	newGateway(t, o, 20*time.Millisecond).Predict(context.Background(), signals)
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight call was not cancelled")
	}
}

func TestPredict_PanicFallsBack(t *testing.T) {
	o := oracleFunc(func(context.Context, appeal.Signals) (appeal.PredictionResult, error) {
		panic("boom")
	})

	got := newGateway(t, o, time.Second).Predict(context.Background(), signals)
	if got.Source != appeal.SourceFallback {
		t.Errorf("source = %q, want fallback", got.Source)
	}
}

func TestPredict_NoOracle(t *testing.T) {
	got := newGateway(t, nil, 0).Predict(context.Background(), appeal.Signals{Reason: "forgot to pay"})
	if got.Source != appeal.SourceFallback {
		t.Errorf("source = %q, want fallback", got.Source)
	}
	if got.Category != classifier.UnknownID {
		t.Errorf("category = %q, want unknown", got.Category)
	}
}

func TestPredict_ExplicitCategoryWins(t *testing.T) {
	s := signals
	s.Category = "private_parking"
	got := newGateway(t, nil, 0).Predict(context.Background(), s)
	if got.Category != "private_parking" {
		t.Errorf("category = %q", got.Category)
	}
}
