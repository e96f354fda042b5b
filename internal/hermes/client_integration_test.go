//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tribunal/internal/learning"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PubSub(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx := context.Background()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan learning.OutcomeRecorded, 1)
	err = client.Subscribe(SubjectOutcomeRecorded, func(subject string, data []byte) {
		var evt learning.OutcomeRecorded
		json.Unmarshal(data, &evt)
		received <- evt
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	want := learning.OutcomeRecorded{CaseID: uuid.New(), Category: "civil_pcn", Outcome: "successful"}
	if err := client.PublishOutcomeRecorded(ctx, want); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		if got.CaseID != want.CaseID {
			t.Errorf("expected case %s, got %s", want.CaseID, got.CaseID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestIntegration_EvolveTaskRoundTrip(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	want := learning.EvolveTask{CaseID: uuid.New(), Category: "civil_pcn", EnqueuedAt: time.Now().UTC()}
	handled := make(chan learning.EvolveTask, 8)

	err = client.ConsumeEvolve(ctx, func(_ context.Context, task learning.EvolveTask) error {
		handled <- task
		return nil
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if err := client.EnqueueEvolve(ctx, want); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case got := <-handled:
			if got.CaseID == want.CaseID {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for task")
		}
	}
}
