package learning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EvolveTask asks for a category template to be evolved from a successful case.
type EvolveTask struct {
	CaseID     uuid.UUID `json:"case_id"`
	Category   string    `json:"category"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// OutcomeRecorded is announced after an outcome has been committed.
type OutcomeRecorded struct {
	CaseID      uuid.UUID `json:"case_id"`
	Category    string    `json:"category"`
	Outcome     string    `json:"outcome"`
	TotalCases  int       `json:"total_cases"`
	SuccessRate float64   `json:"success_rate"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Queue delivers evolve tasks at least once.
type Queue interface {
	EnqueueEvolve(ctx context.Context, task EvolveTask) error
}

// Publisher announces committed outcomes. Delivery is best-effort.
type Publisher interface {
	PublishOutcomeRecorded(ctx context.Context, evt OutcomeRecorded) error
}

// TaskHandler processes one evolve task. A non-nil error requests redelivery.
type TaskHandler func(ctx context.Context, task EvolveTask) error

var ErrQueueFull = errors.New("task queue full")

// LocalQueue is an in-process Queue used when no broker is configured.
// Tasks are lost on restart.
type LocalQueue struct {
	tasks  chan EvolveTask
	logger *slog.Logger
}

func NewLocalQueue(size int, logger *slog.Logger) *LocalQueue {
	if size <= 0 {
		size = 64
	}
	return &LocalQueue{
		tasks:  make(chan EvolveTask, size),
		logger: logger,
	}
}

func (q *LocalQueue) EnqueueEvolve(ctx context.Context, task EvolveTask) error {
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Run handles tasks until ctx is cancelled.
func (q *LocalQueue) Run(ctx context.Context, handle TaskHandler) error {
	q.logger.Info("local evolve worker started", "buffer", cap(q.tasks))
	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-q.tasks:
			if err := handle(ctx, task); err != nil {
				q.logger.Error("evolve task failed",
					"error", err,
					"case_id", task.CaseID,
					"category", task.Category,
				)
			}
		}
	}
}
