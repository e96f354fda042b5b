package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/MikeSquared-Agency/tribunal/internal/learning"
)

const (
	// StreamName is the JetStream stream holding all tribunal subjects.
	StreamName = "TRIBUNAL"
	// SubjectAll matches every tribunal subject.
	SubjectAll = "tribunal.>"
	// SubjectEvolve carries template evolution tasks.
	SubjectEvolve = "tribunal.template.evolve"
	// SubjectOutcomeRecorded announces committed outcomes.
	SubjectOutcomeRecorded = "tribunal.outcome.recorded"
	// SubjectRegistered announces a starting instance.
	SubjectRegistered = "tribunal.agent.registered"

	evolveConsumer = "tribunal-evolver"
	maxDeliver     = 5
	ackWait        = 2 * time.Minute
	redeliverDelay = 30 * time.Second
)

type Client struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	subs      []*nats.Subscription
	consumers []jetstream.ConsumeContext
	logger    *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("tribunal"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectAll},
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	return &Client{conn: nc, js: js, logger: logger}, nil
}

// Publish sends a best-effort core NATS message.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// EnqueueEvolve persists an evolve task in the stream. The message id makes
// repeated enqueues of the same case collapse inside the duplicate window.
func (c *Client) EnqueueEvolve(ctx context.Context, task learning.EvolveTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if _, err := c.js.Publish(ctx, SubjectEvolve, payload, jetstream.WithMsgID(evolveMsgID(task))); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectEvolve, err)
	}
	return nil
}

func (c *Client) PublishOutcomeRecorded(_ context.Context, evt learning.OutcomeRecorded) error {
	return c.Publish(SubjectOutcomeRecorded, evt)
}

// ConsumeEvolve delivers evolve tasks to handle through a durable consumer.
// Handler errors are negatively acknowledged for later redelivery.
func (c *Client) ConsumeEvolve(ctx context.Context, handle learning.TaskHandler) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       evolveConsumer,
		FilterSubject: SubjectEvolve,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", evolveConsumer, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleEvolve(ctx, msg, handle)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", SubjectEvolve, err)
	}
	c.consumers = append(c.consumers, cc)
	c.logger.Info("consuming", "subject", SubjectEvolve, "consumer", evolveConsumer)
	return nil
}

func (c *Client) handleEvolve(ctx context.Context, msg jetstream.Msg, handle learning.TaskHandler) {
	task, err := parseEvolveTask(msg.Data())
	if err != nil {
		c.logger.Error("dropping malformed evolve task", "error", err)
		_ = msg.Term()
		return
	}
	if err := handle(ctx, task); err != nil {
		c.logger.Warn("evolve task failed, requesting redelivery",
			"error", err,
			"case_id", task.CaseID,
		)
		_ = msg.NakWithDelay(redeliverDelay)
		return
	}
	if err := msg.Ack(); err != nil {
		c.logger.Warn("ack failed", "error", err, "case_id", task.CaseID)
	}
}

// Healthy reports whether the connection is up.
func (c *Client) Healthy() bool {
	return c.conn.IsConnected()
}

func (c *Client) Close() {
	for _, cc := range c.consumers {
		cc.Stop()
	}
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}

func parseEvolveTask(data []byte) (learning.EvolveTask, error) {
	var task learning.EvolveTask
	if err := json.Unmarshal(data, &task); err != nil {
		return learning.EvolveTask{}, fmt.Errorf("decode task: %w", err)
	}
	if task.CaseID == uuid.Nil {
		return learning.EvolveTask{}, fmt.Errorf("task without case id")
	}
	return task, nil
}

func evolveMsgID(task learning.EvolveTask) string {
	return "evolve-" + task.CaseID.String()
}
