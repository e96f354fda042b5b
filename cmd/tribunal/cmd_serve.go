package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/tribunal/internal/api"
	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
	"github.com/MikeSquared-Agency/tribunal/internal/evolver"
	"github.com/MikeSquared-Agency/tribunal/internal/hermes"
	"github.com/MikeSquared-Agency/tribunal/internal/learning"
)

const shutdownTimeout = 15 * time.Second

var serveFlags struct {
	port      int
	queueSize int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, evolve worker and metrics scheduler",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.IntVar(&serveFlags.port, "port", 0, "listen port (overrides TRIBUNAL_PORT)")
	f.IntVar(&serveFlags.queueSize, "queue-size", 256, "buffer of the in-process evolve queue when NATS is not configured")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()
	if serveFlags.port > 0 {
		cfg.Port = serveFlags.port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("tribunal starting", "port", cfg.Port, "version", version)

	db, storeMode, closeDB, err := openCorpus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	reg, err := classifier.Default()
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	gw, predictorMode, closeGW, err := newGateway(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer closeGW()

	llm, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}
	logger.Info("template synthesizer ready", "provider", cfg.LLMProvider)
	ev := evolver.New(llm, db, logger)

	// Task queue: JetStream when NATS is configured, in-process otherwise.
	var (
		queue  learning.Queue
		events learning.Publisher
		bus    *hermes.Client
		local  *learning.LocalQueue
	)
	queueMode := "local"
	if cfg.NatsURL != "" {
		bus, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		defer bus.Close()
		logger.Info("NATS connected", "url", cfg.NatsURL)
		queue, events = bus, bus
		queueMode = "jetstream"
	} else {
		logger.Warn("NATS_URL not set, evolve tasks are held in memory and lost on restart")
		local = learning.NewLocalQueue(serveFlags.queueSize, logger)
		queue = local
	}

	orch := learning.New(db, ev, queue, events, logger)

	if bus != nil {
		if err := bus.ConsumeEvolve(ctx, orch.HandleEvolveTask); err != nil {
			return fmt.Errorf("start evolve consumer: %w", err)
		}
	}

	// Periodic reconciliation heals metrics drift after partial failures.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.ReconcileSchedule, func() {
		m, err := orch.ReconcileMetrics(ctx)
		if err != nil {
			logger.Error("metrics reconcile failed", "error", err)
			return
		}
		logger.Info("metrics reconciled", "total_cases", m.TotalCases, "success_rate", m.SuccessRate)
	}); err != nil {
		return fmt.Errorf("invalid METRICS_RECONCILE_SCHEDULE %q: %w", cfg.ReconcileSchedule, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Predictor:  gw,
		Recorder:   orch,
		Reader:     db,
		Classifier: reg,
		Mode: map[string]string{
			"corpus":    storeMode,
			"queue":     queueMode,
			"predictor": predictorMode,
		},
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if local != nil {
		g.Go(func() error {
			return local.Run(gctx, orch.HandleEvolveTask)
		})
	}

	if bus != nil {
		if err := bus.Publish(hermes.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"version":   version,
		}); err != nil {
			logger.Warn("failed to publish registration", "error", err)
		}
	}

	logger.Info("tribunal ready", "port", cfg.Port, "store", storeMode, "queue", queueMode, "predictor", predictorMode)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("tribunal stopped")
	return nil
}
