package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vozline/tramita/internal/anthropic"
	"github.com/vozline/tramita/internal/api"
	"github.com/vozline/tramita/internal/caseman"
	"github.com/vozline/tramita/internal/classify"
	"github.com/vozline/tramita/internal/config"
	"github.com/vozline/tramita/internal/events"
	"github.com/vozline/tramita/internal/orchestrator"
	"github.com/vozline/tramita/internal/processor"
	"github.com/vozline/tramita/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("tramita starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	slog.Info("anthropic client ready", "model", cfg.AnthropicModel)

	classifier := classify.New(llm, slog.Default())

	// Case-management backend
	if cfg.CasemanBaseURL == "" {
		slog.Error("CASEMAN_BASE_URL is required")
		os.Exit(1)
	}
	cm := caseman.NewClient(cfg.CasemanBaseURL, cfg.CasemanAPIKey)

	orch := orchestrator.New(cm, db, slog.Default())

	// NATS
	eventsClient, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Processor — the main pipeline
	proc := processor.New(db, classifier, orch, eventsClient, slog.Default())

	// Calls also arrive over the bus, not just the webhook
	if err := eventsClient.Subscribe(events.SubjectCallReceived, proc.HandleCallReceived); err != nil {
		slog.Error("failed to subscribe to call events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, proc, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("tramita ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("tramita stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
