package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumenmail/scribe/internal/api"
	"github.com/lumenmail/scribe/internal/config"
	"github.com/lumenmail/scribe/internal/conversation"
	"github.com/lumenmail/scribe/internal/events"
	"github.com/lumenmail/scribe/internal/generator"
	"github.com/lumenmail/scribe/internal/groq"
	"github.com/lumenmail/scribe/internal/history"
	"github.com/lumenmail/scribe/internal/rag"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("scribe starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Completion backend
	if cfg.GroqAPIKey == "" {
		slog.Warn("GROQ_API_KEY not set — generation requests will fail")
	}
	llm := groq.NewClient(cfg.GroqAPIKey, cfg.CompletionModel, cfg.EmbeddingModel)
	slog.Info("completion client ready", "model", cfg.CompletionModel)

	// Email history store (optional — scribe composes without it, just no
	// prior-correspondence retrieval)
	var hist *history.Store
	if cfg.DatabaseURL != "" {
		var err error
		hist, err = history.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer hist.Close()
		slog.Info("email history store connected")
	} else {
		slog.Warn("DATABASE_URL not set — email history retrieval disabled")
	}

	conversations := conversation.NewStore(conversation.Options{
		SystemPrompt:     cfg.SystemPrompt,
		MaxConversations: cfg.MaxConversations,
		MaxTurns:         cfg.MaxTurns,
		TTL:              cfg.ConversationTTL,
	})

	gen := generator.New(llm, llm, conversations, slog.Default())
	if hist != nil {
		gen.AddProvider(rag.NewHistoryProvider(hist, llm))
	} else {
		gen.AddProvider(rag.NewHistoryProvider(nil, nil))
	}
	gen.AddProvider(rag.NewToneProvider())

	// Telemetry (optional)
	var sink *events.Client
	if cfg.NatsURL != "" {
		var err error
		sink, err = events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		gen.SetEvents(sink)
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set — running without telemetry")
	}

	// HTTP API
	var recorder api.HistoryRecorder
	var embedder generator.Embedder
	if hist != nil {
		recorder = hist
		embedder = llm
	}
	srv := api.NewServer(cfg.Port, gen, recorder, embedder, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if sink != nil {
		if err := sink.Publish(events.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("scribe ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("scribe stopped")
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
