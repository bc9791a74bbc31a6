package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	openaiapi "voicebot-evaluator/internal/api/openai"
	"voicebot-evaluator/internal/config"
	"voicebot-evaluator/internal/evaluator"
	"voicebot-evaluator/internal/server"
	"voicebot-evaluator/internal/storage/sqlite"
	"voicebot-evaluator/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("voicebot-evaluator", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("no API key configured; evaluation requests will fail upstream")
	}

	var clientOpts []openaiapi.ClientOption
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	delegate := openaiapi.NewClient(cfg.OpenAI.APIKey, clientOpts...)

	var svcOpts []evaluator.ServiceOption
	if cfg.Storage.SQLite.Path != "" {
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open audit store: %v", err)
		}
		defer store.Close()
		svcOpts = append(svcOpts, evaluator.WithRecorder(store))
		logger.Info("audit recording enabled", slog.String("path", cfg.Storage.SQLite.Path))
	}

	svc := evaluator.New(delegate, evaluator.Config{
		Model:         cfg.OpenAI.Model,
		Timeout:       time.Duration(cfg.Evaluator.TimeoutMS) * time.Millisecond,
		DefaultTarget: cfg.Evaluator.Target,
	}, logger, svcOpts...)

	srv := server.New(cfg.Server.Port, logger)
	handler := server.NewHandler(svc, cfg.OpenAI.APIKey != "", logger)
	handler.Register(srv.Router)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server failed: %v", err)
	case <-sigChan:
		logger.Info("shutdown signal received, draining requests")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
