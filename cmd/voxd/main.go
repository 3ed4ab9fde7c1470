package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/candorlabs/vox/pkg/config"
	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/decision"
	"github.com/candorlabs/vox/pkg/core/guide"
	"github.com/candorlabs/vox/pkg/core/interview"
	"github.com/candorlabs/vox/pkg/core/learning"
	"github.com/candorlabs/vox/pkg/core/providers/anthropic"
	"github.com/candorlabs/vox/pkg/core/providers/gemini"
	"github.com/candorlabs/vox/pkg/core/quality"
	"github.com/candorlabs/vox/pkg/core/voice/stt"
	"github.com/candorlabs/vox/pkg/core/voice/tts"
	"github.com/candorlabs/vox/pkg/notify"
	"github.com/candorlabs/vox/pkg/store"
)

// provider is the LLM surface the orchestrator and decision engine
// share: one client serves both analysis and follow-up generation.
type provider interface {
	analysis.Analyzer
	analysis.Generator
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("voxd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	llm, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	patterns := learning.NewStore(learning.WithLogger(logger))
	engine := decision.NewEngine(patterns, llm, decision.DefaultConfig(), logger)

	metrics := quality.NewMetrics("vox")
	alerts := quality.NewAlertManager(cfg.AlertSuppression, logger)
	monitor := quality.NewMonitor(alerts, quality.DefaultThresholds(), logger)

	broadcaster := notify.NewBroadcaster(logger)
	defer broadcaster.Close()
	notifier := notify.Multi{notify.NewLog(logger), broadcaster}

	sink := interview.NewAlertSink(db, notifier, metrics, logger)
	sink.Start(ctx, alerts.Alerts())

	orch := interview.NewOrchestrator(interview.Deps{
		STT:       stt.NewSimulated(0),
		TTS:       tts.NewSimulated(),
		Analyzer:  llm,
		Engine:    engine,
		Learning:  patterns,
		Monitor:   monitor,
		Alerts:    alerts,
		Metrics:   metrics,
		Notifier:  notifier,
		Persister: db,
		Logger:    logger,
	}, interview.Config{
		STTTimeout:      cfg.STTTimeout,
		AnalysisRetries: uint64(cfg.AnalysisRetries),
	})

	guides := guide.NewDir(cfg.GuideDir)
	svc := interview.NewService(orch, db, guides, patterns, notifier,
		interview.WithMaxConcurrent(cfg.MaxConcurrent),
		interview.WithMaxFollowUpDepth(cfg.MaxFollowUpDepth),
		interview.WithServiceLogger(logger))
	defer svc.Close()

	if err := svc.RestorePatterns(ctx); err != nil {
		logger.Warn("restore learned patterns failed", "error", err)
	}

	dispatcher, err := interview.NewDispatcher(svc, cfg.DispatchSpec, logger)
	if err != nil {
		return err
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", broadcaster.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	logger.Info("voxd started",
		"addr", cfg.Addr,
		"provider", cfg.Provider,
		"guide_dir", cfg.GuideDir,
		"max_concurrent", cfg.MaxConcurrent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}

	dispatcher.Stop()
	svc.Close()
	if err := <-listenErrCh; err != nil {
		return err
	}

	logger.Info("voxd stopped")
	return nil
}

func buildProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		var opts []gemini.Option
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		opts = append(opts, gemini.WithLogger(logger))
		return gemini.New(ctx, cfg.APIKey(), opts...)
	default:
		var opts []anthropic.Option
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		opts = append(opts, anthropic.WithLogger(logger))
		return anthropic.New(cfg.APIKey(), opts...), nil
	}
}

func setupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
