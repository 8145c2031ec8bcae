package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"OpenAIApp/internal/completion"
	"OpenAIApp/internal/config"
	"OpenAIApp/internal/ledger"
	"OpenAIApp/internal/session"
	"OpenAIApp/internal/telemetry"
)

// app bundles the wired dependencies of one run
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	session session.Session
	client  *completion.Client
	ledger  *ledger.Ledger

	closers []func()
}

func newApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	// nothing is written to disk for a run that cannot start
	if err := completion.CheckAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
		cfg.Log.Level = "debug"
	}

	a := &app{cfg: cfg, session: session.New(cfg.Chat.Model)}

	logger, logFile, err := telemetry.InitLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	a.logger = logger.With("session_id", a.session.ID)
	a.closers = append(a.closers, func() { logFile.Close() })

	opts := []completion.Option{completion.WithLogger(a.logger)}

	if cfg.Telemetry.Enabled {
		providers, err := telemetry.InitTelemetry(ctx, telemetry.Options{
			Dir:            cfg.Log.Dir,
			ServiceVersion: version,
			Traces:         cfg.Telemetry.Traces,
			Metrics:        cfg.Telemetry.Metrics,
			MetricInterval: time.Duration(cfg.Telemetry.MetricIntervalSeconds) * time.Second,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(ctx); err != nil {
				a.logger.Error("failed to shutdown telemetry", "error", err)
			}
		})
		opts = append(opts, completion.WithTracer(providers.Tracer), completion.WithMeter(providers.Meter))
	}

	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path, a.logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open usage ledger: %w", err)
		}
		a.ledger = l
		a.closers = append(a.closers, func() { l.Close() })
		opts = append(opts, completion.WithRecorder(l.Recorder(a.session.ID)))
	}

	client, err := completion.New(completion.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client

	a.logger.Info("application started",
		"version", version,
		"chat_model", cfg.Chat.Model,
		"base_url", cfg.BaseURL,
		"telemetry", cfg.Telemetry.Enabled,
		"ledger", cfg.Ledger.Path,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) chatParams() completion.Params {
	return completion.Params{
		Model:       a.cfg.Chat.Model,
		MaxTokens:   a.cfg.Chat.MaxTokens,
		Temperature: a.cfg.Chat.Temperature,
	}
}

func (a *app) completionParams() completion.Params {
	return completion.Params{
		Model:       a.cfg.Completion.Model,
		MaxTokens:   a.cfg.Completion.MaxTokens,
		Temperature: a.cfg.Completion.Temperature,
	}
}

func (a *app) imageOptions() completion.ImageOptions {
	return completion.ImageOptions{
		Model:   a.cfg.Image.Model,
		N:       1,
		Size:    completion.ImageSize(a.cfg.Image.Size),
		Quality: completion.ImageQuality(a.cfg.Image.Quality),
	}
}
