package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "openaiapp"

// ParseLevel maps a config level name to a slog level
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func rotatingFile(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger initializes structured logging with rotation.
// Logs go only to file; stdout belongs to the conversation.
func InitLogger(logDir, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	file := rotatingFile(logDir, "openaiapp.log")
	logger := NewLogger(file, ParseLevel(level))
	slog.SetDefault(logger)

	return logger, file, nil
}

// NewLogger builds the redacting JSON logger used across the application
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactedHandler(handler))
}

// Options selects which signals InitTelemetry exports
type Options struct {
	Dir            string // rotated trace and metric files are written here
	ServiceVersion string
	Traces         bool
	Metrics        bool
	MetricInterval time.Duration // 0 uses 10s
}

// Providers hands the configured tracer and meter to the rest of the
// application. A disabled signal gets a no-op implementation.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	closers []func(context.Context) error
}

// Shutdown flushes pending spans and metrics and closes the export files
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range p.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// InitTelemetry installs the OpenTelemetry providers selected by opts as the
// global providers. Exports go to JSON files under opts.Dir, never stdout.
func InitTelemetry(ctx context.Context, opts Options) (*Providers, error) {
	p := &Providers{
		Tracer: tracenoop.NewTracerProvider().Tracer(serviceName),
		Meter:  metricnoop.NewMeterProvider().Meter(serviceName),
	}
	if !opts.Traces && !opts.Metrics {
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	if opts.Traces {
		file := rotatingFile(opts.Dir, serviceName+"_traces.log")
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		p.Tracer = tp.Tracer(serviceName)
		p.closers = append(p.closers, closeAfter(tp.Shutdown, file))
	}

	if opts.Metrics {
		interval := opts.MetricInterval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		file := rotatingFile(opts.Dir, serviceName+"_metrics.log")
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(file))
		if err != nil {
			file.Close()
			p.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		p.Meter = mp.Meter(serviceName)
		p.closers = append(p.closers, closeAfter(mp.Shutdown, file))
	}

	return p, nil
}

// closeAfter shuts a provider down, then closes the file it exports to
func closeAfter(shutdown func(context.Context) error, file io.Closer) func(context.Context) error {
	return func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), file.Close())
	}
}
