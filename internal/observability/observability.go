// Package observability configures process-wide logging.
//
// Logs always go to a local slog handler (text or JSON). When an exporter is
// configured, every record is also bridged into an OpenTelemetry log pipeline.
// OTLP exporters read their endpoint and headers from the standard
// OTEL_EXPORTER_OTLP_* environment variables.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/florianilch/socialauth"

// Log formats accepted by Instrument.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Log exporters accepted by Instrument. An empty exporter disables the OpenTelemetry pipeline.
const (
	ExporterNone     = ""
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Options configures Instrument.
type Options struct {
	Level    slog.Level
	Format   string
	Exporter string

	// Writer receives local log output. Defaults to os.Stderr.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the log pipeline.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger according to opts.
// The returned ShutdownFunc must be called before exit to flush exported logs.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	local, err := newLocalHandler(w, opts.Format, opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.Exporter == ExporterNone {
		slog.SetDefault(slog.New(local))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, opts.Exporter, w)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(provider)

	// Route internal OpenTelemetry errors to the local handler only.
	localLogger := slog.New(local)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		localLogger.Warn("opentelemetry error", "error", err)
	}))

	bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(fanout{local, bridge}))

	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutting down log provider: %w", err)
		}
		return nil
	}, nil
}

func newLocalHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatText, "":
		return slog.NewTextHandler(w, handlerOpts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, handlerOpts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, name string, w io.Writer) (sdklog.Exporter, error) {
	switch name {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", name)
	}
}

// severity maps a slog level onto the closest OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
