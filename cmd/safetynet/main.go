// Command safetynet serves the emergency dispatch queries and record
// management endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"safetynet/internal/config"
	"safetynet/internal/core"
	"safetynet/internal/httpapi"
	"safetynet/internal/infra/blob/s3"
	redisstore "safetynet/internal/infra/persistence/redis"
	"safetynet/internal/logging"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "safetynet:", err)
		exitFunc(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("safetynet", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (defaults to $SAFETYNET_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.close(logger)

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := a.server.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// app holds everything main starts and must release.
type app struct {
	server  *echo.Echo
	store   core.PersistentStore
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	store, err := core.OpenPersistentStore(ctx, storageConfig(cfg.Storage), nil)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a := &app{store: store}

	opts := []core.Option{core.WithLogger(core.NewZapLogger(logger.Named("service")))}
	handlerOpts := []httpapi.Option{httpapi.WithStorageName(cfg.Storage.Driver)}
	switch cfg.Metrics.Backend {
	case "prometheus":
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
		handlerOpts = append(handlerOpts, httpapi.WithGatherer(gatherer))
	case "expvar":
		opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("safetynet_service_metrics")))
	}

	tracer, err := a.tracer(ctx, cfg.Trace)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	opts = append(opts, core.WithTracer(tracer), core.WithAuditRecorder(auditLogger{logger: logger.Named("audit")}))

	svc := core.NewService(store, opts...)
	a.server = httpapi.NewServer(httpapi.NewHandler(svc, logger.Named("http"), handlerOpts...))
	return a, nil
}

func (a *app) tracer(ctx context.Context, cfg config.Trace) (core.Tracer, error) {
	tracers := core.MultiTracer{}
	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		a.closers = append(a.closers, tp.Shutdown)
		tracers = append(tracers, core.NewOTelTracer(tp))
	}
	if cfg.File != "" {
		// #nosec G304 -- operator-supplied path
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, closerFunc(f))
		tracers = append(tracers, core.NewJSONTracer(f))
	}
	return tracers, nil
}

func closerFunc(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

func (a *app) close(logger *zap.Logger) {
	ctx := context.Background()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("close store", zap.Error(err))
	}
}

func storageConfig(s config.Storage) core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(s.Driver),
		DataPath:    s.DataPath,
		SeedPath:    s.SeedPath,
		SQLitePath:  s.SQLitePath,
		PostgresDSN: s.PostgresDSN,
		Redis: redisstore.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Key:      s.Redis.Key,
		},
		S3: s3.Config{
			Region:          s.S3.Region,
			Bucket:          s.S3.Bucket,
			Endpoint:        s.S3.Endpoint,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
			PathStyle:       s.S3.PathStyle,
		},
		S3Key: s.S3.Key,
	}
}

// auditLogger writes audit entries to a dedicated zap logger.
type auditLogger struct{ logger *zap.Logger }

func (a auditLogger) Record(_ context.Context, e core.AuditEntry) {
	a.logger.Info("mutation",
		zap.String("operation", e.Operation),
		zap.String("entity", string(e.Entity)),
		zap.String("action", string(e.Action)),
		zap.String("key", e.Key),
		zap.String("status", string(e.Status)),
		zap.String("error", e.Error),
		zap.Duration("duration", e.Duration),
		zap.Time("at", e.Timestamp),
	)
}
