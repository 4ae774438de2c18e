package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"sysotel-agent/internal/collector"
	"sysotel-agent/internal/config"
	"sysotel-agent/internal/envdetect"
	"sysotel-agent/internal/export"
	"sysotel-agent/internal/strategy"
	"sysotel-agent/internal/transform"
)

type Agent struct {
	cfg          config.Config
	logger       *slog.Logger
	detection    envdetect.DetectionResult
	orchestrator *collector.Orchestrator
	exporter     *export.BatchExporter
	health       *HealthStatus
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	detector := envdetect.NewDetector(logger)
	if cfg.ForceEnvironment != "" {
		detector.ForceEnvironment(envdetect.EnvironmentType(cfg.ForceEnvironment))
	}
	detection := detector.Detect(false)

	strat := strategy.ForEnvironment(detection, logger)

	names := cfg.Collectors
	if len(names) == 0 {
		names = collector.DefaultNames(detection.Type)
	}
	labels := map[string]string{
		"host_name":   cfg.Hostname,
		"instance":    cfg.NodeID,
		"environment": string(detection.Type),
	}
	if id, ok := detection.Metadata["container_id"]; ok {
		labels["container_id"] = id
	}
	collectors, err := collector.Build(names, strat, labels)
	if err != nil {
		return nil, fmt.Errorf("build collectors: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.AgentVersion),
		semconv.ServiceInstanceID(cfg.NodeID),
		semconv.HostName(cfg.Hostname),
		attribute.String("system.environment.type", string(detection.Type)),
	)
	scope := instrumentation.Scope{Name: config.ServiceName, Version: config.AgentVersion}

	otlp, err := export.NewOTLPClient(ctx, export.OTLPOptions{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
		Headers:  cfg.OTLPHeaders,
		TLS:      tlsCfg,
		Timeout:  cfg.OTLPTimeout,
	}, res, scope)
	if err != nil {
		return nil, fmt.Errorf("otlp client: %w", err)
	}

	batch := export.NewBatchExporter(logger, otlp, cfg.QueueSize, cfg.BatchSize, cfg.FlushTimeout)
	pipeline := transform.NewPipeline(cfg.TransformEnabled, logger)
	orchestrator := collector.NewOrchestrator(logger, collectors, pipeline, batch,
		cfg.CollectionInterval, cfg.CollectorErrorBackoff)

	return &Agent{
		cfg:          cfg,
		logger:       logger,
		detection:    detection,
		orchestrator: orchestrator,
		exporter:     batch,
		health:       NewHealthStatus(detection, orchestrator, batch),
	}, nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting sysotel-agent",
		"node_id", a.cfg.NodeID,
		"environment", string(a.detection.Type),
		"confidence", fmt.Sprintf("%.2f", a.detection.Confidence),
		"otlp_endpoint", a.cfg.OTLPEndpoint)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown",
			"signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("sysotel-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
