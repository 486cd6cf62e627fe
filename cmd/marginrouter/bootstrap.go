package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fd1az/margin-router/business/trade"
	"github.com/fd1az/margin-router/internal/apm"
	"github.com/fd1az/margin-router/internal/config"
	"github.com/fd1az/margin-router/internal/health"
	"github.com/fd1az/margin-router/internal/logger"
	"github.com/fd1az/margin-router/internal/monolith"
)

// runtime is a started application.
type runtime struct {
	cfg    *config.Config
	log    *logger.Logger
	mono   *monolith.App
	tracer apm.TraceProvider
	// health is only set for serve.
	health *health.Server
}

// bootstrap loads configuration, installs tracing and starts the trade
// module. withHealth creates the probe server for long-running commands.
func bootstrap(ctx context.Context, flags *globalFlags, withHealth bool) (*runtime, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	tracer := apm.NewEmptyTraceProvider()
	if cfg.Telemetry.Enabled {
		tracer = apm.NewTraceProvider(apm.Config{
			Provider:    apm.Provider(cfg.Telemetry.TraceExporter),
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Headers:     cfg.Telemetry.OTLPHeaders,
			ServiceName: cfg.Telemetry.ServiceName,
		}, log)
	}

	var hs *health.Server
	if withHealth {
		hs = health.NewServer(cfg.Server.HealthPort, version)
	}

	mono, err := monolith.New(ctx, cfg, log, hs)
	if err != nil {
		tracer.Stop()
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}

	if err := mono.Run(ctx, &trade.Module{}); err != nil {
		mono.Close()
		tracer.Stop()
		return nil, err
	}

	return &runtime{cfg: cfg, log: log, mono: mono, tracer: tracer, health: hs}, nil
}

// Close runs the module close hooks, releases the RPC connection and
// flushes spans.
func (r *runtime) Close() {
	r.mono.Close()
	if err := r.tracer.Stop(); err != nil {
		r.log.Warn(context.Background(), "failed to stop tracer", "error", err)
	}
}
