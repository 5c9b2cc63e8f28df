package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "sfincsrun/configs"
	"sfincsrun/pkg/logger"
	"sfincsrun/pkg/metrics"
	tracing "sfincsrun/pkg/observability"
	"sfincsrun/pkg/resilience"
	"sfincsrun/pkg/storage"
)

const serviceName = "sfincsrun"

var version = "dev"

var (
	logLevel    string
	logEncoding string
)

// application holds what every subcommand shares. It is set up once in the
// root command's PersistentPreRunE and torn down by main.
type application struct {
	cfg    *config.Config
	log    *zap.Logger
	tracer *tracing.Provider
	store  storage.ArtifactStore // nil when publishing is disabled
}

var app application

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "Run SFINCS models on native, Docker or Apptainer backends and package scenarios",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.open(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides SFINCSRUN_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logEncoding, "log-encoding", "", "Log encoding (console or json)")
}

func (a *application) open(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logEncoding != "" {
		cfg.LogEncoding = logEncoding
	}
	a.cfg = cfg

	lcfg := logger.DefaultConfig(serviceName)
	lcfg.Level = cfg.LogLevel
	lcfg.Encoding = cfg.LogEncoding
	if a.log, err = logger.Init(lcfg); err != nil {
		return err
	}

	a.tracer, err = tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.TracingEndpoint,
		Enabled:        cfg.TracingEnabled,
		SamplingRate:   cfg.TracingSampling,
	})
	if err != nil {
		a.log.Warn("Tracing disabled", zap.Error(err))
	}

	store, err := storage.New(ctx, cfg.Store)
	switch {
	case errors.Is(err, storage.ErrDisabled):
	case err != nil:
		return err
	default:
		bcfg := resilience.DefaultCircuitBreakerConfig()
		bcfg.FailureThreshold = cfg.PublishFailureThreshold
		bcfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
			a.log.Warn("Publisher circuit changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		a.store = storage.NewGuardedStore(store, resilience.NewCircuitBreaker("artifact-store", bcfg))
		a.log.Debug("Artifact publishing enabled", zap.String("kind", cfg.Store.Kind))
	}
	return nil
}

func (a *application) close() {
	if a.cfg == nil {
		return
	}
	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.log.Warn("Failed to write metrics", zap.String("path", a.cfg.MetricsFile), zap.Error(err))
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("Failed to flush traces", zap.Error(err))
		}
	}
}
