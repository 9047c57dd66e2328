package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/procwatch/procwatchd/internal/childmonitor"
	"github.com/procwatch/procwatchd/internal/config"
	"github.com/procwatch/procwatchd/internal/faultbarrier"
	"github.com/procwatch/procwatchd/internal/logger"
	"github.com/procwatch/procwatchd/internal/metrics"
	"github.com/procwatch/procwatchd/internal/registry"
	"github.com/procwatch/procwatchd/internal/shutdown"
	"github.com/procwatch/procwatchd/internal/tracing"
)

const statusReportInterval = 5 * time.Second

var (
	logLevel    string
	logFormat   string
	metricsAddr string

	tracingEnabled  bool
	tracingExporter string
	tracingEndpoint string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon in the foreground",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text|json")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the /metrics and /healthz endpoints bind to")
	serveCmd.Flags().BoolVar(&tracingEnabled, "tracing", false, "enable OpenTelemetry tracing")
	serveCmd.Flags().StringVar(&tracingExporter, "tracing-exporter", "stdout", "trace exporter: otlp-grpc|stdout")
	serveCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP endpoint when --tracing-exporter=otlp-grpc")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.New(logLevel, logFormat)
	slog.SetDefault(log)

	specs, err := loadSpecs(log)
	if err != nil {
		log.Error("fatal: config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	tracingProvider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     tracingEnabled,
		Exporter:    tracingExporter,
		Endpoint:    tracingEndpoint,
		ServiceName: "procwatchd",
		Version:     version,
		SampleRate:  1.0,
	}, log)
	if err != nil {
		log.Error("fatal: tracing init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracingProvider.Shutdown(shutdownCtx)
	}()

	promReg := prometheus.NewRegistry()
	collector := metrics.New(promReg)
	metricsServer := metrics.NewServer(metricsAddr, promReg, log)
	if err := metricsServer.Start(); err != nil {
		log.Error("fatal: metrics server failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	reg := registry.New(log, collector)

	if err := faultbarrier.Install(log, collector); err != nil {
		log.Error("fatal: host exception filter install failed", "error", err)
		os.Exit(1)
	}
	defer faultbarrier.Uninstall()

	spawner := childmonitor.NewSpawner(reg, log, collector, tracingProvider)
	for _, spec := range specs {
		if _, err := spawner.Spawn(spec); err != nil {
			log.Error("failed to register worker", "worker", spec.Name, "error", err)
		}
	}

	controller := shutdown.New(log, tracingProvider)
	mainDone := make(chan struct{})
	controller.Listen(mainDone)
	defer controller.Stop()

	log.Info("procwatchd started", "version", version, "pid", os.Getpid(), "workers", len(specs))

	runMainLoop(reg, collector, controller)
	close(mainDone)

	log.Info("stopping all workers")
	if err := reg.StopAll(); err != nil {
		log.Error("error stopping workers", "error", err)
	}

	if controller.Mode() == shutdown.ModeForced {
		os.Exit(1)
	}
	return nil
}

// runMainLoop polls the registry on statusReportInterval until shutdown is
// requested, publishing worker gauges each tick.
func runMainLoop(reg *registry.Registry, collector *metrics.Collector, controller *shutdown.Controller) {
	states := []string{
		string(registry.StatusCreated),
		string(registry.StatusRestarting),
		string(registry.StatusStopped),
		string(registry.StatusFailed),
	}

	ticker := time.NewTicker(statusReportInterval)
	defer ticker.Stop()

	for {
		if controller.IsShutdownRequested() {
			return
		}
		for _, info := range reg.List() {
			collector.SetWorkerState(info.Name, string(info.Status), states)
			collector.SetWorkerUp(info.Name, info.Status == registry.StatusCreated)
		}
		<-ticker.C
	}
}

func loadSpecs(log *slog.Logger) ([]config.ProcessSpec, error) {
	specs, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfgFile, err)
	}
	for _, spec := range specs {
		if err := config.Validate(spec); err != nil {
			log.Warn("worker will fail on spawn until fixed", "worker", spec.Name, "error", err)
		}
	}
	return specs, nil
}
