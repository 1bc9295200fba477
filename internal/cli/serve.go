package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"media-catalog/internal/events"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
	"media-catalog/internal/scheduler"
	"media-catalog/internal/server"
	"media-catalog/internal/startup"
)

const statsInterval = 30 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var noInitialScan bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled rescans and the ops HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, !noInitialScan)
		},
	}

	cmd.Flags().BoolVar(&noInitialScan, "no-initial-scan", false, "Wait one interval before the first scheduled scan")
	return cmd
}

func runServe(parent context.Context, opts *options, runOnStart bool) error {
	startTime := time.Now()

	cfg, err := startup.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			startup.LogShutdownInitiated(sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	dbStart := time.Now()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	startup.LogDatabaseInit(cfg.DatabaseDriver, time.Since(dbStart))
	startup.LogDetectorInit(a.detector != nil, cfg.FaceDetector)

	if cfg.MetricsEnabled {
		metrics.InitializeMetrics()
	}
	collector := metrics.NewCollector(a.store, statsInterval)
	collector.Start()

	readyChecks := []server.Check{{Name: "database", Fn: a.store.Ping}}
	sinks := indexer.MultiSink{indexer.LogSink{}}
	var nc *events.NATSSink
	if cfg.NATSURL != "" {
		nc, err = events.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			collector.Stop()
			a.Close()
			return err
		}
		sinks = append(sinks, nc)
		readyChecks = append(readyChecks, server.Check{
			Name: "nats",
			Fn:   func(context.Context) error { return nc.Ping() },
		})
	}
	a.scanner.SetProgressSink(sinks)

	roots := cfg.AutoScanPaths
	if cfg.ScanInterval <= 0 {
		roots = nil
	}
	sched, err := scheduler.New(a.scanner, a.engine, scheduler.Config{
		Roots:           roots,
		ScanInterval:    cfg.ScanInterval,
		ClusterInterval: cfg.ClusterInterval,
		RunOnStart:      runOnStart,
	})
	if err != nil {
		collector.Stop()
		a.Close()
		return err
	}
	startup.LogSchedulerInit(roots, cfg.ScanInterval)
	sched.Start()

	srv := server.New(a.store, a.scanner, server.Config{
		Roots:          cfg.AutoScanPaths,
		MetricsEnabled: cfg.MetricsEnabled,
		ReadyChecks:    readyChecks,
	})
	startup.LogHTTPRoutes(srv.Router())
	startup.LogServerStarted(startup.ServerConfig{
		OpsPort:         cfg.OpsPort,
		MetricsEnabled:  cfg.MetricsEnabled,
		Roots:           roots,
		StartupDuration: time.Since(startTime),
	})

	runErr := srv.Run(ctx, ":"+cfg.OpsPort)
	if runErr != nil {
		logging.Error("Ops server error: %v", runErr)
	}

	startup.LogShutdownStep("Stopping scheduler")
	sched.Stop()
	startup.LogShutdownStepComplete("Scheduler stopped")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if nc != nil {
		startup.LogShutdownStep("Draining NATS connection")
		if err := nc.Close(); err != nil {
			logging.Warn("NATS drain error: %v", err)
		} else {
			startup.LogShutdownStepComplete("NATS connection closed")
		}
	}

	startup.LogShutdownStep("Closing catalog")
	if err := a.Close(); err != nil {
		logging.Warn("Catalog close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Catalog closed")
	}

	startup.LogShutdownComplete()
	return runErr
}
