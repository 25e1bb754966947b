package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/lfo/journal"
	"github.com/yairfalse/lfo/scheduler"
	"github.com/yairfalse/lfo/telemetry"
)

// journalRetention bounds how long daemon cycle journals are kept.
const journalRetention = 7 * 24 * time.Hour

// journaled wraps a task run so every daemon cycle lands in the audit
// journal.
func journaled(app *app, task string, run func(ctx context.Context) (any, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		report, err := run(ctx)
		if err != nil {
			_ = app.journal.RecordFailure(task, nil, err)
			return err
		}
		_ = app.journal.RecordCycle(task, report)
		return nil
	}
}

// daemonCmd runs all tasks on their schedules
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the control plane continuously",
	Long: `Run every task on its configured interval inside one process:
discovery, diagnostics, scaling, and the deployer, each on an
independent ticker, coordinating only through the shared cache.

Prometheus metrics are served on /metrics; a failing task cycle is
logged and retried on its next tick without taking the process down.
Shuts down gracefully on SIGTERM/SIGINT.`,
	Example: `  lfo daemon
  lfo daemon --config /etc/lfo/lfo.yaml`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
			ServiceName:    "lfo",
			ServiceVersion: version,
			OTELEndpoint:   app.cfg.Telemetry.OTLPEndpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	fmt.Printf("starting lfo control plane %s\n", app.id)
	fmt.Printf("   subscriptions: %d\n", len(app.subscriptions))
	fmt.Printf("   cache backend: %s\n", app.cfg.Cache.Backend)
	fmt.Printf("   metrics: %s\n", app.cfg.Telemetry.MetricsAddr)

	if err := journal.Cleanup(filepath.Join(app.cfg.Cache.Path, "journal"), journalRetention); err != nil {
		fmt.Printf("journal cleanup failed: %v\n", err)
	}

	intervals := app.cfg.Intervals
	jobs := []scheduler.Job{
		{Name: "discovery", Interval: intervals.Discovery.Std(), Run: journaled(app, "discovery", func(ctx context.Context) (any, error) {
			return app.discoveryTask().Run(ctx)
		})},
		{Name: "diagnostics", Interval: intervals.Diagnostics.Std(), Run: journaled(app, "diagnostics", func(ctx context.Context) (any, error) {
			return app.diagnosticsTask().Run(ctx)
		})},
		{Name: "scaling", Interval: intervals.Scaling.Std(), Run: journaled(app, "scaling", func(ctx context.Context) (any, error) {
			return app.scalingTask().Run(ctx)
		})},
		{Name: "deployer", Interval: intervals.Deployer.Std(), Run: journaled(app, "deployer", func(ctx context.Context) (any, error) {
			return app.deployerTask(0).Run(ctx)
		})},
	}

	return scheduler.New(jobs, app.cfg.Telemetry.MetricsAddr).Start(ctx)
}
