package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const reportPrecision = 10 * time.Millisecond

// diagnosticsCmd runs one diagnostic settings cycle
var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Run one diagnostic settings cycle",
	Long: `Reconcile log routing for every inventoried resource whose kind
supports it. Unsupported kinds are recorded and skipped; a resource
that fails to configure is retried on the next scheduled run.`,
	RunE: runDiagnostics,
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.diagnosticsTask().Run(cmd.Context())
	if err != nil {
		_ = app.journal.RecordFailure("diagnostics", nil, err)
		return err
	}
	_ = app.journal.RecordCycle("diagnostics", report)

	for sub, result := range report.Subscriptions {
		if result.Error != "" {
			fmt.Printf("  %s: FAILED: %s\n", sub, result.Error)
			continue
		}
		fmt.Printf("  %s: %d checked, %d configured, %d configuring, %d unsupported, %d errors\n",
			sub, result.Checked, result.Configured, result.Configuring, result.Unsupported, result.Errors)
	}
	fmt.Printf("diagnostics finished in %s\n", report.Duration.Round(reportPrecision))
	return nil
}
