package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var deployTimeout time.Duration

// deployCmd runs one deployer reconciliation
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Reconcile forwarder jobs toward the stored topology",
	Long: `Compare running forwarder compute jobs against the stored topology
and converge: create missing jobs, fix image/config/scale drift, and
delete jobs the topology no longer wants. Each change gets one retry;
whatever still fails is left for the next scheduled run.`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().DurationVar(&deployTimeout, "timeout", 0, "Hard bound for this pass (default 5m)")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.deployerTask(deployTimeout).Run(cmd.Context())
	if err != nil {
		_ = app.journal.RecordFailure("deployer", report, err)
		return err
	}
	_ = app.journal.RecordCycle("deployer", report)

	if len(report.Changes) == 0 {
		fmt.Println("forwarder fleet already converged")
		return nil
	}
	for _, change := range report.Changes {
		if change.Error != "" {
			fmt.Printf("  %s %s: FAILED: %s\n", change.Action, change.Unit, change.Error)
			continue
		}
		fmt.Printf("  %s %s\n", change.Action, change.Unit)
	}
	fmt.Printf("deploy finished in %s (%d change(s), %d failed)\n",
		report.Duration.Round(reportPrecision), len(report.Changes), report.Failed())
	return nil
}
