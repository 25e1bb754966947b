package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// scaleCmd runs one scaling decision
var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Compute and store the desired forwarder topology",
	Long: `Read every inventory snapshot from the shared cache, compute how
much forwarder capacity each source region needs, and replace the
stored topology. No cloud API is touched; the deployer applies the
result on its own schedule.`,
	RunE: runScale,
}

func init() {
	rootCmd.AddCommand(scaleCmd)
}

func runScale(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	topology, err := app.scalingTask().Run(cmd.Context())
	if err != nil {
		_ = app.journal.RecordFailure("scaling", nil, err)
		return err
	}
	_ = app.journal.RecordCycle("scaling", topology)

	if len(topology.Regions) == 0 {
		fmt.Println("no in-scope resources; topology is empty")
		return nil
	}
	for _, plan := range topology.Regions {
		fmt.Printf("  %s: %d replica(s)\n", plan.Region, plan.Replicas)
	}
	fmt.Printf("topology: %d region(s), %d replica(s) total, image %s\n",
		len(topology.Regions), topology.TotalReplicas(), topology.Image)
	return nil
}
