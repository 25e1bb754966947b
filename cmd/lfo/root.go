package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "lfo",
		Short: "Log Forwarding Orchestration control plane",
		Long: `LFO - Log Forwarding Orchestration

LFO keeps cloud-account log forwarding converged: it discovers
resources in the monitored subscriptions, reconciles their log-routing
configuration, decides how much forwarder capacity each region needs,
and deploys the forwarder fleet to match. Tasks coordinate only through
the shared cache and each one can be run on its own.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`LFO {{.Version}} - Log Forwarding Orchestration
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lfo.yaml", "Path to the control-plane config file")
}
