package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yairfalse/lfo/bootstrap"
	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/types"
)

// statusCmd prints the cached control-plane state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached control-plane state",
	Long: `Print what the shared cache currently says: inventory snapshot
sizes, diagnostic configuration counts, the stored topology, and
whether bootstrap has completed. Reads only the cache; no cloud API is
touched.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()

	fmt.Printf("control plane %s\n\n", app.id)

	var marker bootstrap.Marker
	switch err := cache.GetJSON(ctx, app.store, cache.BootstrapMarkerKey(), &marker); {
	case err == nil:
		fmt.Printf("bootstrap: completed %s\n", marker.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	case errors.Is(err, cache.ErrNotFound):
		fmt.Println("bootstrap: not run")
	default:
		return err
	}

	entries, err := app.store.List(ctx, cache.InventoryPrefix())
	if err != nil {
		return err
	}
	inventoried := make(map[string]int)
	fmt.Printf("\ninventories (%d):\n", len(entries))
	for _, entry := range entries {
		sub := strings.TrimPrefix(entry.Key, cache.InventoryPrefix())
		var inv types.Inventory
		if err := cache.GetJSON(ctx, app.store, entry.Key, &inv); err != nil {
			fmt.Printf("  %s: unreadable: %v\n", sub, err)
			continue
		}
		inventoried[sub] = len(inv.Resources)
		fmt.Printf("  %s: %d resource(s), observed %s\n",
			sub, len(inv.Resources), inv.ObservedAt.Format("2006-01-02 15:04:05 MST"))
	}

	reports, err := app.store.List(ctx, cache.DiagnosticsPrefix())
	if err != nil {
		return err
	}
	fmt.Printf("\ndiagnostics (%d):\n", len(reports))
	for _, entry := range reports {
		sub := strings.TrimPrefix(entry.Key, cache.DiagnosticsPrefix())
		var report types.DiagnosticReport
		if err := cache.GetJSON(ctx, app.store, entry.Key, &report); err != nil {
			fmt.Printf("  %s: unreadable: %v\n", sub, err)
			continue
		}
		counts := make(map[types.DiagnosticState]int)
		for _, status := range report.Statuses {
			counts[status.State]++
		}
		// Inventoried resources the diagnostics task has not reconciled
		// yet are still unconfigured.
		if pending := inventoried[sub] - len(report.Statuses); pending > 0 {
			counts[types.StateUnconfigured] = pending
		}
		fmt.Printf("  %s: %d configured, %d configuring, %d unconfigured, %d unsupported, %d error\n",
			sub,
			counts[types.StateConfigured],
			counts[types.StateConfiguring],
			counts[types.StateUnconfigured],
			counts[types.StateUnsupported],
			counts[types.StateError])
	}

	var topology types.ForwarderTopology
	switch err := cache.GetJSON(ctx, app.store, cache.TopologyKey(), &topology); {
	case err == nil:
		fmt.Printf("\ntopology (computed %s):\n", topology.ComputedAt.Format("2006-01-02 15:04:05 MST"))
		for _, plan := range topology.Regions {
			fmt.Printf("  %s: %d replica(s)\n", plan.Region, plan.Replicas)
		}
		fmt.Printf("  image: %s, config: %s\n", topology.Image, topology.ConfigID)
	case errors.Is(err, cache.ErrNotFound):
		fmt.Println("\ntopology: not computed")
	default:
		return err
	}
	return nil
}
