package scaling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/telemetry"
	"github.com/yairfalse/lfo/types"
)

// Task runs one scaling cycle: read every inventory snapshot, compute
// the desired topology, and full-replace the topology key.
type Task struct {
	cache    cache.Cache
	image    string
	configID string
	opts     Options
	logger   *telemetry.Logger
	clock    func() time.Time
}

// NewTask creates a scaling task. image is the forwarder container image
// the topology pins; configID versions the forwarder configuration so
// the deployer can detect config drift.
func NewTask(c cache.Cache, image, configID string, opts Options) *Task {
	return &Task{
		cache:    c,
		image:    image,
		configID: configID,
		opts:     opts,
		logger:   telemetry.NewLogger("scaling"),
		clock:    time.Now,
	}
}

// Run executes one cycle. The decision is computed entirely from cached
// snapshots; no cloud API is touched. A cache outage aborts the cycle
// before the topology is replaced.
func (t *Task) Run(ctx context.Context) (*types.ForwarderTopology, error) {
	start := t.clock()
	t.logger.LogCycleStart(ctx, "scaling")

	entries, err := t.cache.List(ctx, cache.InventoryPrefix())
	if err != nil {
		t.logger.LogCycleEnd(ctx, "scaling", msSince(start, t.clock), err)
		return nil, err
	}

	inventories := make([]types.Inventory, 0, len(entries))
	for _, entry := range entries {
		var inv types.Inventory
		if err := json.Unmarshal(entry.Value, &inv); err != nil {
			// A corrupt snapshot is the discovery task's to repair on
			// its next cycle; scale on what is readable.
			t.logger.WithContext(ctx).Warn().
				Err(err).
				Str("key", entry.Key).
				Msg("skipping unreadable inventory snapshot")
			continue
		}
		inventories = append(inventories, inv)
	}

	topology := types.ForwarderTopology{
		Regions:    Plan(inventories, t.opts),
		Image:      t.image,
		ConfigID:   t.configID,
		ComputedAt: t.clock(),
	}
	// Serialized topologies are canonically region-ordered so two
	// cycles over the same inventories produce identical snapshots.
	topology.Sort()
	if err := cache.PutJSON(ctx, t.cache, cache.TopologyKey(), topology); err != nil {
		t.logger.LogCycleEnd(ctx, "scaling", msSince(start, t.clock), err)
		return nil, err
	}

	telemetry.ScaleDecisions.Add(ctx, 1)
	telemetry.DesiredReplicas.Record(ctx, int64(topology.TotalReplicas()))
	t.logger.WithContext(ctx).Info().
		Int("regions", len(topology.Regions)).
		Int("replicas", topology.TotalReplicas()).
		Msg("topology computed")
	t.logger.LogCycleEnd(ctx, "scaling", msSince(start, t.clock), nil)
	return &topology, nil
}

func msSince(start time.Time, clock func() time.Time) float64 {
	return float64(clock().Sub(start).Milliseconds())
}
