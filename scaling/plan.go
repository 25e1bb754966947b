// Package scaling turns cached inventories into a forwarder topology:
// which regions need forwarders and how many replicas each gets.
package scaling

import (
	"sort"

	"github.com/yairfalse/lfo/types"
)

// Options bound the topology so one noisy subscription cannot fan the
// fleet out indefinitely.
type Options struct {
	// MaxRegions caps how many source regions get forwarders. The
	// most-populated regions win.
	MaxRegions int
	// ResourcesPerReplica is how many in-scope resources one replica
	// serves before another is added.
	ResourcesPerReplica int
	// MaxReplicasPerRegion caps replicas in a single region.
	MaxReplicasPerRegion int
}

// DefaultOptions are the shipped bounds.
func DefaultOptions() Options {
	return Options{
		MaxRegions:           4,
		ResourcesPerReplica:  50,
		MaxReplicasPerRegion: 10,
	}
}

// Plan computes per-region forwarder capacity from the inventories. It
// is a pure function: same inventories, same plan. Any region with at
// least one in-scope resource gets at least one replica; replicas grow
// with resource count and never shrink below what a smaller inventory
// of the same shape would get.
func Plan(inventories []types.Inventory, opts Options) []types.RegionPlan {
	counts := make(map[string]int)
	for _, inv := range inventories {
		for region, n := range inv.RegionCounts() {
			counts[region] += n
		}
	}
	if len(counts) == 0 {
		return nil
	}

	regions := make([]string, 0, len(counts))
	for region := range counts {
		regions = append(regions, region)
	}
	// Most populated first; names break ties so the cut at MaxRegions
	// is deterministic.
	sort.Slice(regions, func(i, j int) bool {
		if counts[regions[i]] != counts[regions[j]] {
			return counts[regions[i]] > counts[regions[j]]
		}
		return regions[i] < regions[j]
	})
	if opts.MaxRegions > 0 && len(regions) > opts.MaxRegions {
		regions = regions[:opts.MaxRegions]
	}

	// Plans come back most-populated first; the task sorts the final
	// topology by region name before serializing it.
	plans := make([]types.RegionPlan, 0, len(regions))
	for _, region := range regions {
		plans = append(plans, types.RegionPlan{
			Region:   region,
			Replicas: replicasFor(counts[region], opts),
		})
	}
	return plans
}

func replicasFor(resources int, opts Options) int {
	per := opts.ResourcesPerReplica
	if per <= 0 {
		per = DefaultOptions().ResourcesPerReplica
	}
	replicas := (resources + per - 1) / per
	if replicas < 1 {
		replicas = 1
	}
	if opts.MaxReplicasPerRegion > 0 && replicas > opts.MaxReplicasPerRegion {
		replicas = opts.MaxReplicasPerRegion
	}
	return replicas
}
