package types

import (
	"sort"
	"time"
)

// RegionPlan is the desired forwarder capacity for one source region.
type RegionPlan struct {
	Region   string `json:"region"`
	Replicas int    `json:"replicas"`
}

// ForwarderTopology is the desired state the deployer reconciles toward.
// Each scaling cycle writes a full replacement that supersedes the prior
// decision.
type ForwarderTopology struct {
	Regions    []RegionPlan `json:"regions"`
	Image      string       `json:"image"`
	ConfigID   string       `json:"config_id"`
	ComputedAt time.Time    `json:"computed_at"`
}

// TotalReplicas sums desired replicas across all regions.
func (t ForwarderTopology) TotalReplicas() int {
	total := 0
	for _, r := range t.Regions {
		total += r.Replicas
	}
	return total
}

// Plan returns the plan for a region, if the region is in the topology.
func (t ForwarderTopology) Plan(region string) (RegionPlan, bool) {
	for _, r := range t.Regions {
		if r.Region == region {
			return r, true
		}
	}
	return RegionPlan{}, false
}

// Sort orders regions by name so serialized topologies compare stably.
func (t *ForwarderTopology) Sort() {
	sort.Slice(t.Regions, func(i, j int) bool {
		return t.Regions[i].Region < t.Regions[j].Region
	})
}
