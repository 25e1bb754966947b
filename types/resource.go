package types

import "time"

// Resource is a discovered cloud resource. The control plane only reads
// and classifies resources, it never mutates them.
type Resource struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Subscription string            `json:"subscription"`
	Region       string            `json:"region"`
	Name         string            `json:"name"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// Inventory is one subscription's discovery snapshot. Each discovery cycle
// writes a full replacement, never an incremental merge.
type Inventory struct {
	Subscription string     `json:"subscription"`
	Resources    []Resource `json:"resources"`
	ObservedAt   time.Time  `json:"observed_at"`
}

// RegionCounts returns the number of resources per region.
func (inv Inventory) RegionCounts() map[string]int {
	counts := make(map[string]int)
	for _, r := range inv.Resources {
		counts[r.Region]++
	}
	return counts
}
