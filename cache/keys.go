package cache

// Task-owned key namespaces. A task only writes keys in its own namespace
// and only reads namespaces of tasks that logically precede it.
const (
	inventoryPrefix   = "inventory/"
	diagnosticsPrefix = "diagnostics/"
	topologyKey       = "topology"
	bootstrapMarker   = "bootstrap/marker"
)

// InventoryKey is the discovery task's snapshot key for one subscription.
func InventoryKey(subscription string) string {
	return inventoryPrefix + subscription
}

// InventoryPrefix lists all inventory snapshots.
func InventoryPrefix() string { return inventoryPrefix }

// DiagnosticsKey is the diagnostic settings task's status key for one
// subscription.
func DiagnosticsKey(subscription string) string {
	return diagnosticsPrefix + subscription
}

// DiagnosticsPrefix lists all diagnostic status records.
func DiagnosticsPrefix() string { return diagnosticsPrefix }

// TopologyKey holds the current desired forwarder topology.
func TopologyKey() string { return topologyKey }

// BootstrapMarkerKey records that the initial-run bootstrapper completed.
func BootstrapMarkerKey() string { return bootstrapMarker }
