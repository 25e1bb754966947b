package types

import "time"

// DiagnosticState classifies the log-routing configuration of one resource.
type DiagnosticState string

const (
	// StateUnconfigured means no routing configuration exists yet.
	StateUnconfigured DiagnosticState = "unconfigured"
	// StateConfiguring means a routing configuration was created this
	// cycle and has not been observed back yet.
	StateConfiguring DiagnosticState = "configuring"
	// StateConfigured means routing exists and targets the expected
	// destination.
	StateConfigured DiagnosticState = "configured"
	// StateUnsupported means the platform cannot attach log routing to
	// this resource kind. Not an error.
	StateUnsupported DiagnosticState = "unsupported"
	// StateError means configuring the resource failed this cycle. The
	// next scheduled run retries it.
	StateError DiagnosticState = "error"
)

// DiagnosticStatus is the per-resource outcome of the diagnostic settings
// task.
type DiagnosticStatus struct {
	ResourceID  string          `json:"resource_id"`
	Kind        string          `json:"kind"`
	State       DiagnosticState `json:"state"`
	LastChecked time.Time       `json:"last_checked"`
	Error       string          `json:"error,omitempty"`
}

// DiagnosticReport holds one subscription's statuses, keyed by resource ID.
// Entries disappear only when the resource leaves the inventory.
type DiagnosticReport struct {
	Subscription string                      `json:"subscription"`
	Statuses     map[string]DiagnosticStatus `json:"statuses"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

// Configured reports whether the resource is already routed correctly.
func (s DiagnosticStatus) Configured() bool {
	return s.State == StateConfigured
}
