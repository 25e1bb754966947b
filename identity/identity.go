// Package identity derives the stable control-plane identifier that names
// every piece of control-plane infrastructure. Re-running the installer
// against the same inputs reconciles in place instead of creating
// duplicates, so the derivation must be pure and stable across processes.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is the opaque control-plane identifier: 12 lowercase hex characters
// taken from a name-based UUID of the input tuple.
type ID string

// Derive computes the control-plane identity from the management scope,
// control-plane subscription, resource group, and region. Same inputs
// always yield the same ID.
func Derive(scope, subscriptionID, resourceGroup, region string) (ID, error) {
	for name, v := range map[string]string{
		"scope":          scope,
		"subscription":   subscriptionID,
		"resource group": resourceGroup,
		"region":         region,
	} {
		if v == "" {
			return "", &InvalidInputError{Field: name}
		}
	}

	combined := scope + subscriptionID + resourceGroup + region
	guid := uuid.NewSHA1(uuid.Nil, []byte(combined)).String()

	// First 12 hex chars, dash dropped.
	return ID(guid[:8] + guid[9:13]), nil
}

// InvalidInputError reports a missing identity input. Surfaced before any
// provisioning happens.
type InvalidInputError struct {
	Field string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("identity: %s must not be empty", e.Field)
}

// CacheNamespace is the cache container name for this control plane.
// Each control-plane instance gets its own namespace so instances never
// collide on shared storage.
func (id ID) CacheNamespace() string {
	return "lfo-cache-" + string(id)
}

// StorageName is the durable store name, kept to lowercase alphanumerics
// for cloud storage naming rules.
func (id ID) StorageName() string {
	return "lfostorage" + string(id)
}

// TaskName names one of the scheduled control-plane tasks.
func (id ID) TaskName(task string) string {
	return fmt.Sprintf("%s-task-%s", task, id)
}

// ForwarderJobName names the forwarder compute unit serving one source
// region.
func (id ID) ForwarderJobName(region string) string {
	return fmt.Sprintf("lfo-forwarder-%s-%s", id, region)
}

// ForwarderJobPrefix is the common prefix of all forwarder units owned by
// this control plane. The deployer only touches units under it.
func (id ID) ForwarderJobPrefix() string {
	return fmt.Sprintf("lfo-forwarder-%s-", id)
}

// RouteName names the log routes this control plane owns on monitored
// resources.
func (id ID) RouteName() string {
	return "lfo-route-" + string(id)
}

// EnvironmentName names the compute environment hosting forwarder units.
func (id ID) EnvironmentName(region string) string {
	return fmt.Sprintf("lfo-forwarder-env-%s-%s", id, region)
}
