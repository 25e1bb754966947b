// Package providers defines the cloud API contracts the control plane
// calls outward into: resource listing, log-routing configuration, and
// forwarder compute jobs. Each task holds only the contract its
// least-privilege identity permits.
package providers

import (
	"context"
	"fmt"

	"github.com/yairfalse/lfo/types"
)

// ResourceLister enumerates resources in one monitored subscription.
// Used by the discovery task with a reader-only identity.
type ResourceLister interface {
	ListResources(ctx context.Context, subscription string) ([]types.Resource, error)
}

// LogRoute is an existing log-routing configuration on a resource.
type LogRoute struct {
	Name        string
	Destination string
}

// LogRouter inspects and applies log-routing configurations. Used by the
// diagnostic settings task.
type LogRouter interface {
	// GetRoute returns the control plane's route on the resource, or nil
	// when none exists.
	GetRoute(ctx context.Context, res types.Resource) (*LogRoute, error)
	// EnsureRoute creates or updates the route so logs reach
	// destination. Must be idempotent.
	EnsureRoute(ctx context.Context, res types.Resource, destination string) error
}

// ForwarderUnit is one deployed forwarder compute job.
type ForwarderUnit struct {
	Name     string
	Region   string
	Replicas int
	Image    string
	ConfigID string
}

// ForwarderRuntime manages forwarder compute jobs. Used by the deployer
// task and once synchronously by the bootstrapper.
type ForwarderRuntime interface {
	ListUnits(ctx context.Context) ([]ForwarderUnit, error)
	CreateUnit(ctx context.Context, unit ForwarderUnit) error
	UpdateUnit(ctx context.Context, unit ForwarderUnit) error
	DeleteUnit(ctx context.Context, name string) error
}

// Config holds provider construction parameters.
type Config struct {
	Region      string
	Destination string
	// RouteName names the log routes owned by this control plane.
	RouteName string
	// Cluster and ExecutionRole locate the forwarder compute platform;
	// providers without those concepts ignore them.
	Cluster       string
	ExecutionRole string
}

// Factory creates a provider bundle by name.
type Factory func(ctx context.Context, cfg Config) (Bundle, error)

// Bundle groups the three contracts one cloud implementation provides.
type Bundle interface {
	Lister() ResourceLister
	Router() LogRouter
	Runtime() ForwarderRuntime
}

var factories = make(map[string]Factory)

// Register registers a provider factory under a name.
func Register(name string, factory Factory) {
	factories[name] = factory
}

// New creates a provider bundle by name.
func New(ctx context.Context, name string, cfg Config) (Bundle, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return factory(ctx, cfg)
}
