// Package bootstrap seeds the shared cache on a control plane's first
// run so the scheduled tasks start from well-formed state instead of
// missing keys.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/deployer"
	"github.com/yairfalse/lfo/telemetry"
	"github.com/yairfalse/lfo/types"
)

// DefaultTimeout is deliberately long: the first deployer pass may
// create every forwarder from scratch.
const DefaultTimeout = 30 * time.Minute

// Marker is written once bootstrap finishes. Its presence makes
// re-entry a no-op.
type Marker struct {
	CompletedAt   time.Time `json:"completed_at"`
	Subscriptions []string  `json:"subscriptions"`
}

// Report says what bootstrap did.
type Report struct {
	AlreadyDone      bool     `json:"already_done"`
	SeededInventory  []string `json:"seeded_inventory,omitempty"`
	SeededTopology   bool     `json:"seeded_topology,omitempty"`
	DeployerChanges  int      `json:"deployer_changes"`
	DeployerFailures int      `json:"deployer_failures"`
}

// forwarderDeployer is the one deployer operation bootstrap needs.
type forwarderDeployer interface {
	Run(ctx context.Context) (*deployer.Report, error)
}

// Bootstrapper performs the one-shot initial run.
type Bootstrapper struct {
	cache         cache.Cache
	deploy        forwarderDeployer
	subscriptions []string
	image         string
	configID      string
	timeout       time.Duration
	logger        *telemetry.Logger
	clock         func() time.Time
}

// New creates a bootstrapper. deploy should be a deployer task built
// with a bootstrap-length timeout.
func New(c cache.Cache, deploy forwarderDeployer, subscriptions []string, image, configID string, timeout time.Duration) *Bootstrapper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bootstrapper{
		cache:         c,
		deploy:        deploy,
		subscriptions: subscriptions,
		image:         image,
		configID:      configID,
		timeout:       timeout,
		logger:        telemetry.NewLogger("bootstrap"),
		clock:         time.Now,
	}
}

// Run seeds missing state, runs one synchronous deployer pass, and
// writes the completion marker. Seeded keys are written only when
// absent, so a crashed bootstrap can simply be run again; a marker from
// a completed bootstrap short-circuits the whole thing.
func (b *Bootstrapper) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var marker Marker
	err := cache.GetJSON(ctx, b.cache, cache.BootstrapMarkerKey(), &marker)
	switch {
	case err == nil:
		b.logger.WithContext(ctx).Info().
			Time("completed_at", marker.CompletedAt).
			Msg("bootstrap already completed")
		return &Report{AlreadyDone: true}, nil
	case errors.Is(err, cache.ErrNotFound):
		// First run.
	default:
		return nil, err
	}

	report := &Report{}
	now := b.clock()

	for _, sub := range b.subscriptions {
		seeded, err := b.seedInventory(ctx, sub, now)
		if err != nil {
			return nil, err
		}
		if seeded {
			report.SeededInventory = append(report.SeededInventory, sub)
		}
	}

	seeded, err := b.seedTopology(ctx, now)
	if err != nil {
		return nil, err
	}
	report.SeededTopology = seeded

	deployReport, err := b.deploy.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial deployer pass: %w", err)
	}
	report.DeployerChanges = len(deployReport.Changes)
	report.DeployerFailures = deployReport.Failed()
	if report.DeployerFailures > 0 {
		// Leave the marker unwritten so the next attempt redoes the
		// pass instead of waiting a full deployer interval.
		return report, errors.New("initial deployer pass left failures")
	}

	marker = Marker{CompletedAt: b.clock(), Subscriptions: b.subscriptions}
	if err := cache.PutJSON(ctx, b.cache, cache.BootstrapMarkerKey(), marker); err != nil {
		return nil, err
	}

	b.logger.WithContext(ctx).Info().
		Strs("seeded_inventory", report.SeededInventory).
		Bool("seeded_topology", report.SeededTopology).
		Int("deployer_changes", report.DeployerChanges).
		Msg("bootstrap completed")
	return report, nil
}

func (b *Bootstrapper) seedInventory(ctx context.Context, sub string, now time.Time) (bool, error) {
	key := cache.InventoryKey(sub)
	if _, err := b.cache.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		return false, err
	}

	inv := types.Inventory{Subscription: sub, ObservedAt: now}
	if err := cache.PutJSON(ctx, b.cache, key, inv); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Bootstrapper) seedTopology(ctx context.Context, now time.Time) (bool, error) {
	if _, err := b.cache.Get(ctx, cache.TopologyKey()); err == nil {
		return false, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		return false, err
	}

	topology := types.ForwarderTopology{
		Image:      b.image,
		ConfigID:   b.configID,
		ComputedAt: now,
	}
	if err := cache.PutJSON(ctx, b.cache, cache.TopologyKey(), topology); err != nil {
		return false, err
	}
	return true, nil
}
