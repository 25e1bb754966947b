// Package deployer reconciles forwarder compute jobs toward the cached
// topology: create what is missing, fix what drifted, delete what the
// topology no longer wants.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/identity"
	"github.com/yairfalse/lfo/providers"
	"github.com/yairfalse/lfo/telemetry"
	"github.com/yairfalse/lfo/types"
)

// DefaultTimeout bounds one reconciliation pass. Compute APIs that hang
// past it leave the rest of the work to the next cycle.
const DefaultTimeout = 5 * time.Minute

// Action names one reconciliation step.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change is one applied (or attempted) reconciliation step.
type Change struct {
	Action  Action `json:"action"`
	Unit    string `json:"unit"`
	Region  string `json:"region,omitempty"`
	Retried bool   `json:"retried,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes one reconciliation pass.
type Report struct {
	Changes   []Change      `json:"changes"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Failed counts changes that did not stick after their retry.
func (r *Report) Failed() int {
	failed := 0
	for _, change := range r.Changes {
		if change.Error != "" {
			failed++
		}
	}
	return failed
}

// Task runs one deployer cycle.
type Task struct {
	cache   cache.Cache
	runtime providers.ForwarderRuntime
	id      identity.ID
	timeout time.Duration
	logger  *telemetry.Logger
	clock   func() time.Time
}

// NewTask creates a deployer task. The control-plane identity scopes
// which compute jobs the task considers its own; jobs outside the
// identity's name prefix are never touched.
func NewTask(c cache.Cache, runtime providers.ForwarderRuntime, id identity.ID, timeout time.Duration) *Task {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Task{
		cache:   c,
		runtime: runtime,
		id:      id,
		timeout: timeout,
		logger:  telemetry.NewLogger("deployer"),
		clock:   time.Now,
	}
}

// Run executes one cycle under the task's hard timeout. Individual
// changes get one retry; anything still failing is recorded in the
// report and retried by the next scheduled cycle, never within this
// one. Running twice against the same topology with no drift applies
// nothing the second time.
func (t *Task) Run(ctx context.Context) (*Report, error) {
	start := t.clock()
	t.logger.LogCycleStart(ctx, "deployer")

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var topology types.ForwarderTopology
	if err := cache.GetJSON(ctx, t.cache, cache.TopologyKey(), &topology); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			// Scaling has not decided yet.
			t.logger.LogCycleEnd(ctx, "deployer", msSince(start, t.clock), nil)
			return &Report{StartedAt: start, Duration: t.clock().Sub(start)}, nil
		}
		t.logger.LogCycleEnd(ctx, "deployer", msSince(start, t.clock), err)
		return nil, err
	}

	actual, err := t.runtime.ListUnits(ctx)
	if err != nil {
		err = fmt.Errorf("listing forwarder units: %w", err)
		t.logger.LogCycleEnd(ctx, "deployer", msSince(start, t.clock), err)
		return nil, err
	}

	report := &Report{StartedAt: start}
	for _, change := range t.diff(topology, actual) {
		report.Changes = append(report.Changes, t.apply(ctx, change))
	}

	report.Duration = t.clock().Sub(start)
	telemetry.CycleDuration.Record(ctx, float64(report.Duration.Milliseconds()))
	t.logger.LogCycleEnd(ctx, "deployer", float64(report.Duration.Milliseconds()), nil)

	if ctx.Err() != nil && report.Failed() > 0 {
		return report, fmt.Errorf("reconciliation cut short: %w", ctx.Err())
	}
	return report, nil
}

// plannedChange pairs a Change with the desired unit it applies.
type plannedChange struct {
	Change
	unit providers.ForwarderUnit
}

// diff computes the ordered change set. Creates come first so capacity
// arrives before stale capacity is taken away.
func (t *Task) diff(topology types.ForwarderTopology, actual []providers.ForwarderUnit) []plannedChange {
	existing := make(map[string]providers.ForwarderUnit, len(actual))
	for _, unit := range actual {
		if strings.HasPrefix(unit.Name, t.id.ForwarderJobPrefix()) {
			existing[unit.Name] = unit
		}
	}

	var creates, updates, deletes []plannedChange
	desired := make(map[string]bool, len(topology.Regions))
	for _, plan := range topology.Regions {
		unit := providers.ForwarderUnit{
			Name:     t.id.ForwarderJobName(plan.Region),
			Region:   plan.Region,
			Replicas: plan.Replicas,
			Image:    topology.Image,
			ConfigID: topology.ConfigID,
		}
		desired[unit.Name] = true

		current, ok := existing[unit.Name]
		switch {
		case !ok:
			creates = append(creates, plannedChange{
				Change: Change{Action: ActionCreate, Unit: unit.Name, Region: plan.Region},
				unit:   unit,
			})
		case current.Replicas != unit.Replicas || current.Image != unit.Image || current.ConfigID != unit.ConfigID:
			updates = append(updates, plannedChange{
				Change: Change{Action: ActionUpdate, Unit: unit.Name, Region: plan.Region},
				unit:   unit,
			})
		}
	}

	for name, unit := range existing {
		if !desired[name] {
			deletes = append(deletes, plannedChange{
				Change: Change{Action: ActionDelete, Unit: name, Region: unit.Region},
			})
		}
	}
	sortByUnit(creates)
	sortByUnit(updates)
	sortByUnit(deletes)

	changes := append(creates, updates...)
	return append(changes, deletes...)
}

func sortByUnit(changes []plannedChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Unit < changes[j].Unit
	})
}

// apply executes one change with a single retry.
func (t *Task) apply(ctx context.Context, change plannedChange) Change {
	err := t.applyOnce(ctx, change)
	if err != nil && ctx.Err() == nil {
		change.Retried = true
		err = t.applyOnce(ctx, change)
	}
	if err != nil {
		change.Error = err.Error()
		telemetry.DeployFailures.Add(ctx, 1)
		t.logger.WithContext(ctx).Error().
			Err(err).
			Str("action", string(change.Action)).
			Str("unit", change.Unit).
			Bool("retried", change.Retried).
			Msg("forwarder change failed")
		return change.Change
	}

	telemetry.DeployChanges.Add(ctx, 1)
	t.logger.WithContext(ctx).Info().
		Str("action", string(change.Action)).
		Str("unit", change.Unit).
		Msg("forwarder change applied")
	return change.Change
}

func (t *Task) applyOnce(ctx context.Context, change plannedChange) error {
	switch change.Action {
	case ActionCreate:
		return t.runtime.CreateUnit(ctx, change.unit)
	case ActionUpdate:
		return t.runtime.UpdateUnit(ctx, change.unit)
	case ActionDelete:
		return t.runtime.DeleteUnit(ctx, change.Unit)
	default:
		return fmt.Errorf("unknown action %q", change.Action)
	}
}

func msSince(start time.Time, clock func() time.Time) float64 {
	return float64(clock().Sub(start).Milliseconds())
}
