// Package diagnostics implements the diagnostic settings task: for every
// inventoried resource whose kind supports log routing, make sure a
// routing configuration exists and targets the forwarding destination.
package diagnostics

import (
	"context"
	"errors"
	"time"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/providers"
	"github.com/yairfalse/lfo/telemetry"
	"github.com/yairfalse/lfo/types"
)

// Task runs one reconciliation cycle over the cached inventories.
type Task struct {
	cache         cache.Cache
	routers       map[string]providers.LogRouter
	subscriptions []string
	destination   string
	logger        *telemetry.Logger
	clock         func() time.Time
}

// SubscriptionResult is the per-subscription outcome of a cycle.
type SubscriptionResult struct {
	Checked     int    `json:"checked"`
	Configured  int    `json:"configured"`
	Configuring int    `json:"configuring"`
	Unsupported int    `json:"unsupported"`
	Errors      int    `json:"errors"`
	Error       string `json:"error,omitempty"`
}

// Report is the cycle outcome across all subscriptions.
type Report struct {
	Subscriptions map[string]SubscriptionResult `json:"subscriptions"`
	StartedAt     time.Time                     `json:"started_at"`
	Duration      time.Duration                 `json:"duration"`
}

// NewTask creates a diagnostic settings task. routers maps each
// monitored subscription to the writer-scoped router allowed to touch
// it; destination is where routed logs land.
func NewTask(c cache.Cache, routers map[string]providers.LogRouter, subscriptions []string, destination string) *Task {
	return &Task{
		cache:         c,
		routers:       routers,
		subscriptions: subscriptions,
		destination:   destination,
		logger:        telemetry.NewLogger("diagnostics"),
		clock:         time.Now,
	}
}

// Run executes one cycle. Each resource fails alone: a cloud error on
// one marks it state error and moves on. Only a cache outage aborts the
// cycle, before any partial report is written.
func (t *Task) Run(ctx context.Context) (*Report, error) {
	start := t.clock()
	t.logger.LogCycleStart(ctx, "diagnostics")

	report := &Report{
		Subscriptions: make(map[string]SubscriptionResult, len(t.subscriptions)),
		StartedAt:     start,
	}

	for _, sub := range t.subscriptions {
		result, err := t.reconcileSubscription(ctx, sub)
		if err != nil {
			if errors.Is(err, cache.ErrUnavailable) {
				t.logger.LogCycleEnd(ctx, "diagnostics", msSince(start, t.clock), err)
				return nil, err
			}
			result = SubscriptionResult{Error: err.Error()}
			t.logger.WithContext(ctx).Error().
				Err(err).
				Str("subscription", sub).
				Msg("subscription reconciliation failed")
		}
		report.Subscriptions[sub] = result
	}

	report.Duration = t.clock().Sub(start)
	telemetry.CycleDuration.Record(ctx, float64(report.Duration.Milliseconds()))
	t.logger.LogCycleEnd(ctx, "diagnostics", float64(report.Duration.Milliseconds()), nil)
	return report, nil
}

func (t *Task) reconcileSubscription(ctx context.Context, sub string) (SubscriptionResult, error) {
	router, ok := t.routers[sub]
	if !ok {
		return SubscriptionResult{}, errors.New("no router configured for subscription")
	}

	var inventory types.Inventory
	if err := cache.GetJSON(ctx, t.cache, cache.InventoryKey(sub), &inventory); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			// Discovery has not run yet; nothing to reconcile.
			return SubscriptionResult{}, nil
		}
		return SubscriptionResult{}, err
	}

	now := t.clock()
	result := SubscriptionResult{Checked: len(inventory.Resources)}
	statuses := make(map[string]types.DiagnosticStatus, len(inventory.Resources))

	for _, res := range inventory.Resources {
		status := t.reconcileResource(ctx, router, res, now)
		statuses[res.ID] = status

		switch status.State {
		case types.StateConfigured:
			result.Configured++
		case types.StateConfiguring:
			result.Configuring++
		case types.StateUnsupported:
			result.Unsupported++
			telemetry.RoutesSkipped.Add(ctx, 1)
		case types.StateError:
			result.Errors++
			telemetry.RouteErrors.Add(ctx, 1)
		}
	}

	// Full replace: resources gone from the inventory drop out of the
	// report with it.
	out := types.DiagnosticReport{
		Subscription: sub,
		Statuses:     statuses,
		CheckedAt:    now,
	}
	if err := cache.PutJSON(ctx, t.cache, cache.DiagnosticsKey(sub), out); err != nil {
		return SubscriptionResult{}, err
	}
	return result, nil
}

// reconcileResource decides one resource's state for this cycle.
// Already-routed resources are a no-op.
func (t *Task) reconcileResource(ctx context.Context, router providers.LogRouter, res types.Resource, now time.Time) types.DiagnosticStatus {
	status := types.DiagnosticStatus{
		ResourceID:  res.ID,
		Kind:        res.Kind,
		LastChecked: now,
	}

	if !SupportsLogRouting(res.Kind) {
		status.State = types.StateUnsupported
		if !KnownKind(res.Kind) {
			t.logger.WithContext(ctx).Debug().
				Str("resource_id", res.ID).
				Str("kind", res.Kind).
				Msg("kind absent from capability table")
		}
		return status
	}

	route, err := router.GetRoute(ctx, res)
	if err != nil {
		status.State = types.StateError
		status.Error = err.Error()
		return status
	}

	// A route observed back with the right destination is configured,
	// whether we created it last cycle or it predates us.
	if route != nil && route.Destination == t.destination {
		status.State = types.StateConfigured
		return status
	}

	if err := router.EnsureRoute(ctx, res, t.destination); err != nil {
		status.State = types.StateError
		status.Error = err.Error()
		t.logger.WithContext(ctx).Warn().
			Err(err).
			Str("resource", res.ID).
			Str("kind", res.Kind).
			Msg("route configuration failed")
		return status
	}

	telemetry.RoutesConfigured.Add(ctx, 1)
	status.State = types.StateConfiguring
	return status
}

func msSince(start time.Time, clock func() time.Time) float64 {
	return float64(clock().Sub(start).Milliseconds())
}
