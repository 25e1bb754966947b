// Package discovery implements the resource discovery task: enumerate
// resources in each monitored subscription, apply the tag filter, and
// write one inventory snapshot per subscription to the shared cache.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/providers"
	"github.com/yairfalse/lfo/telemetry"
	"github.com/yairfalse/lfo/types"
)

// Task runs one discovery cycle. Tasks are stateless; everything lives
// in the cache between runs.
type Task struct {
	cache         cache.Cache
	listers       map[string]providers.ResourceLister
	subscriptions []string
	filter        types.TagFilter
	logger        *telemetry.Logger
	clock         func() time.Time
}

// SubscriptionResult is the per-subscription outcome of a cycle.
type SubscriptionResult struct {
	Discovered int    `json:"discovered"`
	InScope    int    `json:"in_scope"`
	Error      string `json:"error,omitempty"`
}

// Report attributes every success and failure to its subscription so
// operators see partial-failure detail instead of an opaque cycle error.
type Report struct {
	Subscriptions map[string]SubscriptionResult `json:"subscriptions"`
	StartedAt     time.Time                     `json:"started_at"`
	Duration      time.Duration                 `json:"duration"`
}

// Failed counts subscriptions whose discovery failed this cycle.
func (r *Report) Failed() int {
	failed := 0
	for _, result := range r.Subscriptions {
		if result.Error != "" {
			failed++
		}
	}
	return failed
}

// NewTask creates a discovery task. listers maps each monitored
// subscription to the reader-scoped lister that can see it.
func NewTask(c cache.Cache, listers map[string]providers.ResourceLister, subscriptions []string, filter types.TagFilter) *Task {
	return &Task{
		cache:         c,
		listers:       listers,
		subscriptions: subscriptions,
		filter:        filter,
		logger:        telemetry.NewLogger("discovery"),
		clock:         time.Now,
	}
}

// Run executes one discovery cycle. A subscription that cannot be listed
// fails alone: its previous snapshot stays in the cache untouched and
// the next scheduled run is the retry. Only a cache outage aborts the
// whole cycle.
func (t *Task) Run(ctx context.Context) (*Report, error) {
	start := t.clock()
	t.logger.LogCycleStart(ctx, "discovery")

	report := &Report{
		Subscriptions: make(map[string]SubscriptionResult, len(t.subscriptions)),
		StartedAt:     start,
	}

	for _, sub := range t.subscriptions {
		result, err := t.discoverSubscription(ctx, sub)
		if err != nil {
			// Cache failure invalidates the cycle's premises; stop
			// instead of writing partial state.
			if errors.Is(err, cache.ErrUnavailable) {
				t.logger.LogCycleEnd(ctx, "discovery", msSince(start, t.clock), err)
				return nil, err
			}
			result = SubscriptionResult{Error: err.Error()}
			telemetry.SubscriptionErrors.Add(ctx, 1)
			t.logger.WithContext(ctx).Error().
				Err(err).
				Str("subscription", sub).
				Msg("subscription discovery failed")
		}
		report.Subscriptions[sub] = result
	}

	report.Duration = t.clock().Sub(start)
	telemetry.CycleDuration.Record(ctx, float64(report.Duration.Milliseconds()))
	t.logger.LogCycleEnd(ctx, "discovery", float64(report.Duration.Milliseconds()), nil)
	return report, nil
}

func (t *Task) discoverSubscription(ctx context.Context, sub string) (SubscriptionResult, error) {
	lister, ok := t.listers[sub]
	if !ok {
		return SubscriptionResult{}, errors.New("no lister configured for subscription")
	}

	resources, err := lister.ListResources(ctx, sub)
	if err != nil {
		return SubscriptionResult{}, err
	}

	inScope := make([]types.Resource, 0, len(resources))
	for _, res := range resources {
		if t.filter.Matches(res.Tags) {
			inScope = append(inScope, res)
		}
	}

	inventory := types.Inventory{
		Subscription: sub,
		Resources:    inScope,
		ObservedAt:   t.clock(),
	}
	if err := cache.PutJSON(ctx, t.cache, cache.InventoryKey(sub), inventory); err != nil {
		return SubscriptionResult{}, err
	}

	telemetry.ResourcesDiscovered.Add(ctx, int64(len(inScope)))
	return SubscriptionResult{Discovered: len(resources), InScope: len(inScope)}, nil
}

func msSince(start time.Time, clock func() time.Time) float64 {
	return float64(clock().Sub(start).Milliseconds())
}
