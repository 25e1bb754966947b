package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/cache/cachetest"
	"github.com/yairfalse/lfo/providers"
	"github.com/yairfalse/lfo/types"
)

// fakeLister returns canned resources or a canned error.
type fakeLister struct {
	resources []types.Resource
	err       error
}

func (f *fakeLister) ListResources(_ context.Context, _ string) ([]types.Resource, error) {
	return f.resources, f.err
}

func taggedResource(id, region string, tags map[string]string) types.Resource {
	return types.Resource{ID: id, Kind: "ec2", Region: region, Tags: tags}
}

func TestRunWritesFilteredSnapshot(t *testing.T) {
	c := cachetest.New()
	lister := &fakeLister{resources: []types.Resource{
		taggedResource("i-1", "us-east-1", map[string]string{"env": "prod"}),
		taggedResource("i-2", "us-east-1", map[string]string{"env": "dev"}),
		taggedResource("i-3", "eu-west-1", map[string]string{"env": "prod"}),
	}}

	task := NewTask(c,
		map[string]providers.ResourceLister{"sub-1": lister},
		[]string{"sub-1"},
		types.ParseTagFilter("env:prod"),
	)

	report, err := task.Run(context.Background())
	require.NoError(t, err)

	result := report.Subscriptions["sub-1"]
	assert.Empty(t, result.Error)
	assert.Equal(t, 3, result.Discovered)
	assert.Equal(t, 2, result.InScope)

	var inv types.Inventory
	require.NoError(t, json.Unmarshal(c.Data[cache.InventoryKey("sub-1")], &inv))
	assert.Equal(t, "sub-1", inv.Subscription)
	require.Len(t, inv.Resources, 2)
	assert.Equal(t, "i-1", inv.Resources[0].ID)
	assert.Equal(t, "i-3", inv.Resources[1].ID)
}

func TestRunEmptyFilterKeepsEverything(t *testing.T) {
	c := cachetest.New()
	lister := &fakeLister{resources: []types.Resource{
		taggedResource("i-1", "us-east-1", nil),
		taggedResource("i-2", "us-east-1", map[string]string{"env": "dev"}),
	}}

	task := NewTask(c, map[string]providers.ResourceLister{"sub-1": lister}, []string{"sub-1"}, types.TagFilter{})

	report, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Subscriptions["sub-1"].InScope)
}

// Spec scenario: S1 unreachable, S2 healthy with 5 matching resources.
// S1 keeps its previous snapshot, S2 gets a fresh one, the cycle reports
// one subscription error and does not abort.
func TestRunIsolatesSubscriptionFailure(t *testing.T) {
	c := cachetest.New()
	previous, _ := json.Marshal(types.Inventory{
		Subscription: "sub-1",
		Resources:    []types.Resource{taggedResource("old-1", "us-east-1", nil)},
	})
	c.Data[cache.InventoryKey("sub-1")] = previous

	var s2Resources []types.Resource
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		s2Resources = append(s2Resources, taggedResource(id, "us-east-1", nil))
	}

	task := NewTask(c,
		map[string]providers.ResourceLister{
			"sub-1": &fakeLister{err: errors.New("throttled")},
			"sub-2": &fakeLister{resources: s2Resources},
		},
		[]string{"sub-1", "sub-2"},
		types.TagFilter{},
	)

	report, err := task.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed())
	assert.Contains(t, report.Subscriptions["sub-1"].Error, "throttled")
	assert.Equal(t, 5, report.Subscriptions["sub-2"].InScope)

	// Previous snapshot for the failed subscription is untouched.
	var inv types.Inventory
	require.NoError(t, json.Unmarshal(c.Data[cache.InventoryKey("sub-1")], &inv))
	require.Len(t, inv.Resources, 1)
	assert.Equal(t, "old-1", inv.Resources[0].ID)

	var inv2 types.Inventory
	require.NoError(t, json.Unmarshal(c.Data[cache.InventoryKey("sub-2")], &inv2))
	assert.Len(t, inv2.Resources, 5)
}

func TestRunAbortsOnCacheOutage(t *testing.T) {
	c := cachetest.New()
	c.Unavailable = true

	task := NewTask(c,
		map[string]providers.ResourceLister{"sub-1": &fakeLister{resources: []types.Resource{taggedResource("i-1", "us-east-1", nil)}}},
		[]string{"sub-1"},
		types.TagFilter{},
	)

	_, err := task.Run(context.Background())
	require.ErrorIs(t, err, cache.ErrUnavailable)
}

func TestRunUnknownSubscriptionReported(t *testing.T) {
	c := cachetest.New()
	task := NewTask(c, map[string]providers.ResourceLister{}, []string{"sub-x"}, types.TagFilter{})

	report, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Subscriptions["sub-x"].Error, "no lister")
}
