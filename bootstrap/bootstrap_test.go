package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/cache/cachetest"
	"github.com/yairfalse/lfo/deployer"
	"github.com/yairfalse/lfo/types"
)

// fakeDeployer counts synchronous passes.
type fakeDeployer struct {
	runs   int
	report deployer.Report
	err    error
}

func (f *fakeDeployer) Run(_ context.Context) (*deployer.Report, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &f.report, nil
}

func TestRunSeedsMissingStateAndWritesMarker(t *testing.T) {
	c := cachetest.New()
	deploy := &fakeDeployer{}

	b := New(c, deploy, []string{"sub-1", "sub-2"}, "datadog/forwarder:1.4.0", "cfg-7", 0)
	report, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.AlreadyDone)
	assert.ElementsMatch(t, []string{"sub-1", "sub-2"}, report.SeededInventory)
	assert.True(t, report.SeededTopology)
	assert.Equal(t, 1, deploy.runs)

	var inv types.Inventory
	require.NoError(t, json.Unmarshal(c.Data[cache.InventoryKey("sub-1")], &inv))
	assert.Equal(t, "sub-1", inv.Subscription)
	assert.Empty(t, inv.Resources)

	var topology types.ForwarderTopology
	require.NoError(t, json.Unmarshal(c.Data[cache.TopologyKey()], &topology))
	assert.Equal(t, "datadog/forwarder:1.4.0", topology.Image)
	assert.Empty(t, topology.Regions)

	var marker Marker
	require.NoError(t, json.Unmarshal(c.Data[cache.BootstrapMarkerKey()], &marker))
	assert.False(t, marker.CompletedAt.IsZero())
}

func TestRunDoesNotOverwriteExistingState(t *testing.T) {
	c := cachetest.New()
	existing, err := json.Marshal(types.Inventory{
		Subscription: "sub-1",
		Resources:    []types.Resource{{ID: "i-1", Kind: "ec2", Region: "us-east-1"}},
	})
	require.NoError(t, err)
	c.Data[cache.InventoryKey("sub-1")] = existing

	b := New(c, &fakeDeployer{}, []string{"sub-1", "sub-2"}, "img", "cfg", 0)
	report, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"sub-2"}, report.SeededInventory)

	var inv types.Inventory
	require.NoError(t, json.Unmarshal(c.Data[cache.InventoryKey("sub-1")], &inv))
	require.Len(t, inv.Resources, 1)
	assert.Equal(t, "i-1", inv.Resources[0].ID)
}

func TestRunMarkerShortCircuitsReentry(t *testing.T) {
	c := cachetest.New()
	deploy := &fakeDeployer{}

	b := New(c, deploy, []string{"sub-1"}, "img", "cfg", 0)
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.AlreadyDone)
	assert.Equal(t, 1, deploy.runs)
}

func TestRunDeployFailureLeavesMarkerUnwritten(t *testing.T) {
	c := cachetest.New()
	deploy := &fakeDeployer{report: deployer.Report{
		Changes: []deployer.Change{{Action: deployer.ActionCreate, Unit: "u", Error: "boom"}},
	}}

	b := New(c, deploy, []string{"sub-1"}, "img", "cfg", 0)
	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.NotContains(t, c.Data, cache.BootstrapMarkerKey())

	// Re-entry retries the pass instead of short-circuiting.
	deploy.report = deployer.Report{}
	_, err = b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deploy.runs)
	assert.Contains(t, c.Data, cache.BootstrapMarkerKey())
}

func TestRunDeployErrorAborts(t *testing.T) {
	c := cachetest.New()
	deploy := &fakeDeployer{err: errors.New("compute api down")}

	b := New(c, deploy, []string{"sub-1"}, "img", "cfg", 0)
	_, err := b.Run(context.Background())
	require.ErrorContains(t, err, "compute api down")
	assert.NotContains(t, c.Data, cache.BootstrapMarkerKey())
}

func TestRunCacheOutageAborts(t *testing.T) {
	c := cachetest.New()
	c.Unavailable = true

	b := New(c, &fakeDeployer{}, []string{"sub-1"}, "img", "cfg", 0)
	_, err := b.Run(context.Background())
	require.ErrorIs(t, err, cache.ErrUnavailable)
}
