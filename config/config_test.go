package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYAML = `
version: "1"
api_key: test-key
control_plane:
  scope: mg-root
  subscription: sub-cp
  resource_group: lfo-control-plane
  region: us-east-1
subscriptions: "sub-1, sub-2"
tag_filter: "env:prod"
destination: arn:aws:firehose:us-east-1:123:deliverystream/dd
forwarder:
  image: datadog/forwarder:1.4.0
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "aws", cfg.Provider)
	assert.Equal(t, "datadoghq.com", cfg.Site)
	assert.Equal(t, 15*time.Minute, cfg.Intervals.Discovery.Std())
	assert.Equal(t, 30*time.Minute, cfg.Intervals.Deployer.Std())
	assert.Equal(t, "bolt", cfg.Cache.Backend)
	assert.Equal(t, ":9090", cfg.Telemetry.MetricsAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "v1", cfg.Forwarder.ConfigVersion)
	assert.Equal(t, 4, cfg.Scaling.MaxRegions)
}

func TestLoadMissingAPIKey(t *testing.T) {
	body := `
control_plane:
  subscription: sub-cp
  resource_group: rg
  region: us-east-1
subscriptions: "sub-1"
destination: dest
forwarder:
  image: img
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("DD_API_KEY", "env-key")
	t.Setenv("LFO_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestMonitoredSubscriptionsParsing(t *testing.T) {
	cfg := &Config{
		Subscriptions: " sub-1 , sub-2,, sub-1 ,sub-3",
		ControlPlane:  ControlPlane{Subscription: "sub-2"},
	}
	assert.Equal(t, []string{"sub-1", "sub-2", "sub-3"}, cfg.MonitoredSubscriptions())
}

func TestMonitoredSubscriptionsIncludesControlPlane(t *testing.T) {
	cfg := &Config{
		Subscriptions: "sub-1",
		ControlPlane:  ControlPlane{Subscription: "sub-cp"},
	}
	assert.Equal(t, []string{"sub-1", "sub-cp"}, cfg.MonitoredSubscriptions())
}

func TestLoadMissingScope(t *testing.T) {
	body := `
api_key: abc
control_plane:
  subscription: sub-cp
  resource_group: rg
  region: us-east-1
subscriptions: "sub-1"
destination: dest
forwarder:
  image: img
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "control_plane.scope", cfgErr.Field)
}

func TestValidateScrubberRuleSyntax(t *testing.T) {
	body := validYAML + `
scrubber_rules:
  - name: redact-emails
    pattern: '[a-z]+@[a-z]+\.[a-z]+'
    replacement: "[redacted]"
  - name: broken
    pattern: '[unclosed'
    replacement: "x"
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "scrubber_rules[1].pattern", cfgErr.Field)
}

func TestValidateScrubberRuleNeedsName(t *testing.T) {
	body := validYAML + `
scrubber_rules:
  - pattern: 'x+'
    replacement: "y"
`
	_, err := Load(writeConfig(t, body))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "scrubber_rules[0].name", cfgErr.Field)
}

func TestValidateS3BackendNeedsBucket(t *testing.T) {
	body := validYAML + `
cache:
  backend: s3
`
	_, err := Load(writeConfig(t, body))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "cache.bucket", cfgErr.Field)
}

func TestValidateUnknownBackend(t *testing.T) {
	body := validYAML + `
cache:
  backend: redis
`
	_, err := Load(writeConfig(t, body))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "cache.backend", cfgErr.Field)
}

func TestLoadParsesIntervals(t *testing.T) {
	body := validYAML + `
intervals:
  discovery: 5m
  diagnostics: 10m
  scaling: 1h
  deployer: 45m
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Intervals.Discovery.Std())
	assert.Equal(t, 10*time.Minute, cfg.Intervals.Diagnostics.Std())
	assert.Equal(t, time.Hour, cfg.Intervals.Scaling.Std())
	assert.Equal(t, 45*time.Minute, cfg.Intervals.Deployer.Std())
}
