// Package config loads and validates the control-plane configuration:
// one YAML file, a handful of environment overrides, and the monitored
// subscription list in its comma-separated installer form.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError is a fatal configuration problem, reported before any
// provisioning happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config is the full control-plane configuration surface.
type Config struct {
	Version  string `yaml:"version"`
	Provider string `yaml:"provider"`

	// APIKey and Site identify the monitoring platform account logs are
	// forwarded to. The control plane only passes them through to the
	// forwarder workload.
	APIKey string `yaml:"api_key"`
	Site   string `yaml:"site"`

	ControlPlane ControlPlane `yaml:"control_plane"`

	// Subscriptions is the comma-separated monitored subscription list,
	// as the installer supplies it. Parsed, trimmed, and deduplicated
	// by MonitoredSubscriptions.
	Subscriptions string `yaml:"subscriptions"`

	// TagFilter selects which resources are in scope.
	TagFilter string `yaml:"tag_filter"`

	// Destination is where configured log routes deliver.
	Destination string `yaml:"destination"`

	AWS       AWSConfig       `yaml:"aws"`
	Forwarder Forwarder       `yaml:"forwarder"`
	Scaling   Scaling         `yaml:"scaling"`
	Intervals Intervals       `yaml:"intervals"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`

	// ScrubberRules are passed to the forwarder unchanged. The control
	// plane validates their syntax and nothing else.
	ScrubberRules []ScrubberRule `yaml:"scrubber_rules,omitempty"`
}

// ControlPlane names where the control plane itself lives; together
// these derive its identity.
type ControlPlane struct {
	Scope         string `yaml:"scope"`
	Subscription  string `yaml:"subscription"`
	ResourceGroup string `yaml:"resource_group"`
	Region        string `yaml:"region"`
}

// AWSConfig holds AWS-specific compute settings for the forwarder
// runtime.
type AWSConfig struct {
	// Cluster is the ECS cluster hosting forwarder services.
	Cluster string `yaml:"cluster"`
	// ExecutionRoleARN is attached to forwarder task definitions.
	ExecutionRoleARN string `yaml:"execution_role_arn"`
}

// Forwarder pins the forwarder workload.
type Forwarder struct {
	Image string `yaml:"image"`
	// ConfigVersion changes whenever forwarder-facing configuration
	// changes, so the deployer sees drift and rolls the fleet.
	ConfigVersion string `yaml:"config_version"`
}

// Scaling bounds the topology computation.
type Scaling struct {
	MaxRegions           int `yaml:"max_regions"`
	ResourcesPerReplica  int `yaml:"resources_per_replica"`
	MaxReplicasPerRegion int `yaml:"max_replicas_per_region"`
}

// Duration decodes "15m"-style YAML strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Intervals are the task schedules.
type Intervals struct {
	Discovery   Duration `yaml:"discovery"`
	Diagnostics Duration `yaml:"diagnostics"`
	Scaling     Duration `yaml:"scaling"`
	Deployer    Duration `yaml:"deployer"`
}

// CacheConfig selects the shared cache backend.
type CacheConfig struct {
	// Backend is "bolt" or "s3".
	Backend string `yaml:"backend"`
	// Path is the local directory for the bolt backend.
	Path string `yaml:"path"`
	// Bucket is the S3 bucket for the s3 backend.
	Bucket string `yaml:"bucket"`
}

// TelemetryConfig controls the observability exports.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ScrubberRule is one PII-scrubbing rule. Opaque to the control plane
// beyond syntax: the pattern must compile, the name must be set.
type ScrubberRule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Load reads, overrides, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment overrides over the file. DD_API_KEY and
// DD_SITE follow the installer's convention; the rest are LFO_*.
func (c *Config) applyEnv() {
	if v := os.Getenv("DD_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DD_SITE"); v != "" {
		c.Site = v
	}
	if v := os.Getenv("LFO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LFO_METRICS_ADDR"); v != "" {
		c.Telemetry.MetricsAddr = v
	}
	if v := os.Getenv("LFO_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "aws"
	}
	if c.Site == "" {
		c.Site = "datadoghq.com"
	}
	if c.Intervals.Discovery == 0 {
		c.Intervals.Discovery = Duration(15 * time.Minute)
	}
	if c.Intervals.Diagnostics == 0 {
		c.Intervals.Diagnostics = Duration(15 * time.Minute)
	}
	if c.Intervals.Scaling == 0 {
		c.Intervals.Scaling = Duration(30 * time.Minute)
	}
	if c.Intervals.Deployer == 0 {
		c.Intervals.Deployer = Duration(30 * time.Minute)
	}
	if c.Scaling.MaxRegions == 0 {
		c.Scaling.MaxRegions = 4
	}
	if c.Scaling.ResourcesPerReplica == 0 {
		c.Scaling.ResourcesPerReplica = 50
	}
	if c.Scaling.MaxReplicasPerRegion == 0 {
		c.Scaling.MaxReplicasPerRegion = 10
	}
	if c.AWS.Cluster == "" {
		c.AWS.Cluster = "lfo-forwarders"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "bolt"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "/var/lib/lfo"
	}
	if c.Telemetry.MetricsAddr == "" {
		c.Telemetry.MetricsAddr = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Forwarder.ConfigVersion == "" {
		c.Forwarder.ConfigVersion = "v1"
	}
}

// Validate ensures the configuration can provision a control plane.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "api_key", Reason: "required"}
	}
	if c.ControlPlane.Scope == "" {
		return &ConfigError{Field: "control_plane.scope", Reason: "required"}
	}
	if c.ControlPlane.Subscription == "" {
		return &ConfigError{Field: "control_plane.subscription", Reason: "required"}
	}
	if c.ControlPlane.ResourceGroup == "" {
		return &ConfigError{Field: "control_plane.resource_group", Reason: "required"}
	}
	if c.ControlPlane.Region == "" {
		return &ConfigError{Field: "control_plane.region", Reason: "required"}
	}
	if len(c.MonitoredSubscriptions()) == 0 {
		return &ConfigError{Field: "subscriptions", Reason: "at least one monitored subscription required"}
	}
	if c.Destination == "" {
		return &ConfigError{Field: "destination", Reason: "required"}
	}
	if c.Forwarder.Image == "" {
		return &ConfigError{Field: "forwarder.image", Reason: "required"}
	}
	switch c.Cache.Backend {
	case "bolt":
	case "s3":
		if c.Cache.Bucket == "" {
			return &ConfigError{Field: "cache.bucket", Reason: "required for the s3 backend"}
		}
	default:
		return &ConfigError{Field: "cache.backend", Reason: fmt.Sprintf("unknown backend %q (want bolt or s3)", c.Cache.Backend)}
	}
	for i, rule := range c.ScrubberRules {
		if rule.Name == "" {
			return &ConfigError{Field: fmt.Sprintf("scrubber_rules[%d].name", i), Reason: "required"}
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return &ConfigError{
				Field:  fmt.Sprintf("scrubber_rules[%d].pattern", i),
				Reason: err.Error(),
			}
		}
	}
	return nil
}

// MonitoredSubscriptions parses the comma-separated subscription list:
// entries are trimmed, empties dropped, duplicates removed, and the
// control plane's own subscription is always monitored.
func (c *Config) MonitoredSubscriptions() []string {
	seen := make(map[string]bool)
	var subs []string
	add := func(sub string) {
		sub = strings.TrimSpace(sub)
		if sub == "" || seen[sub] {
			return
		}
		seen[sub] = true
		subs = append(subs, sub)
	}

	for _, sub := range strings.Split(c.Subscriptions, ",") {
		add(sub)
	}
	add(c.ControlPlane.Subscription)
	return subs
}
