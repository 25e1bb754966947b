package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yairfalse/lfo/bootstrap"
	"github.com/yairfalse/lfo/cache"
	"github.com/yairfalse/lfo/cache/blobcache"
	"github.com/yairfalse/lfo/cache/boltcache"
	"github.com/yairfalse/lfo/config"
	"github.com/yairfalse/lfo/deployer"
	"github.com/yairfalse/lfo/diagnostics"
	"github.com/yairfalse/lfo/discovery"
	"github.com/yairfalse/lfo/identity"
	"github.com/yairfalse/lfo/journal"
	"github.com/yairfalse/lfo/providers"
	_ "github.com/yairfalse/lfo/providers/aws" // register the aws factory
	"github.com/yairfalse/lfo/scaling"
	"github.com/yairfalse/lfo/telemetry"
	"github.com/yairfalse/lfo/types"
)

// app wires configuration, identity, cache, and provider into the
// tasks. Every subcommand builds one and tears it down on exit.
type app struct {
	cfg           *config.Config
	id            identity.ID
	store         cache.Cache
	bundle        providers.Bundle
	journal       *journal.Journal
	subscriptions []string
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	telemetry.SetLevel(cfg.Log.Level)

	id, err := identity.Derive(
		cfg.ControlPlane.Scope,
		cfg.ControlPlane.Subscription,
		cfg.ControlPlane.ResourceGroup,
		cfg.ControlPlane.Region,
	)
	if err != nil {
		return nil, err
	}

	store, err := openCache(ctx, cfg, id)
	if err != nil {
		return nil, err
	}

	jnl, err := journal.Open(filepath.Join(cfg.Cache.Path, "journal"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bundle, err := providers.New(ctx, cfg.Provider, providers.Config{
		Region:        cfg.ControlPlane.Region,
		Destination:   cfg.Destination,
		RouteName:     id.RouteName(),
		Cluster:       cfg.AWS.Cluster,
		ExecutionRole: cfg.AWS.ExecutionRoleARN,
	})
	if err != nil {
		_ = jnl.Close()
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:           cfg,
		id:            id,
		store:         store,
		bundle:        bundle,
		journal:       jnl,
		subscriptions: cfg.MonitoredSubscriptions(),
	}, nil
}

func (a *app) Close() {
	_ = a.journal.Close()
	_ = a.store.Close()
}

func openCache(ctx context.Context, cfg *config.Config, id identity.ID) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.ControlPlane.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return blobcache.New(s3.NewFromConfig(awsCfg), cfg.Cache.Bucket, id.CacheNamespace()), nil
	case "bolt":
		return boltcache.Open(cfg.Cache.Path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// One lister/router per subscription. A single credential chain covers
// every monitored subscription today; per-subscription credentials
// would slot in here.
func (a *app) listers() map[string]providers.ResourceLister {
	listers := make(map[string]providers.ResourceLister, len(a.subscriptions))
	for _, sub := range a.subscriptions {
		listers[sub] = a.bundle.Lister()
	}
	return listers
}

func (a *app) routers() map[string]providers.LogRouter {
	routers := make(map[string]providers.LogRouter, len(a.subscriptions))
	for _, sub := range a.subscriptions {
		routers[sub] = a.bundle.Router()
	}
	return routers
}

func (a *app) discoveryTask() *discovery.Task {
	return discovery.NewTask(a.store, a.listers(), a.subscriptions, types.ParseTagFilter(a.cfg.TagFilter))
}

func (a *app) diagnosticsTask() *diagnostics.Task {
	return diagnostics.NewTask(a.store, a.routers(), a.subscriptions, a.cfg.Destination)
}

func (a *app) scalingTask() *scaling.Task {
	return scaling.NewTask(a.store, a.cfg.Forwarder.Image, a.cfg.Forwarder.ConfigVersion, scaling.Options{
		MaxRegions:           a.cfg.Scaling.MaxRegions,
		ResourcesPerReplica:  a.cfg.Scaling.ResourcesPerReplica,
		MaxReplicasPerRegion: a.cfg.Scaling.MaxReplicasPerRegion,
	})
}

func (a *app) deployerTask(timeout time.Duration) *deployer.Task {
	return deployer.NewTask(a.store, a.bundle.Runtime(), a.id, timeout)
}

func (a *app) bootstrapper() *bootstrap.Bootstrapper {
	return bootstrap.New(
		a.store,
		a.deployerTask(bootstrap.DefaultTimeout),
		a.subscriptions,
		a.cfg.Forwarder.Image,
		a.cfg.Forwarder.ConfigVersion,
		bootstrap.DefaultTimeout,
	)
}
