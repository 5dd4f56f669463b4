package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/caretrack/directory-cli/internal/adapter"
	"github.com/caretrack/directory-cli/internal/discovery"
	"github.com/caretrack/directory-cli/internal/fetch"
	"github.com/caretrack/directory-cli/internal/match"
	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newOrchestrator() *discovery.Orchestrator {
	weights := match.Weights{
		NPI:      cfg.Match.Weights.NPI,
		License:  cfg.Match.Weights.License,
		Name:     cfg.Match.Weights.Name,
		Location: cfg.Match.Weights.Location,
	}
	return discovery.NewOrchestrator(
		fetch.NewFetcher(),
		adapter.DefaultRegistry(),
		match.NewScorer(weights),
		thresholds(),
		cfg.Discovery.MaxConcurrentSites,
	)
}

func thresholds() match.Thresholds {
	return match.Thresholds{
		Low:  cfg.Match.Thresholds.Low,
		High: cfg.Match.Thresholds.High,
	}
}

// applySiteOverrides layers config-file site settings and global fetch
// defaults onto directories loaded from the store.
func applySiteOverrides(dirs []model.Directory) []model.Directory {
	for i := range dirs {
		d := &dirs[i]
		if site, ok := cfg.Sites[d.AdapterKey]; ok {
			if site.MinDelayMs > 0 {
				d.MinDelayMs = site.MinDelayMs
			}
			if site.MaxRetries > 0 {
				d.MaxRetries = site.MaxRetries
			}
			if site.AllowRendering {
				d.AllowRendering = true
			}
		}
		if d.MinDelayMs == 0 {
			d.MinDelayMs = cfg.Fetch.MinDelayMs
		}
		if d.MaxRetries == 0 {
			d.MaxRetries = cfg.Fetch.MaxRetries
		}
	}
	return dirs
}
