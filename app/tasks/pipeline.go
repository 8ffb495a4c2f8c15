package tasks

import (
	"fmt"
	"time"

	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/snapshot"
	"github.com/lysyi3m/fractional-comb/app/source"
)

// Pipeline holds what source runs and snapshots need and builds their tasks.
type Pipeline struct {
	ConfigCache   *source.ConfigCache
	SourceDeps    source.Deps
	Canonicalizer BatchCanonicalizer
	Engine        Reconciler
	ListingRepo   database.ListingRepositoryInterface
	SnapshotRepo  database.SnapshotRepositoryInterface
	RunRepo       database.RunRepositoryInterface
	Aggregator    *snapshot.Aggregator
	LockDir       string

	// NewAdapter overrides source.New, mainly in tests.
	NewAdapter func(config *source.Config, deps source.Deps) (source.Adapter, error)
}

func (p *Pipeline) ProcessSourceTask(name string) (*ProcessSourceTask, error) {
	config, err := p.ConfigCache.GetConfig(name)
	if err != nil {
		return nil, err
	}

	newAdapter := p.NewAdapter
	if newAdapter == nil {
		newAdapter = source.New
	}

	adapter, err := newAdapter(config, p.SourceDeps)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter for %s: %w", name, err)
	}

	return NewProcessSourceTask(adapter, p.Canonicalizer, p.Engine, p.RunRepo, p.LockDir), nil
}

func (p *Pipeline) SnapshotTask(date time.Time) *SnapshotTask {
	return NewSnapshotTask(date, p.ListingRepo, p.SnapshotRepo, p.Aggregator)
}

// EnabledSources returns the names of every enabled source, sorted.
func (p *Pipeline) EnabledSources() []string {
	configs := p.ConfigCache.GetEnabledConfigs()
	names := make([]string, 0, len(configs))
	for _, c := range configs {
		names = append(names, c.Name)
	}
	return names
}
