package api

import (
	"time"

	"github.com/lysyi3m/fractional-comb/app/cache"
	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/export"
	"github.com/lysyi3m/fractional-comb/app/source"
	"github.com/lysyi3m/fractional-comb/app/tasks"
)

const (
	defaultListingLimit = 100
	maxListingLimit     = 1000
	defaultRunLimit     = 50
	defaultSnapshotDays = 7
	maxSnapshotDays     = 365
)

type Handler struct {
	listingRepo  database.ListingRepositoryInterface
	snapshotRepo database.SnapshotRepositoryInterface
	runRepo      database.RunRepositoryInterface
	configCache  *source.ConfigCache
	scheduler    tasks.TaskSchedulerInterface
	cache        cache.CacheInterface
	generator    *export.RSSGenerator
	now          func() time.Time
}
