package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/fractional-comb/app/cache"
	"github.com/lysyi3m/fractional-comb/app/cfg"
	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/export"
	"github.com/lysyi3m/fractional-comb/app/listing"
	"github.com/lysyi3m/fractional-comb/app/snapshot"
	"github.com/lysyi3m/fractional-comb/app/source"
	"github.com/lysyi3m/fractional-comb/app/tasks"
)

// NewHandler wires the reporting handlers. scheduler and store may be nil.
func NewHandler(configCache *source.ConfigCache, listingRepo database.ListingRepositoryInterface,
	snapshotRepo database.SnapshotRepositoryInterface, runRepo database.RunRepositoryInterface,
	scheduler tasks.TaskSchedulerInterface, store cache.CacheInterface) *Handler {
	return &Handler{
		listingRepo:  listingRepo,
		snapshotRepo: snapshotRepo,
		runRepo:      runRepo,
		configCache:  configCache,
		scheduler:    scheduler,
		cache:        store,
		generator:    export.NewRSSGenerator(),
		now:          time.Now,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
	}

	if total, active, err := h.listingRepo.GetListingCounts(c.Request.Context()); err == nil {
		health["listings"] = map[string]int{
			"total":  total,
			"active": active,
		}
	} else {
		slog.Error("Database error", "operation", "get_listing_counts", "error", err)
		health["database"] = "unavailable"
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	if h.cache != nil {
		health["cache"] = h.cache.Health(c.Request.Context())
	}

	c.JSON(http.StatusOK, health)
}

// listingFilter reads the shared listing query parameters.
func listingFilter(c *gin.Context) (listing.Filter, bool) {
	limit, ok := intQuery(c, "limit", defaultListingLimit, 1, maxListingLimit)
	if !ok {
		return listing.Filter{}, false
	}

	return listing.Filter{
		Source:           c.Query("source"),
		FunctionCategory: c.Query("function"),
		SeniorityTier:    c.Query("seniority"),
		LocationType:     c.Query("location_type"),
		Limit:            limit,
	}, true
}

func (h *Handler) GetListings(c *gin.Context) {
	filter, ok := listingFilter(c)
	if !ok {
		return
	}

	records, err := h.listingRepo.GetActiveListings(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "get_active_listings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if records == nil {
		records = []listing.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": records,
		"total":    len(records),
	})
}

// GetListingsFeed serves the active listings as RSS, with the same filters
// as GetListings.
func (h *Handler) GetListingsFeed(c *gin.Context) {
	filter, ok := listingFilter(c)
	if !ok {
		return
	}

	records, err := h.listingRepo.GetActiveListings(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "get_active_listings", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	base := "http://" + c.Request.Host
	rss, err := h.generator.Run(export.Channel{
		Title:       "Fractional Comb",
		Link:        base + "/",
		SelfLink:    base + c.Request.URL.RequestURI(),
		Description: "Active fractional executive listings",
		Generator:   "Fractional Comb/" + cfg.GetVersion(),
	}, records)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(records)))

	c.String(http.StatusOK, rss)
}

// GetCompensationSnapshots serves one day of benchmarks, the latest day when
// no date is given.
func (h *Handler) GetCompensationSnapshots(c *gin.Context) {
	ctx := c.Request.Context()

	var date time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	} else {
		latest, err := h.snapshotRepo.GetLatestCompensationSnapshotDate(ctx)
		if err != nil {
			slog.Error("Database error", "operation", "get_latest_snapshot_date", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if latest == nil {
			c.JSON(http.StatusOK, gin.H{"date": nil, "snapshots": []listing.CompensationSnapshot{}})
			return
		}
		date = *latest
	}

	rows, err := h.snapshotRepo.GetCompensationSnapshots(ctx, date)
	if err != nil {
		slog.Error("Database error", "operation", "get_compensation_snapshots", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if rows == nil {
		rows = []listing.CompensationSnapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"date":      date.Format("2006-01-02"),
		"snapshots": rows,
	})
}

func (h *Handler) GetListingSnapshots(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultSnapshotDays, 1, maxSnapshotDays)
	if !ok {
		return
	}

	name := c.DefaultQuery("source", snapshot.AllSources)
	since := snapshot.Day(h.now()).AddDate(0, 0, -(days - 1))

	rows, err := h.snapshotRepo.GetListingSnapshots(c.Request.Context(), name, since)
	if err != nil {
		slog.Error("Database error", "operation", "get_listing_snapshots", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if rows == nil {
		rows = []listing.ListingSnapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"source":    name,
		"days":      days,
		"snapshots": rows,
	})
}

func (h *Handler) GetWeeklySummary(c *gin.Context) {
	since := snapshot.Day(h.now()).AddDate(0, 0, -6)

	rows, err := h.snapshotRepo.GetListingSnapshots(c.Request.Context(), snapshot.AllSources, since)
	if err != nil {
		slog.Error("Database error", "operation", "get_listing_snapshots", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	summary := snapshot.Weekly(rows)
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No listing snapshots in the last 7 days"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultRunLimit, 1, maxListingLimit)
	if !ok {
		return
	}

	runs, err := h.runRepo.GetRecentRuns(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if runs == nil {
		runs = []listing.RunLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, config := range configs {
		info := map[string]interface{}{
			"name":      config.Name,
			"kind":      config.Kind,
			"url":       config.URL,
			"enabled":   config.Settings.Enabled,
			"max_items": config.Settings.MaxItems,
			"timeout":   (time.Duration(config.Settings.Timeout) * time.Second).String(),
			"filters":   len(config.Filters),
		}

		if runs, err := h.runRepo.GetRecentRuns(c.Request.Context(), config.Name, 1); err == nil && len(runs) > 0 {
			info["last_run"] = runs[0]
		}

		sources = append(sources, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

// APIRunSource reloads the source configuration from disk and queues a run.
func (h *Handler) APIRunSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	config, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	taskID, err := h.scheduler.EnqueueSource(name)
	if err != nil {
		slog.Error("Error enqueueing source task", "source", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue source task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"source": gin.H{
			"name":    name,
			"kind":    config.Kind,
			"enabled": config.Settings.Enabled,
		},
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeProcessSource,
		},
	})
}

func (h *Handler) APIRunSnapshot(c *gin.Context) {
	date := h.now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	taskID, err := h.scheduler.EnqueueSnapshot(date)
	if err != nil {
		slog.Error("Error enqueueing snapshot task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue snapshot task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"date":    snapshot.Day(date).Format("2006-01-02"),
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeSnapshot,
		},
	})
}

// intQuery reads a bounded integer parameter and writes a 400 when it is
// malformed.
func intQuery(c *gin.Context, name string, fallback, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name + " parameter",
			"range": []int{lo, hi},
		})
		return 0, false
	}
	return v, true
}
