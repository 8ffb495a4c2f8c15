package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

const DefaultGraceThreshold = 1

// listingNamespace scopes deterministic listing identifiers.
var listingNamespace = uuid.MustParse("6f1b7c52-3d0a-4f7e-9a55-2c1e8b0d4a91")

type Repository interface {
	GetListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error)
	UpsertListings(ctx context.Context, records []listing.Record) error
}

// Batch is everything one source-run produced.
type Batch struct {
	Source    string
	Listings  []listing.CanonicalListing
	Succeeded bool
	RunAt     time.Time
}

type Result struct {
	Source      string
	Found       int
	Duplicates  int
	New         int
	Updated     int
	Unchanged   int
	Reactivated int
	Absent      int
	Deactivated int
	Stale       int
}

// Engine reconciles source-run batches against stored listing records.
type Engine struct {
	repo           Repository
	graceThreshold int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(repo Repository, graceThreshold int) *Engine {
	if graceThreshold < 0 {
		graceThreshold = DefaultGraceThreshold
	}
	return &Engine{
		repo:           repo,
		graceThreshold: graceThreshold,
		locks:          make(map[string]*sync.Mutex),
	}
}

// ListingID returns the stable identifier for a (source, source_id) pair.
func ListingID(source, sourceID string) string {
	return uuid.NewSHA1(listingNamespace, []byte(source+"\x00"+sourceID)).String()
}

func (e *Engine) sourceLock(source string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[source]
	if !ok {
		l = &sync.Mutex{}
		e.locks[source] = l
	}
	return l
}

// Reconcile applies one source-run. Runs for the same source are serialized.
// A failed run still records the listings it saw but never counts absences.
func (e *Engine) Reconcile(ctx context.Context, batch Batch) (Result, error) {
	result := Result{Source: batch.Source}

	if batch.Source == "" {
		return result, fmt.Errorf("batch source is empty")
	}
	if batch.RunAt.IsZero() {
		return result, fmt.Errorf("batch for %s has no run timestamp", batch.Source)
	}

	lock := e.sourceLock(batch.Source)
	lock.Lock()
	defer lock.Unlock()

	observed, order, duplicates, err := dedupe(batch)
	if err != nil {
		return result, err
	}
	result.Found = len(order)
	result.Duplicates = duplicates

	existing, err := e.repo.GetListings(ctx, listing.Filter{Source: batch.Source})
	if err != nil {
		return result, fmt.Errorf("failed to load listings for %s: %w", batch.Source, err)
	}

	stored := make(map[string]listing.Record, len(existing))
	for _, r := range existing {
		stored[r.SourceID] = r
	}

	runAt := batch.RunAt.UTC()
	var changes []listing.Record

	for _, sourceID := range order {
		c := observed[sourceID]
		prev, ok := stored[sourceID]

		if !ok {
			changes = append(changes, listing.Record{
				ID:               ListingID(batch.Source, sourceID),
				CanonicalListing: c,
				IsActive:         true,
				FirstSeen:        runAt,
				LastSeen:         runAt,
				LastCheckedAt:    runAt,
			})
			result.New++
			continue
		}

		if runAt.Before(prev.LastCheckedAt) {
			result.Stale++
			continue
		}

		// Relative posted dates resolve against each run; keep the earliest.
		if !prev.DatePosted.IsZero() && (c.DatePosted.IsZero() || prev.DatePosted.Before(c.DatePosted)) {
			c.DatePosted = prev.DatePosted
		}

		next := prev
		next.CanonicalListing = c
		next.IsActive = true
		next.LastSeen = runAt
		next.LastCheckedAt = runAt
		next.ConsecutiveAbsences = 0
		next.DeactivatedAt = nil

		switch {
		case !prev.IsActive:
			result.Reactivated++
		case !sameContent(prev.CanonicalListing, c):
			result.Updated++
		default:
			result.Unchanged++
		}

		changes = append(changes, next)
	}

	if batch.Succeeded {
		for _, prev := range existing {
			if _, seen := observed[prev.SourceID]; seen {
				continue
			}
			if !prev.IsActive || !prev.LastCheckedAt.Before(runAt) {
				continue
			}

			next := prev
			next.ConsecutiveAbsences++
			next.LastCheckedAt = runAt
			if next.ConsecutiveAbsences > e.graceThreshold {
				next.IsActive = false
				deactivatedAt := runAt
				next.DeactivatedAt = &deactivatedAt
				result.Deactivated++
			} else {
				result.Absent++
			}
			changes = append(changes, next)
		}
	} else {
		slog.Warn("Source run failed, skipping absence sweep", "source", batch.Source, "observed", result.Found)
	}

	if len(changes) > 0 {
		if err := e.repo.UpsertListings(ctx, changes); err != nil {
			return result, fmt.Errorf("failed to store listings for %s: %w", batch.Source, err)
		}
	}

	slog.Debug("Source run reconciled",
		"source", batch.Source,
		"succeeded", batch.Succeeded,
		"found", result.Found,
		"new", result.New,
		"updated", result.Updated,
		"reactivated", result.Reactivated,
		"deactivated", result.Deactivated)

	return result, nil
}

// dedupe collapses repeated source ids within a batch. The later record wins
// but keeps the position of the first occurrence.
func dedupe(batch Batch) (map[string]listing.CanonicalListing, []string, int, error) {
	observed := make(map[string]listing.CanonicalListing, len(batch.Listings))
	order := make([]string, 0, len(batch.Listings))
	duplicates := 0

	for _, c := range batch.Listings {
		if c.Source != batch.Source {
			return nil, nil, 0, fmt.Errorf("listing %q belongs to source %q, not %q", c.SourceID, c.Source, batch.Source)
		}
		if c.SourceID == "" {
			return nil, nil, 0, fmt.Errorf("listing from %s has no source id", batch.Source)
		}

		if _, ok := observed[c.SourceID]; ok {
			duplicates++
		} else {
			order = append(order, c.SourceID)
		}
		observed[c.SourceID] = c
	}

	return observed, order, duplicates, nil
}

// sameContent compares listings ignoring the observation timestamp.
func sameContent(a, b listing.CanonicalListing) bool {
	a.ObservedAt = time.Time{}
	b.ObservedAt = time.Time{}
	return a.Fingerprint() == b.Fingerprint()
}
