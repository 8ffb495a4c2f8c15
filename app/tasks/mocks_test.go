package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/listing"
)

type mockAdapter struct {
	name    string
	records []listing.RawRecord
	err     error
	calls   int
}

func (m *mockAdapter) Name() string {
	return m.name
}

func (m *mockAdapter) Fetch(ctx context.Context) ([]listing.RawRecord, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

// passthroughCanonicalizer copies raw records without classifying them.
type passthroughCanonicalizer struct{}

func (passthroughCanonicalizer) RunAll(ctx context.Context, raws []listing.RawRecord) []listing.CanonicalListing {
	out := make([]listing.CanonicalListing, len(raws))
	for i, raw := range raws {
		out[i] = listing.CanonicalListing{RawRecord: raw, FunctionCategory: "finance", SeniorityTier: "c_suite", LocationType: listing.LocationRemote}
	}
	return out
}

var _ database.ListingRepositoryInterface = (*mockListingRepository)(nil)

type mockListingRepository struct {
	mu        sync.Mutex
	records   map[string]listing.Record
	failWrite bool
}

func newMockListingRepository() *mockListingRepository {
	return &mockListingRepository{records: make(map[string]listing.Record)}
}

func (m *mockListingRepository) GetListing(ctx context.Context, source, sourceID string) (*listing.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Source == source && r.SourceID == sourceID {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *mockListingRepository) GetListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []listing.Record
	for _, r := range m.records {
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		if filter.ActiveOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockListingRepository) GetActiveListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error) {
	filter.ActiveOnly = true
	return m.GetListings(ctx, filter)
}

func (m *mockListingRepository) GetListingCounts(ctx context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, r := range m.records {
		if r.IsActive {
			active++
		}
	}
	return len(m.records), active, nil
}

func (m *mockListingRepository) UpsertListing(ctx context.Context, record listing.Record) error {
	return m.UpsertListings(ctx, []listing.Record{record})
}

func (m *mockListingRepository) UpsertListings(ctx context.Context, records []listing.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("database is locked")
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

var _ database.SnapshotRepositoryInterface = (*mockSnapshotRepository)(nil)

type mockSnapshotRepository struct {
	mu           sync.Mutex
	compensation []listing.CompensationSnapshot
	daily        map[string]listing.ListingSnapshot
}

func newMockSnapshotRepository() *mockSnapshotRepository {
	return &mockSnapshotRepository{daily: make(map[string]listing.ListingSnapshot)}
}

func (m *mockSnapshotRepository) InsertCompensationSnapshots(ctx context.Context, rows []listing.CompensationSnapshot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensation = append(m.compensation, rows...)
	return len(rows), nil
}

func (m *mockSnapshotRepository) GetCompensationSnapshots(ctx context.Context, date time.Time) ([]listing.CompensationSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compensation, nil
}

func (m *mockSnapshotRepository) GetLatestCompensationSnapshotDate(ctx context.Context) (*time.Time, error) {
	return nil, nil
}

func (m *mockSnapshotRepository) UpsertListingSnapshot(ctx context.Context, snapshot listing.ListingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[snapshot.Source] = snapshot
	return nil
}

func (m *mockSnapshotRepository) GetListingSnapshots(ctx context.Context, source string, since time.Time) ([]listing.ListingSnapshot, error) {
	return nil, nil
}

func (m *mockSnapshotRepository) dailyFor(source string) (listing.ListingSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.daily[source]
	return s, ok
}

var _ database.RunRepositoryInterface = (*mockRunRepository)(nil)

type mockRunRepository struct {
	mu       sync.Mutex
	nextID   int64
	started  int
	finished []listing.RunLog
}

func (m *mockRunRepository) StartRun(ctx context.Context, source string, startedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.started++
	return m.nextID, nil
}

func (m *mockRunRepository) FinishRun(ctx context.Context, run listing.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, run)
	return nil
}

func (m *mockRunRepository) GetRecentRuns(ctx context.Context, source string, limit int) ([]listing.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished, nil
}

func (m *mockRunRepository) lastRun() (listing.RunLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.finished) == 0 {
		return listing.RunLog{}, false
	}
	return m.finished[len(m.finished)-1], true
}

func rawRecord(source, sourceID string) listing.RawRecord {
	return listing.RawRecord{
		Source:           source,
		SourceID:         sourceID,
		Title:            "Fractional CFO " + sourceID,
		CompanyName:      "Acme",
		CompensationType: listing.CompensationHourly,
		CompensationMin:  listing.Float(150),
		CompensationMax:  listing.Float(200),
		ObservedAt:       time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC),
	}
}
