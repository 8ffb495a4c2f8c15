package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/lysyi3m/fractional-comb/app/lifecycle"
	"github.com/lysyi3m/fractional-comb/app/listing"
	"github.com/lysyi3m/fractional-comb/app/snapshot"
	"github.com/lysyi3m/fractional-comb/app/source"
)

var runTime = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

func newSourceTask(adapter *mockAdapter, listings *mockListingRepository, runs *mockRunRepository, lockDir string) *ProcessSourceTask {
	task := NewProcessSourceTask(adapter, passthroughCanonicalizer{}, lifecycle.NewEngine(listings, 1), runs, lockDir)
	task.now = func() time.Time { return runTime }
	return task
}

func TestProcessSourceTask_Success(t *testing.T) {
	adapter := &mockAdapter{name: "board", records: []listing.RawRecord{rawRecord("board", "a"), rawRecord("board", "b")}}
	listings := newMockListingRepository()
	runs := &mockRunRepository{}

	task := newSourceTask(adapter, listings, runs, t.TempDir())
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	run, ok := runs.lastRun()
	if !ok {
		t.Fatal("Expected a finished run")
	}
	if run.Status != listing.RunStatusSuccess {
		t.Errorf("Expected status success, got %s", run.Status)
	}
	if run.ListingsFound != 2 || run.ListingsNew != 2 {
		t.Errorf("Expected 2 found and 2 new, got %d and %d", run.ListingsFound, run.ListingsNew)
	}
	if run.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	total, active, _ := listings.GetListingCounts(context.Background())
	if total != 2 || active != 2 {
		t.Errorf("Expected 2 active listings, got %d of %d", active, total)
	}

	if task.Result == nil || task.Result.New != 2 {
		t.Errorf("Expected result with 2 new listings, got %+v", task.Result)
	}
}

func TestProcessSourceTask_FetchFailureIsRecorded(t *testing.T) {
	adapter := &mockAdapter{name: "board", records: []listing.RawRecord{rawRecord("board", "a")}}
	listings := newMockListingRepository()
	runs := &mockRunRepository{}
	lockDir := t.TempDir()

	if err := newSourceTask(adapter, listings, runs, lockDir).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	adapter.err = errors.New("HTTP 503")
	task := newSourceTask(adapter, listings, runs, lockDir)
	task.now = func() time.Time { return runTime.Add(48 * time.Hour) }

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected fetch failure to be absorbed, got %v", err)
	}

	run, _ := runs.lastRun()
	if run.Status != listing.RunStatusFailed {
		t.Errorf("Expected status failed, got %s", run.Status)
	}
	if run.Error != "HTTP 503" {
		t.Errorf("Expected error HTTP 503, got %q", run.Error)
	}

	rec, _ := listings.GetListing(context.Background(), "board", "a")
	if rec == nil || !rec.IsActive || rec.ConsecutiveAbsences != 0 {
		t.Errorf("Expected listing untouched by failed run, got %+v", rec)
	}
}

func TestProcessSourceTask_RepositoryErrorIsReturned(t *testing.T) {
	adapter := &mockAdapter{name: "board", records: []listing.RawRecord{rawRecord("board", "a")}}
	listings := newMockListingRepository()
	listings.failWrite = true
	runs := &mockRunRepository{}

	err := newSourceTask(adapter, listings, runs, "").Execute(context.Background())
	if err == nil {
		t.Fatal("Expected error when listings cannot be stored")
	}

	run, _ := runs.lastRun()
	if run.Status != listing.RunStatusFailed {
		t.Errorf("Expected status failed, got %s", run.Status)
	}
}

func TestProcessSourceTask_SkipsWhenLocked(t *testing.T) {
	lockDir := t.TempDir()
	held := flock.New(filepath.Join(lockDir, "board.lock"))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("Expected to take the lock, got %v", err)
	}
	defer held.Unlock()

	adapter := &mockAdapter{name: "board"}
	runs := &mockRunRepository{}

	if err := newSourceTask(adapter, newMockListingRepository(), runs, lockDir).Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if runs.started != 0 || adapter.calls != 0 {
		t.Errorf("Expected run to be skipped, got %d runs and %d fetches", runs.started, adapter.calls)
	}
}

func TestProcessSourceTask_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newSourceTask(&mockAdapter{name: "board"}, newMockListingRepository(), &mockRunRepository{}, "")
	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func compRecord(id, source string, hourly float64, active bool) listing.Record {
	return listing.Record{
		ID: id,
		CanonicalListing: listing.CanonicalListing{
			RawRecord: listing.RawRecord{
				Source:           source,
				SourceID:         id,
				CompensationType: listing.CompensationHourly,
			},
			FunctionCategory: "finance",
			SeniorityTier:    "c_suite",
			LocationType:     listing.LocationRemote,
			HourlyMin:        listing.Float(hourly),
			HourlyMax:        listing.Float(hourly + 50),
		},
		IsActive:      active,
		FirstSeen:     runTime,
		LastSeen:      runTime,
		LastCheckedAt: runTime,
	}
}

func TestSnapshotTask(t *testing.T) {
	listings := newMockListingRepository()
	listings.UpsertListings(context.Background(), []listing.Record{
		compRecord("1", "board", 100, true),
		compRecord("2", "board", 150, true),
		compRecord("3", "feed", 200, true),
		compRecord("4", "feed", 300, false),
	})
	snapshots := newMockSnapshotRepository()

	task := NewSnapshotTask(runTime, listings, snapshots, snapshot.NewAggregator(3))
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if task.Inserted != 1 {
		t.Errorf("Expected 1 compensation snapshot, got %d", task.Inserted)
	}
	if got := snapshots.compensation[0].SampleSize; got != 3 {
		t.Errorf("Expected sample size 3, got %d", got)
	}

	all, ok := snapshots.dailyFor(snapshot.AllSources)
	if !ok {
		t.Fatal("Expected a listing snapshot for all sources")
	}
	if all.TotalActive != 3 {
		t.Errorf("Expected 3 active, got %d", all.TotalActive)
	}

	feed, ok := snapshots.dailyFor("feed")
	if !ok {
		t.Fatal("Expected a listing snapshot for feed")
	}
	if feed.TotalActive != 1 || feed.Source != "feed" {
		t.Errorf("Expected 1 active for feed, got %+v", feed)
	}
}

func writeSourceConfigs(t *testing.T, names ...string) *source.ConfigCache {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		data := fmt.Sprintf("url: \"https://%s.example.com/feed\"\n", name)
		if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cache := source.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}
	return cache
}

func testPipeline(t *testing.T, adapters map[string]*mockAdapter) (*Pipeline, *mockListingRepository, *mockSnapshotRepository, *mockRunRepository) {
	t.Helper()
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}

	listings := newMockListingRepository()
	snapshots := newMockSnapshotRepository()
	runs := &mockRunRepository{}

	p := &Pipeline{
		ConfigCache:   writeSourceConfigs(t, names...),
		Canonicalizer: passthroughCanonicalizer{},
		Engine:        lifecycle.NewEngine(listings, 1),
		ListingRepo:   listings,
		SnapshotRepo:  snapshots,
		RunRepo:       runs,
		Aggregator:    snapshot.NewAggregator(3),
		LockDir:       t.TempDir(),
		NewAdapter: func(config *source.Config, deps source.Deps) (source.Adapter, error) {
			return adapters[config.Name], nil
		},
	}
	return p, listings, snapshots, runs
}

func TestRunner_RunSources(t *testing.T) {
	p, listings, _, runs := testPipeline(t, map[string]*mockAdapter{
		"board": {name: "board", records: []listing.RawRecord{rawRecord("board", "a"), rawRecord("board", "b")}},
		"feed":  {name: "feed", records: []listing.RawRecord{rawRecord("feed", "x")}},
		"down":  {name: "down", err: errors.New("connection refused")},
	})

	results, err := NewRunner(p, 2).RunSources(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected failed fetches to be absorbed, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
	if len(runs.finished) != 3 {
		t.Errorf("Expected 3 finished runs, got %d", len(runs.finished))
	}

	total, _, _ := listings.GetListingCounts(context.Background())
	if total != 3 {
		t.Errorf("Expected 3 listings, got %d", total)
	}
}

func TestRunner_UnknownSource(t *testing.T) {
	p, _, _, _ := testPipeline(t, map[string]*mockAdapter{
		"board": {name: "board"},
	})

	_, err := NewRunner(p, 1).RunSources(context.Background(), []string{"board", "missing"})
	if err == nil {
		t.Fatal("Expected error for unknown source")
	}
	if !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("Expected failure count in error, got %v", err)
	}
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	if _, err := NewScheduler(&Pipeline{}, "every tuesday", 1); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestScheduler_CycleRunsSourcesThenSnapshot(t *testing.T) {
	p, _, snapshots, runs := testPipeline(t, map[string]*mockAdapter{
		"board": {name: "board", records: []listing.RawRecord{rawRecord("board", "a")}},
		"feed":  {name: "feed", records: []listing.RawRecord{rawRecord("feed", "x")}},
	})

	s, err := NewScheduler(p, "@yearly", 2)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := snapshots.dailyFor(snapshot.AllSources); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	all, ok := snapshots.dailyFor(snapshot.AllSources)
	if !ok {
		t.Fatal("Expected snapshot after the source runs")
	}
	if all.TotalActive != 2 {
		t.Errorf("Expected 2 active listings in snapshot, got %d", all.TotalActive)
	}
	if _, ok := runs.lastRun(); !ok {
		t.Error("Expected finished runs")
	}
}

func TestScheduler_StopCompletesQueuedTasks(t *testing.T) {
	p, _, snapshots, _ := testPipeline(t, map[string]*mockAdapter{
		"board": {name: "board", records: []listing.RawRecord{rawRecord("board", "a")}},
		"feed":  {name: "feed", records: []listing.RawRecord{rawRecord("feed", "x")}},
	})

	s, err := NewScheduler(p, "@yearly", 1)
	if err != nil {
		t.Fatal(err)
	}

	// No workers are started, so the cycle's tasks stay queued.
	completed := make(chan string, 4)
	for _, name := range p.EnabledSources() {
		task, err := p.ProcessSourceTask(name)
		if err != nil {
			t.Fatal(err)
		}
		task.OnComplete(func() { completed <- name })
		if err := s.EnqueueTask(task); err != nil {
			t.Fatal(err)
		}
	}

	s.Stop()

	if len(completed) != 2 {
		t.Errorf("Expected 2 queued tasks completed on stop, got %d", len(completed))
	}
	if len(s.taskQueue) != 0 {
		t.Errorf("Expected empty queue after stop, got %d", len(s.taskQueue))
	}
	if _, ok := snapshots.dailyFor(snapshot.AllSources); ok {
		t.Error("Expected no snapshot to run after stop")
	}
	if err := s.EnqueueTask(p.SnapshotTask(time.Now())); err == nil {
		t.Error("Expected enqueue to fail after stop")
	}
}

func TestScheduler_CycleWaiterReturnsAfterStop(t *testing.T) {
	p, _, _, _ := testPipeline(t, map[string]*mockAdapter{
		"board": {name: "board", records: []listing.RawRecord{rawRecord("board", "a")}},
	})

	s, err := NewScheduler(p, "@yearly", 1)
	if err != nil {
		t.Fatal(err)
	}

	s.enqueueCycle()
	s.Stop()

	// The waiter would enqueue the snapshot if it ever returned with the
	// scheduler running; after stop it must leave the queue untouched.
	time.Sleep(50 * time.Millisecond)
	if len(s.taskQueue) != 0 {
		t.Errorf("Expected empty queue after stop, got %d", len(s.taskQueue))
	}
}

func TestScheduler_EnqueueUnknownSource(t *testing.T) {
	p, _, _, _ := testPipeline(t, map[string]*mockAdapter{})

	s, err := NewScheduler(p, "@daily", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.EnqueueSource("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryBackoff(tt.retry); got != tt.expected {
			t.Errorf("retry %d: expected %v, got %v", tt.retry, tt.expected, got)
		}
	}
}

func TestTask_CompleteRunsOnce(t *testing.T) {
	task := NewTask(TaskTypeSnapshot, "all")
	calls := 0
	task.OnComplete(func() { calls++ })

	task.Complete()
	task.Complete()

	if calls != 1 {
		t.Errorf("Expected 1 completion callback, got %d", calls)
	}
	if !task.CanRetry() {
		t.Error("Expected new task to be retryable")
	}
}
