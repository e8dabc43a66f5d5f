package view

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fiscaliza/backoffice-client/internal/testutil"
	"github.com/fiscaliza/backoffice-client/pkg/api"
	"github.com/fiscaliza/backoffice-client/pkg/cache"
	"github.com/fiscaliza/backoffice-client/pkg/debounce"
	"github.com/fiscaliza/backoffice-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
)

// newTestStore wires a store against the mock with caching and budget gating
// disabled; those collaborators have their own Redis-backed tests.
func newTestStore(t *testing.T, mock *testutil.MockBackOffice, cfg Config) *Store {
	t.Helper()

	clientCfg := api.DefaultConfig(mock.URL())
	clientCfg.Retry = api.RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
	}
	client, err := api.New(clientCfg)
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}

	store, err := NewStore(client, nil, nil, cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// seedCollection installs n sequential records, alternating plates between
// the ABC and XYZ prefixes so searches split the set.
func seedCollection(mock *testutil.MockBackOffice, name string, n int) {
	records := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		plate := fmt.Sprintf("ABC%04d", i)
		if i%2 == 0 {
			plate = fmt.Sprintf("XYZ%04d", i)
		}
		records = append(records, testutil.NewRecord(
			fmt.Sprintf("%d", i),
			plate,
			fmt.Sprintf("DOC-%d", i),
			"conforme",
			"2024-01-01T10:00:00",
		))
	}
	mock.SetCollection(name, records)
}

func TestStoreLoadServesOnePage(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seedCollection(mock, "fiscalizacoes", 25)

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	snap, err := store.Load(context.Background(), 2)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(snap.Items) != 10 {
		t.Errorf("page 2 has %d items, want 10", len(snap.Items))
	}
	if snap.Pagination.CurrentPage != 2 {
		t.Errorf("current_page = %d, want 2", snap.Pagination.CurrentPage)
	}
	if snap.Pagination.TotalRecords != 25 {
		t.Errorf("total_records = %d, want 25", snap.Pagination.TotalRecords)
	}
	if !snap.Pagination.HasNext || !snap.Pagination.HasPrevious {
		t.Errorf("pagination flags = %+v, want both neighbors", snap.Pagination)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("made %d requests, want 1 (single page, no sweep)", mock.GetRequestCount())
	}
}

func TestStoreSearchFindsMatchesAcrossServerPages(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seedCollection(mock, "fiscalizacoes", 25)

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	// The XYZ plates are the even-numbered records, spread over all three
	// server pages. Only a sweep can find them all.
	snap, err := store.SearchNow(context.Background(), "xyz", 1)
	if err != nil {
		t.Fatalf("SearchNow failed: %v", err)
	}

	if snap.Pagination.TotalRecords != 12 {
		t.Errorf("search total = %d, want 12", snap.Pagination.TotalRecords)
	}
	if len(snap.Items) != 10 {
		t.Errorf("artificial page 1 has %d items, want PageSize=10", len(snap.Items))
	}
	if !snap.Pagination.HasNext {
		t.Error("12 matches at page size 10 should report has_next")
	}
	if got := len(mock.PagesServed); got != 3 {
		t.Errorf("sweep fetched %d pages, want 3", got)
	}
}

func TestStoreShortQueryFallsBackToPlainListing(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seedCollection(mock, "fiscalizacoes", 25)

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	snap, err := store.SearchNow(context.Background(), "x", 1)
	if err != nil {
		t.Fatalf("SearchNow failed: %v", err)
	}

	// Below the minimum query length there is no sweep: one page request.
	if mock.GetRequestCount() != 1 {
		t.Errorf("made %d requests, want 1", mock.GetRequestCount())
	}
	if snap.Pagination.TotalRecords != 25 {
		t.Errorf("total = %d, want the unfiltered 25", snap.Pagination.TotalRecords)
	}
}

func TestStoreSweepTruncationSurfacesInSnapshot(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seedCollection(mock, "fiscalizacoes", 25)

	cfg := DefaultConfig("fiscalizacoes")
	cfg.Sweep = pagination.Config{MaxPages: 2}
	store := newTestStore(t, mock, cfg)

	snap, err := store.SearchNow(context.Background(), "xyz", 1)
	if err != nil {
		t.Fatalf("SearchNow failed: %v", err)
	}

	if !snap.Truncated {
		t.Error("snapshot should flag the truncated sweep")
	}
	// Pages 1 and 2 hold records 1..20, so 10 even-numbered matches.
	if snap.Pagination.TotalRecords != 10 {
		t.Errorf("partial search total = %d, want 10", snap.Pagination.TotalRecords)
	}
}

func TestStoreLoadErrorLandsInSnapshot(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	// No collection installed: the mock answers 404.

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	snap, err := store.Load(context.Background(), 1)
	if err == nil {
		t.Fatal("Load should fail for an unknown collection")
	}
	if snap.Error == "" {
		t.Error("snapshot should carry the error message")
	}
}

func TestStoreStatsAggregatesFullCollection(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()

	// 15 records across two server pages, all created "today".
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	records := make([]map[string]any, 0, 15)
	for i := 1; i <= 15; i++ {
		recordType := "conforme"
		if i%3 == 0 {
			recordType = "nao_conforme"
		}
		records = append(records, testutil.NewRecord(
			fmt.Sprintf("%d", i),
			fmt.Sprintf("ABC%04d", i),
			fmt.Sprintf("DOC-%d", i),
			recordType,
			"2024-01-01T10:00:00",
		))
	}
	mock.SetCollection("fiscalizacoes", records)

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	buckets, err := store.Stats(context.Background(), now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if len(buckets) != 7 {
		t.Fatalf("got %d buckets, want 7", len(buckets))
	}
	today := buckets[6]
	if today.Total != 15 {
		t.Errorf("today's total = %d, want all 15 records", today.Total)
	}
	if today.Counts["conforme"] != 10 || today.Counts["nao_conforme"] != 5 {
		t.Errorf("today's counts = %v, want 10 conforme / 5 nao_conforme", today.Counts)
	}
	if got := len(mock.PagesServed); got != 2 {
		t.Errorf("stats sweep fetched %d pages, want 2", got)
	}
}

func TestStoreMutateFallsBackToSupportedRoute(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	mock.SetStatus("POST /fiscalizacoes/delete", http.StatusOK, "removido")

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	result, err := store.Mutate(context.Background(), "42")
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if result.StrategyName != "deleted_by_post" {
		t.Errorf("strategy = %q, want deleted_by_post", result.StrategyName)
	}
	if result.Simulated {
		t.Error("a real route succeeded; result must not be simulated")
	}
}

func TestStoreMutateSimulatedWhenAllowed(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	// Every mutation route 404s.

	cfg := DefaultConfig("fiscalizacoes")
	cfg.AllowSimulated = true
	store := newTestStore(t, mock, cfg)

	result, err := store.Mutate(context.Background(), "42")
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if !result.Simulated {
		t.Error("with no route available, the simulated strategy should resolve the chain")
	}
}

func TestStoreCreateAdaptsBodyShape(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	mock.SetStatus("POST /fiscalizacoes/create", http.StatusOK, "criado")

	store := newTestStore(t, mock, DefaultConfig("fiscalizacoes"))

	result, err := store.Create(context.Background(), map[string]string{"placa": "ABC1234"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if result.StrategyName != "created_legacy" {
		t.Errorf("strategy = %q, want created_legacy", result.StrategyName)
	}
}

func TestStoreToleratesCacheBackendErrors(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seedCollection(mock, "fiscalizacoes", 15)

	// A cache whose backend is unreachable: every Get and Set errors.
	broken := cache.NewManager(redis.NewClient(&redis.Options{
		Addr:        "localhost:0",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}), time.Minute)

	clientCfg := api.DefaultConfig(mock.URL())
	clientCfg.Retry = api.RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
	}
	client, err := api.New(clientCfg)
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}

	store, err := NewStore(client, broken, nil, DefaultConfig("fiscalizacoes"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.Load(ctx, 1); err != nil {
		t.Errorf("Load must fall through to the upstream on cache errors: %v", err)
	}
	if _, err := store.SearchNow(ctx, "abc", 1); err != nil {
		t.Errorf("SearchNow must fall through to the sweep on cache errors: %v", err)
	}
	buckets, err := store.Stats(ctx, time.Now())
	if err != nil {
		t.Fatalf("Stats must fall through to the sweep on cache errors: %v", err)
	}
	if len(buckets) != 7 {
		t.Errorf("got %d buckets, want 7", len(buckets))
	}
}

func TestStoreDebouncedQueryUpdatesSnapshot(t *testing.T) {
	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seedCollection(mock, "fiscalizacoes", 25)

	cfg := DefaultConfig("fiscalizacoes")
	cfg.Debounce = debounce.Config{
		MinQueryLength: 2,
		Interval:       30 * time.Millisecond,
	}
	store := newTestStore(t, mock, cfg)

	// Keystrokes inside the debounce window collapse into one search.
	store.SetQuery("x")
	store.SetQuery("xy")
	store.SetQuery("xyz")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := store.Snapshot(); snap.Pagination.TotalRecords == 12 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("snapshot never settled on the search result: %+v", store.Snapshot())
}
