package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fiscaliza/backoffice-client/internal/testutil"
	"github.com/fiscaliza/backoffice-client/pkg/api"
	"github.com/fiscaliza/backoffice-client/pkg/budget"
	"github.com/fiscaliza/backoffice-client/pkg/cache"
	"github.com/fiscaliza/backoffice-client/pkg/view"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	// testcontainers panics (rather than returning an error) when no Docker
	// host can be found at all; fold that into the same skip path.
	container, err := func() (c testcontainers.Container, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newAPIClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()

	cfg := api.DefaultConfig(baseURL)
	cfg.Retry = api.RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
	}
	client, err := api.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create back-office client: %v", err)
	}
	return client
}

func seed(mock *testutil.MockBackOffice, name string, n int) {
	records := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, testutil.NewRecord(
			fmt.Sprintf("%d", i),
			fmt.Sprintf("ABC%04d", i),
			fmt.Sprintf("DOC-%d", i),
			"conforme",
			"2024-01-01T10:00:00",
		))
	}
	mock.SetCollection(name, records)
}

func TestCachedLoadSkipsUpstream(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seed(mock, "fiscalizacoes", 5)

	store, err := view.NewStore(
		newAPIClient(t, mock.URL()),
		cache.NewManager(redisClient, time.Minute),
		nil,
		view.DefaultConfig("fiscalizacoes"),
	)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Load(ctx, 1); err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	if _, err := store.Load(ctx, 1); err != nil {
		t.Fatalf("Second load failed: %v", err)
	}

	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("upstream saw %d requests, want 1 (second load served from cache)", got)
	}
}

func TestMutationInvalidatesCachedPages(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seed(mock, "fiscalizacoes", 5)
	mock.SetStatus("DELETE /fiscalizacoes/3", http.StatusOK, "removido")

	store, err := view.NewStore(
		newAPIClient(t, mock.URL()),
		cache.NewManager(redisClient, time.Minute),
		nil,
		view.DefaultConfig("fiscalizacoes"),
	)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Load(ctx, 1); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	result, err := store.Mutate(ctx, "3")
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if result.Simulated {
		t.Fatal("scripted DELETE route should have produced a real mutation")
	}

	before := mock.GetRequestCount()
	if _, err := store.Load(ctx, 1); err != nil {
		t.Fatalf("Load after mutation failed: %v", err)
	}
	if got := mock.GetRequestCount(); got != before+1 {
		t.Errorf("load after mutation made %d upstream requests, want 1 (cache invalidated)", got-before)
	}
}

func TestFailureBudgetBlocksSweepsAcrossInstances(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	// No collection installed: every fetch fails.

	tracker := budget.NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	// One instance burns through the budget.
	for i := 0; i < budget.FailureThresholdCritical; i++ {
		if err := tracker.RecordFailure(ctx); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	// A second instance sharing the same Redis sees the block.
	otherTracker := budget.NewTracker(redisClient, zerolog.Nop())
	store, err := view.NewStore(
		newAPIClient(t, mock.URL()),
		nil,
		otherTracker,
		view.DefaultConfig("fiscalizacoes"),
	)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	_, err = store.SearchNow(ctx, "abc", 1)
	if err != view.ErrSweepBlocked {
		t.Errorf("SearchNow = %v, want ErrSweepBlocked", err)
	}
}

func TestSearchResultsAreCachedPerQuery(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seed(mock, "fiscalizacoes", 25)
	mock.SetStatus("DELETE /fiscalizacoes/5", http.StatusOK, "removido")

	store, err := view.NewStore(
		newAPIClient(t, mock.URL()),
		cache.NewManager(redisClient, time.Minute),
		nil,
		view.DefaultConfig("fiscalizacoes"),
	)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.SearchNow(ctx, "abc", 1); err != nil {
		t.Fatalf("First search failed: %v", err)
	}
	swept := len(mock.PagesServed)
	if swept == 0 {
		t.Fatal("first search should have swept the collection")
	}

	// The identical query within the TTL is served from cache, no sweep.
	if _, err := store.SearchNow(ctx, "abc", 1); err != nil {
		t.Fatalf("Repeated search failed: %v", err)
	}
	if got := len(mock.PagesServed); got != swept {
		t.Errorf("repeated search fetched %d more pages, want 0 (cached)", got-swept)
	}

	// Another artificial page of the same query is its own cache entry.
	if _, err := store.SearchNow(ctx, "abc", 2); err != nil {
		t.Fatalf("Page 2 search failed: %v", err)
	}
	if got := len(mock.PagesServed); got == swept {
		t.Error("page 2 of the query should have swept on its first request")
	}

	// A mutation invalidates the collection, search keys included.
	if _, err := store.Mutate(ctx, "5"); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	before := len(mock.PagesServed)
	if _, err := store.SearchNow(ctx, "abc", 1); err != nil {
		t.Fatalf("Search after mutation failed: %v", err)
	}
	if got := len(mock.PagesServed); got == before {
		t.Error("search after mutation should re-sweep (cache invalidated)")
	}
}

func TestStatsAreCachedUnderTheirOwnKey(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockBackOffice()
	defer mock.Close()
	seed(mock, "fiscalizacoes", 15)

	store, err := view.NewStore(
		newAPIClient(t, mock.URL()),
		cache.NewManager(redisClient, time.Minute),
		nil,
		view.DefaultConfig("fiscalizacoes"),
	)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	first, err := store.Stats(ctx, now)
	if err != nil {
		t.Fatalf("First stats call failed: %v", err)
	}
	swept := mock.GetRequestCount()

	second, err := store.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Second stats call failed: %v", err)
	}

	if got := mock.GetRequestCount(); got != swept {
		t.Errorf("second stats call hit upstream %d more times, want 0", got-swept)
	}
	if len(first) != len(second) {
		t.Errorf("cached stats shape differs: %d vs %d buckets", len(first), len(second))
	}
}
