package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fiscaliza/backoffice-client/internal/config"
	"github.com/fiscaliza/backoffice-client/pkg/api"
	"github.com/fiscaliza/backoffice-client/pkg/budget"
	"github.com/fiscaliza/backoffice-client/pkg/cache"
	"github.com/fiscaliza/backoffice-client/pkg/debounce"
	"github.com/fiscaliza/backoffice-client/pkg/logging"
	"github.com/fiscaliza/backoffice-client/pkg/pagination"
	"github.com/fiscaliza/backoffice-client/pkg/view"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	apiCfg := api.DefaultConfig(cfg.Upstream.BaseURL)
	apiCfg.Timeout = cfg.Upstream.Timeout
	apiClient, err := api.New(apiCfg)
	if err != nil {
		log.Fatalf("Failed to create back-office client: %v", err)
	}

	cacheManager := cache.NewManager(redisClient, cfg.Cache.TTL)
	tracker := budget.NewTracker(redisClient, logging.NewLogger("failure-budget"))

	srv := &proxy{
		client:  apiClient,
		cache:   cacheManager,
		tracker: tracker,
		config:  cfg,
		stores:  make(map[string]*view.Store),
	}

	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/views/", srv.viewsHandler)

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("upstream", cfg.Upstream.BaseURL).
		Bool("allow_simulated", cfg.AllowSimulated).
		Msg("Starting back-office proxy")

	if cfg.AllowSimulated {
		logger.Warn().Msg("Simulated mutation strategy is ENABLED - do not run this configuration in production")
	}

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type proxy struct {
	client  *api.Client
	cache   *cache.Manager
	tracker *budget.Tracker
	config  *config.Config

	mu     sync.Mutex
	stores map[string]*view.Store
}

// store returns the read model for a collection, creating it on first use.
func (p *proxy) store(collection string) (*view.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[collection]; ok {
		return s, nil
	}

	cfg := view.DefaultConfig(collection)
	cfg.PageSize = p.config.Search.PageSize
	cfg.WindowDays = p.config.Stats.WindowDays
	cfg.Sweep = pagination.Config{MaxPages: p.config.Sweep.MaxPages}
	cfg.Debounce = debounce.Config{
		MinQueryLength: p.config.Search.MinQueryLength,
		Interval:       p.config.Search.DebounceInterval,
	}
	cfg.AllowSimulated = p.config.AllowSimulated

	s, err := view.NewStore(p.client, p.cache, p.tracker, cfg)
	if err != nil {
		return nil, err
	}
	p.stores[collection] = s
	return s, nil
}

// viewsHandler routes:
//
//	GET    /views/<collection>?page=N&q=TERM  -> read model
//	GET    /views/<collection>/stats          -> trailing daily buckets
//	DELETE /views/<collection>/<id>           -> strategy-chain removal
func (p *proxy) viewsHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/views/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "collection required", http.StatusBadRequest)
		return
	}
	collection := parts[0]

	s, err := p.store(collection)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		snap, err := s.SearchNow(ctx, r.URL.Query().Get("q"), page)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, snap)
			return
		}
		writeJSON(w, http.StatusOK, snap)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "stats":
		buckets, err := s.Stats(ctx, time.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, buckets)

	case r.Method == http.MethodDelete && len(parts) == 2:
		result, err := s.Mutate(ctx, parts[1])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"strategy":  result.StrategyName,
			"simulated": result.Simulated,
		})

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
