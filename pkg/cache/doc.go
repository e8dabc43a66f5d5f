// Package cache provides the per-query response cache with Redis backend.
//
// Staleness is bounded two ways:
//
// - A fixed time-to-live per entry (no upstream cache headers exist)
// - Synchronous invalidation of a collection's entries when a mutation
//   against that collection succeeds
//
// Keys are derived deterministically from the exact query parameters
// (collection, page, search term, filters), so each distinct query is an
// independent entry and no locking beyond Redis itself is needed.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 30*time.Second)
//
//	key := cache.QueryKey{
//		Collection: "fiscalizacoes",
//		Page:       2,
//		Search:     "abc1234",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch upstream, then manager.Set(ctx, key, data)
//	}
//
//	// After a successful mutation:
//	manager.InvalidateCollection(ctx, "fiscalizacoes")
package cache
