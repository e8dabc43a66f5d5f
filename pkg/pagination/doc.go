// Package pagination provides the canonical page descriptor and the
// exhaustive page collector for paginated back-office endpoints.
//
// The upstream API only answers single-page queries, so any cross-page
// computation (search, stats, 7-day aggregation) first needs the full
// collection in memory. The collector walks every page sequentially:
// each request's continuation (next page number, has_next flag) depends
// on the previous response, so pages are never fetched in parallel.
//
// Example usage:
//
//	c := pagination.NewCollector[api.Record](pagination.DefaultConfig())
//	records, err := c.CollectAll(ctx, fetch)
//
// The collector:
//   - Starts at page 1 and appends each page's items
//   - Continues while has_next is set, up to a hard iteration ceiling
//   - Falls back to current+1 when next-page metadata is missing
//   - Suppresses duplicate ids across pages
//   - Fails the whole sweep on any page error (no partial sets)
package pagination
