package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key this client writes.
const keyPrefix = "backoffice"

// QueryKey identifies one cached list query. Two queries that differ in any
// parameter are independent entries.
type QueryKey struct {
	// Collection is the upstream collection ("fiscalizacoes", "documentos").
	Collection string

	// Page is the requested page number.
	Page int

	// Search is the search term, empty for plain listings.
	Search string

	// Filters are additional query filters (e.g. type=T).
	Filters url.Values
}

// String generates a deterministic cache key string.
// Format: backoffice:collection:page=N:q=term:filter1=val1
func (k QueryKey) String() string {
	parts := []string{keyPrefix, strings.Trim(k.Collection, "/")}

	parts = append(parts, fmt.Sprintf("page=%d", k.Page))

	if k.Search != "" {
		parts = append(parts, fmt.Sprintf("q=%s", strings.ToLower(k.Search)))
	}

	if len(k.Filters) > 0 {
		filterKeys := make([]string, 0, len(k.Filters))
		for key := range k.Filters {
			filterKeys = append(filterKeys, key)
		}
		sort.Strings(filterKeys)

		for _, key := range filterKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Filters.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// CollectionPattern returns the Redis match pattern covering every entry of
// a collection, for synchronous invalidation after a mutation.
func CollectionPattern(collection string) string {
	return keyPrefix + ":" + strings.Trim(collection, "/") + ":*"
}
