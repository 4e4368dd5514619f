package cache

import (
	"fmt"
	"sort"
	"strings"
)

// CacheKey identifies a cached API response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/v2/category/tree").
	Endpoint string

	// Params are the request body fields that select the response
	// (e.g., {"category_id": "17028922", "language": "DEFAULT"}).
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: catalog:endpoint:param1=val1:param2=val2
//
// Example:
//
//	catalog:v2/category/tree:category_id=17028922:language=DEFAULT
func (k CacheKey) String() string {
	parts := []string{"catalog"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	return strings.Join(parts, ":")
}
