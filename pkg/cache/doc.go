// Package cache stores seller API catalog responses in Redis.
//
// Category metadata changes rarely, while a full crawl issues one request per
// category and one per attribute batch. Caching those responses lets a
// re-run after a partial failure skip the lookups that already succeeded.
// Dictionary value pages are not cached.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint: "/v2/category/tree",
//		Params:   map[string]string{"category_id": "17028922", "language": "RU"},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 6*time.Hour))
//	}
//
// Purge drops every entry of one endpoint, for example before a run that
// must see fresh category metadata:
//
//	removed, err := manager.Purge(ctx, "/v2/category/tree")
//
// # Metrics
//
//   - catalog_cache_hits_total - Cache hits
//   - catalog_cache_misses_total - Cache misses
//   - catalog_cache_size_bytes - Bytes written to the cache
//   - catalog_cache_errors_total{operation} - Failed get, set, delete and purge calls
package cache
