// Package resilience groups the fault tolerance helpers used by the watcher.
//
// Subpackages:
//   - circuitbreaker: sony/gobreaker wrappers for the catalog, the alert channels and the snapshot database
//   - retry: bounded retries with exponential backoff, plus the jitter and backoff math the scheduler sleeps on
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.CatalogConfig("catalog-api"))
//	err := retry.WithBackoff(ctx, retry.CatalogFetchConfig(), func() error {
//	    return cb.Run(fetchOnce)
//	})
package resilience
