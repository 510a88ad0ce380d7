package stored_requests

import (
	"context"
	"encoding/json"

	"github.com/prebid/prebid-request-core/metrics"
)

// Cache holds one cache per kind of stored data. Implementations must be safe for concurrent use.
type Cache struct {
	Requests CacheJSON
	Imps     CacheJSON
	Accounts CacheJSON
}

// CacheJSON is a best effort store. Failures are logged by the implementation and show up as misses.
type CacheJSON interface {
	// Get returns the cached values of ids. The result holds no key outside ids and may be written to.
	Get(ctx context.Context, ids []string) map[string]json.RawMessage
	Invalidate(ctx context.Context, ids []string)
	Save(ctx context.Context, data map[string]json.RawMessage)
}

// ComposedCache layers caches, such as an in-process one in front of a shared one. Reads stop at the first
// layer holding an id. Writes and invalidations reach every layer.
type ComposedCache []CacheJSON

func (c ComposedCache) Get(ctx context.Context, ids []string) map[string]json.RawMessage {
	data := make(map[string]json.RawMessage, len(ids))
	missing := ids
	for _, layer := range c {
		if len(missing) == 0 {
			break
		}
		for id, value := range layer.Get(ctx, missing) {
			data[id] = value
		}
		missing = missingIDs(missing, data)
	}
	return data
}

func (c ComposedCache) Invalidate(ctx context.Context, ids []string) {
	for _, layer := range c {
		layer.Invalidate(ctx, ids)
	}
}

func (c ComposedCache) Save(ctx context.Context, data map[string]json.RawMessage) {
	for _, layer := range c {
		layer.Save(ctx, data)
	}
}

type fetcherWithCache struct {
	fetcher       AllFetcher
	cache         Cache
	metricsEngine metrics.MetricsEngine
}

// WithCache serves ids from cache and asks fetcher only for the misses, saving what it returns. Compose
// several layers with ComposedCache rather than nesting WithCache calls.
func WithCache(fetcher AllFetcher, cache Cache, metricsEngine metrics.MetricsEngine) AllFetcher {
	return &fetcherWithCache{
		fetcher:       fetcher,
		cache:         cache,
		metricsEngine: metricsEngine,
	}
}

func (f *fetcherWithCache) FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (map[string]json.RawMessage, map[string]json.RawMessage, []error) {
	requestData := f.cache.Requests.Get(ctx, requestIDs)
	impData := f.cache.Imps.Get(ctx, impIDs)

	missingReqs := missingIDs(requestIDs, requestData)
	missingImps := missingIDs(impIDs, impData)

	f.metricsEngine.RecordStoredReqCacheResult(metrics.CacheHit, len(requestIDs)-len(missingReqs))
	f.metricsEngine.RecordStoredReqCacheResult(metrics.CacheMiss, len(missingReqs))
	f.metricsEngine.RecordStoredImpCacheResult(metrics.CacheHit, len(impIDs)-len(missingImps))
	f.metricsEngine.RecordStoredImpCacheResult(metrics.CacheMiss, len(missingImps))

	if len(missingReqs) == 0 && len(missingImps) == 0 {
		return requestData, impData, nil
	}

	fetchedReqs, fetchedImps, errs := f.fetcher.FetchRequests(ctx, missingReqs, missingImps)
	f.cache.Requests.Save(ctx, fetchedReqs)
	f.cache.Imps.Save(ctx, fetchedImps)

	return withFetched(requestData, fetchedReqs), withFetched(impData, fetchedImps), errs
}

func (f *fetcherWithCache) FetchAccount(ctx context.Context, accountDefaultJSON json.RawMessage, accountID string) (json.RawMessage, []error) {
	if account, ok := f.cache.Accounts.Get(ctx, []string{accountID})[accountID]; ok {
		f.metricsEngine.RecordAccountCacheResult(metrics.CacheHit, 1)
		return account, nil
	}
	f.metricsEngine.RecordAccountCacheResult(metrics.CacheMiss, 1)

	account, errs := f.fetcher.FetchAccount(ctx, accountDefaultJSON, accountID)
	if len(errs) == 0 {
		f.cache.Accounts.Save(ctx, map[string]json.RawMessage{accountID: account})
	}
	return account, errs
}

func missingIDs(ids []string, data map[string]json.RawMessage) []string {
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := data[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func withFetched(cached map[string]json.RawMessage, fetched map[string]json.RawMessage) map[string]json.RawMessage {
	if cached == nil {
		return fetched
	}
	for id, value := range fetched {
		cached[id] = value
	}
	return cached
}
