package earthengine

import (
	"container/list"
	"context"
	"strconv"
	"sync"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	"github.com/etmur007/rainfall-risk-dashboard/internal/observability"
)

// CachedSource wraps a RainfallSource with an in-memory LRU cache keyed by
// point and date range. Only successful fetches are cached.
type CachedSource struct {
	inner   domain.RainfallSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a rainfall source.
func NewCachedSource(inner domain.RainfallSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) FetchDaily(ctx context.Context, loc domain.Location, r domain.DateRange) ([]domain.DailyObservation, error) {
	key := cacheKey(loc.Geo, r)
	if series, ok := c.cache.get(key); ok {
		c.observe("hit")
		return relabel(series, loc.ID), nil
	}
	c.observe("miss")

	series, err := c.inner.FetchDaily(ctx, loc, r)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, series)
	return relabel(series, loc.ID), nil
}

// cacheKey uses the shortest exact float form, so distinct catalog points
// never share an entry.
func cacheKey(g domain.Geo, r domain.DateRange) string {
	return strconv.FormatFloat(g.Lon, 'g', -1, 64) + "," + strconv.FormatFloat(g.Lat, 'g', -1, 64) + "|" + r.String()
}

func (c *CachedSource) observe(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

// relabel returns a copy owned by the caller, tagged with the requesting location.
func relabel(series []domain.DailyObservation, id string) []domain.DailyObservation {
	out := make([]domain.DailyObservation, len(series))
	for i, obs := range series {
		obs.LocationID = id
		out[i] = obs
	}
	return out
}

// lruCache is a thread-safe LRU cache of observation series.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front is most recently used
}

type entry struct {
	key   string
	value []domain.DailyObservation
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *lruCache) get(key string) ([]domain.DailyObservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value []domain.DailyObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
