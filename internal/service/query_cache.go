package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// QueryFunc fetches a fresh value for a cached query.
type QueryFunc func(ctx context.Context) (interface{}, error)

// QueryCache holds successful query results for a stale time and lets
// concurrent callers of the same key share one in-flight fetch. Errors are
// never cached.
//
// Set and Purge bump a generation counter: results of fetches that started
// before either call are returned to their callers but not stored.
type QueryCache struct {
	cache *cache.Cache
	group singleflight.Group

	mu         sync.Mutex
	generation uint64
}

func NewQueryCache(staleTime time.Duration) *QueryCache {
	return &QueryCache{cache: cache.New(staleTime, 2*staleTime)}
}

// Fetch returns the cached value for key, or runs fn. The second result
// reports whether the value came from the cache. In-flight fetches run with
// the context of the caller that started them.
func (q *QueryCache) Fetch(ctx context.Context, key string, fn QueryFunc) (interface{}, bool, error) {
	if v, found := q.cache.Get(key); found {
		return v, true, nil
	}

	gen := q.currentGeneration()
	flightKey := key + "#" + strconv.FormatUint(gen, 10)

	v, err, _ := q.group.Do(flightKey, func() (interface{}, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		q.mu.Lock()
		if q.generation == gen {
			q.cache.Set(key, v, cache.DefaultExpiration)
		}
		q.mu.Unlock()
		return v, nil
	})
	return v, false, err
}

// Set primes key with a value, as if it had just been fetched.
func (q *QueryCache) Set(key string, value interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.generation++
	q.cache.Set(key, value, cache.DefaultExpiration)
}

func (q *QueryCache) Invalidate(key string) {
	q.cache.Delete(key)
}

// Purge drops every cached query.
func (q *QueryCache) Purge() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.generation++
	q.cache.Flush()
}

func (q *QueryCache) currentGeneration() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}
