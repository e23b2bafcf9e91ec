package tools

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultBenchmarkCacheSize = 256
	defaultBenchmarkTTL       = 5 * time.Minute
)

// Benchmark holds the spending statistics for one segment (an account, a
// merchant category, a country) used as the baseline for anomaly checks.
type Benchmark struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Count  int     `json:"count"`
}

// BenchmarkCache is a process-wide, TTL-bounded cache of computed
// benchmarks. Recomputing a benchmark walks the whole dataset, so results
// are kept until they expire. The underlying LRU is safe for concurrent use.
type BenchmarkCache struct {
	lru *expirable.LRU[string, Benchmark]
}

// NewBenchmarkCache creates a cache with the given TTL. A zero TTL falls
// back to the default.
func NewBenchmarkCache(ttl time.Duration) *BenchmarkCache {
	if ttl <= 0 {
		ttl = defaultBenchmarkTTL
	}
	return &BenchmarkCache{
		lru: expirable.NewLRU[string, Benchmark](defaultBenchmarkCacheSize, nil, ttl),
	}
}

// GetOrCompute returns the cached benchmark for key, computing and storing
// it on a miss.
func (c *BenchmarkCache) GetOrCompute(key string, compute func() Benchmark) Benchmark {
	if b, ok := c.lru.Get(key); ok {
		return b
	}
	b := compute()
	c.lru.Add(key, b)
	return b
}

// Invalidate drops the cached benchmark for key.
func (c *BenchmarkCache) Invalidate(key string) {
	c.lru.Remove(key)
}
