// Package cache holds analyzed bytecode fingerprints keyed by address and
// block tag, bounded by resident bytes, entry count and entry age. Eviction
// is least-recently-used for every bound.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/KyberNetwork/evm-bytecode-analysis/pkg/types"
)

// Config bounds the cache. A zero MaxAge disables expiry and a zero MaxBytes
// disables the byte bound; MaxEntries must be positive.
type Config struct {
	MaxBytes   int
	MaxEntries int
	MaxAge     time.Duration
}

// DefaultConfig mirrors the bounds the dashboard ran with.
func DefaultConfig() Config {
	return Config{
		MaxBytes:   10 << 20, // 10 MB of resident code
		MaxEntries: 100,
		MaxAge:     30 * time.Minute,
	}
}

// entryOverhead charges the bookkeeping around each stored analysis on top of
// its code size.
const entryOverhead = 256

type entry struct {
	analysis *types.BytecodeAnalysis
	size     int
	storedAt time.Time
}

// Cache is safe for concurrent use; analyses may be produced in parallel even
// though the batch service runs sequentially.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.LRU[string, *entry]
	bytes int
	cfg   Config

	hits   uint64
	misses uint64

	now func() time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
	Bytes   int
}

func New(cfg Config) (*Cache, error) {
	c := &Cache{cfg: cfg, now: time.Now}
	inner, err := lru.NewLRU[string, *entry](cfg.MaxEntries, func(_ string, e *entry) {
		c.bytes -= e.size
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner
	return c, nil
}

// key normalizes the address casing so differently-cased inputs share one
// entry.
func key(address common.Address, blockTag string) string {
	return strings.ToLower(address.Hex()) + "_" + blockTag
}

// Get returns the cached analysis, refreshing its recency. An expired entry
// is evicted and reported as a miss; the cache never errors.
func (c *Cache) Get(address common.Address, blockTag string) (*types.BytecodeAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(address, blockTag)
	e, ok := c.lru.Get(k)
	if !ok {
		c.misses++
		return nil, false
	}
	if c.expired(e) {
		c.lru.Remove(k)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.analysis, true
}

// Set stores or updates an analysis and evicts least-recently-used entries
// until every bound holds again.
func (c *Cache) Set(address common.Address, blockTag string, analysis *types.BytecodeAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(address, blockTag)
	// Remove first so the byte accounting of a replaced entry goes through
	// the eviction callback.
	c.lru.Remove(k)

	e := &entry{
		analysis: analysis,
		size:     analysis.CodeSize + entryOverhead,
		storedAt: c.now(),
	}
	c.lru.Add(k, e)
	c.bytes += e.size

	c.pruneExpired()
	for c.cfg.MaxBytes > 0 && c.bytes > c.cfg.MaxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
}

func (c *Cache) Remove(address common.Address, blockTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key(address, blockTag))
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: c.lru.Len(), Bytes: c.bytes}
}

func (c *Cache) expired(e *entry) bool {
	return c.cfg.MaxAge > 0 && c.now().Sub(e.storedAt) > c.cfg.MaxAge
}

// pruneExpired drops stale entries from the cold end. Best effort: a stale
// entry kept warm by reads survives here but Get evicts it on next access.
func (c *Cache) pruneExpired() {
	if c.cfg.MaxAge == 0 {
		return
	}
	for c.lru.Len() > 0 {
		k, e, ok := c.lru.GetOldest()
		if !ok || !c.expired(e) {
			return
		}
		c.lru.Remove(k)
	}
}
