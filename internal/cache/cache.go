// Package cache provides a content-addressed, in-memory result cache with
// TTL expiry, strict LRU eviction and compressed storage.
package cache

import (
	"bytes"
	"container/list"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

const (
	fileDigestSize    = 16 // 128-bit digest of file content
	optionsDigestSize = 8  // 64-bit digest of canonical options
)

// Config holds cache tuning parameters.
type Config struct {
	MaxSize          int           // maximum number of entries (strict LRU beyond this)
	TTL              time.Duration // entry lifetime; expired entries are dropped on access
	SweepProbability float64       // chance per Set of a full expired-entry sweep
	CompressionLevel int           // flate level for stored payloads
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:          200,
		TTL:              time.Hour,
		SweepProbability: 0.01,
		CompressionLevel: flate.DefaultCompression,
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int   `json:"size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
}

type entry struct {
	key        string
	compressed []byte
	insertedAt time.Time
}

// Cache maps content-addressed keys to compressed payloads. All mutations,
// including the LRU touch on read, run under a single mutex.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	stats   Stats
	group   singleflight.Group
}

// New creates a cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Key derives the cache key from file content and the canonical options
// encoding. The file path never participates, so renames and copies share
// entries.
func Key(fileBytes, optionsJSON []byte) string {
	fileSum := blake2b.Sum256(fileBytes)
	optsSum := blake2b.Sum256(optionsJSON)
	return fmt.Sprintf("ocr_%x_%x", fileSum[:fileDigestSize], optsSum[:optionsDigestSize])
}

// Get returns the stored payload for key, or ok=false on miss or expiry.
// A hit refreshes the entry's LRU position.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.get(key, true)
}

// get is Get with optional miss accounting. The singleflight re-check path
// skips it because the outer Get already recorded the miss.
func (c *Cache) get(key string, countMiss bool) ([]byte, bool) {
	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		if countMiss {
			c.stats.Misses++
		}
		c.mu.Unlock()
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Since(e.insertedAt) > c.cfg.TTL {
		c.removeLocked(el)
		c.stats.Expired++
		if countMiss {
			c.stats.Misses++
		}
		c.mu.Unlock()
		return nil, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	compressed := e.compressed
	c.mu.Unlock()

	payload, err := decompress(compressed)
	if err != nil {
		// Corrupt entry; treat as a miss and drop it.
		slog.Warn("cache entry failed to decompress", "key", key, "error", err)
		c.Delete(key)
		return nil, false
	}
	return payload, true
}

// Set stores payload under key, evicting the least-recently-used entry when
// the cache is full. A small fraction of calls also sweeps expired entries.
func (c *Cache) Set(key string, payload []byte) {
	compressed, err := compress(payload, c.cfg.CompressionLevel)
	if err != nil {
		slog.Warn("cache payload failed to compress", "key", key, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.compressed = compressed
		e.insertedAt = time.Now()
		c.order.MoveToFront(el)
	} else {
		if c.order.Len() >= c.cfg.MaxSize {
			c.evictOldestLocked()
		}
		el := c.order.PushFront(&entry{key: key, compressed: compressed, insertedAt: time.Now()})
		c.entries[key] = el
	}

	if c.cfg.SweepProbability > 0 && rand.Float64() < c.cfg.SweepProbability {
		c.sweepExpiredLocked()
	}
}

// computed carries a singleflight result together with its provenance.
type computed struct {
	payload []byte
	hit     bool
}

// GetOrCompute returns the cached payload for key, or runs compute exactly
// once for concurrent callers of the same missing key and caches its result.
// The second return is true only when the payload came from the cache map,
// never for coalesced callers sharing a fresh compute.
func (c *Cache) GetOrCompute(key string, compute func() ([]byte, error)) ([]byte, bool, error) {
	if payload, ok := c.Get(key); ok {
		return payload, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have completed between Get and Do.
		if payload, ok := c.get(key, false); ok {
			return computed{payload: payload, hit: true}, nil
		}
		payload, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, payload)
		return computed{payload: payload}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(computed)
	return res.payload, res.hit, nil
}

// Delete removes the entry for key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Snapshot returns current cache counters.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	return s
}

// Sweep removes all currently-expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepExpiredLocked()
}

func (c *Cache) evictOldestLocked() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeLocked(el)
	c.stats.Evictions++
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)
}

func (c *Cache) sweepExpiredLocked() int {
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if time.Since(e.insertedAt) > c.cfg.TTL {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		c.stats.Expired += int64(removed)
	}
	return removed
}

func compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
