package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"logvault/pkg/models"
)

// DefaultMaxCachedFiles is the default capacity of the metadata cache
const DefaultMaxCachedFiles = 1000

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logvault_metadata_cache_hits_total",
		Help: "Metadata cache lookups that found an entry.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logvault_metadata_cache_misses_total",
		Help: "Metadata cache lookups that found nothing.",
	})
	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logvault_metadata_cache_evictions_total",
		Help: "Entries removed from the metadata cache under capacity pressure.",
	})
	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logvault_metadata_cache_entries",
		Help: "Current number of entries in the metadata cache.",
	})
)

// cacheEntry keeps metadata and the line count estimate together so both
// caches share one key space and are always evicted as a unit
type cacheEntry struct {
	meta      models.FileMetadata
	lineCount int64
}

// CachedFile is a read-only copy of a cache entry
type CachedFile struct {
	Metadata  models.FileMetadata
	LineCount int64
}

// MetadataCache is a bounded, access-ordered map of file name -> metadata.
// Capacity pressure is the only thing that removes entries.
type MetadataCache struct {
	mu      sync.Mutex
	index   *simplelru.LRU[string, *cacheEntry] // oldest access first
	maxSize int
	tick    uint64
}

// NewMetadataCache creates a cache holding at most maxSize files
func NewMetadataCache(maxSize int) (*MetadataCache, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxCachedFiles
	}

	// Eviction is driven by Put; the index never reaches its own limit.
	index, err := simplelru.NewLRU[string, *cacheEntry](maxSize+1, nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata index: %w", err)
	}

	return &MetadataCache{
		index:   index,
		maxSize: maxSize,
	}, nil
}

// Get returns the metadata for name and marks it as accessed
func (mc *MetadataCache) Get(name string) (models.FileMetadata, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.index.Get(name)
	if !ok {
		cacheMissesTotal.Inc()
		return models.FileMetadata{}, false
	}
	cacheHitsTotal.Inc()

	entry.meta.LastAccessed = mc.nextTick()
	return entry.meta, true
}

// Peek returns the metadata for name without touching it
func (mc *MetadataCache) Peek(name string) (models.FileMetadata, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.index.Peek(name)
	if !ok {
		return models.FileMetadata{}, false
	}
	return entry.meta, true
}

// LineCount returns the cached line count estimate for name
func (mc *MetadataCache) LineCount(name string) (int64, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.index.Peek(name)
	if !ok {
		return 0, false
	}
	return entry.lineCount, true
}

// Put inserts or replaces the entry for name.
// Inserting a new name into a full cache evicts the coldest entries first.
func (mc *MetadataCache) Put(name string, meta models.FileMetadata, lineCount int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.index.Contains(name) && mc.index.Len() >= mc.maxSize {
		mc.evictLocked()
	}

	meta.Name = name
	meta.LastAccessed = mc.nextTick()
	mc.index.Add(name, &cacheEntry{meta: meta, lineCount: lineCount})
	cacheEntries.Set(float64(mc.index.Len()))
}

// Touch marks name as accessed. Returns false if it is not cached.
func (mc *MetadataCache) Touch(name string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.index.Get(name)
	if !ok {
		return false
	}
	entry.meta.LastAccessed = mc.nextTick()
	return true
}

// EvictLRU removes the least recently accessed 10% of entries (at least one)
func (mc *MetadataCache) EvictLRU() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.evictLocked()
}

// Len returns the number of cached files
func (mc *MetadataCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.index.Len()
}

// Capacity returns the configured maximum number of entries
func (mc *MetadataCache) Capacity() int {
	return mc.maxSize
}

// Snapshot copies every entry, oldest access first, without touching them
func (mc *MetadataCache) Snapshot() []CachedFile {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	keys := mc.index.Keys()
	result := make([]CachedFile, 0, len(keys))
	for _, key := range keys {
		if entry, ok := mc.index.Peek(key); ok {
			result = append(result, CachedFile{Metadata: entry.meta, LineCount: entry.lineCount})
		}
	}
	return result
}

// evictLocked removes the coldest 10% of entries; mc.mu must be held
func (mc *MetadataCache) evictLocked() int {
	size := mc.index.Len()
	if size == 0 {
		return 0
	}

	evictCount := size / 10
	if evictCount < 1 {
		evictCount = 1
	}

	removed := 0
	for removed < evictCount {
		if _, _, ok := mc.index.RemoveOldest(); !ok {
			break
		}
		removed++
	}

	cacheEvictionsTotal.Add(float64(removed))
	cacheEntries.Set(float64(mc.index.Len()))
	return removed
}

func (mc *MetadataCache) nextTick() uint64 {
	mc.tick++
	return mc.tick
}
