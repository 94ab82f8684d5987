// Package cache persists fetched composites on disk so re-renders of the
// same region and time span skip the network. Entries are bounded by an LRU
// whose eviction removes the backing file.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"earth-timelapse/internal/geocode"
	"earth-timelapse/internal/imagery"
	"earth-timelapse/internal/naming"
	"earth-timelapse/internal/timeline"
)

// DefaultMaxEntries bounds the cache; a 20-year monthly run is 240
// composites, so this holds several full runs.
const DefaultMaxEntries = 1024

// entry is the on-disk representation of a composite.
type entry struct {
	Interval timeline.Interval
	Width    int
	Height   int
	Bands    [imagery.BandCount][]float32
	NoData   bool
}

// Cache is a disk-backed composite store with LRU eviction.
type Cache struct {
	baseDir string
	mu      sync.Mutex
	index   *lru.Cache[string, string] // key -> file path
}

// New opens (or creates) a cache rooted at baseDir. Existing entries are
// re-indexed oldest-first so eviction order survives restarts.
func New(baseDir string, maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	index, err := lru.NewWithEvict(maxEntries, func(key, path string) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[CompositeCache] Failed to remove evicted entry: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache index: %w", err)
	}

	c := &Cache{baseDir: baseDir, index: index}
	if err := c.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to load cache index: %w", err)
	}
	return c, nil
}

// loadIndex scans the cache directory and seeds the LRU by modification
// time, oldest first.
func (c *Cache) loadIndex() error {
	type onDisk struct {
		path    string
		modTime int64
	}
	var found []onDisk

	err := filepath.WalkDir(c.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".comp" {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		found = append(found, onDisk{path: path, modTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].modTime < found[j].modTime })
	for _, f := range found {
		// The key hash is the file name; Get/Put address entries by hash.
		hash := filepath.Base(f.path)
		hash = hash[:len(hash)-len(".comp")]
		c.index.Add(hash, f.path)
	}

	if len(found) > 0 {
		log.Printf("[CompositeCache] Loaded %d cached composites from %s", c.index.Len(), c.baseDir)
	}
	return nil
}

// pathFor maps a cache key to its hash and file path.
func (c *Cache) pathFor(key string) (hash, path string) {
	sum := sha256.Sum256([]byte(key))
	hash = hex.EncodeToString(sum[:])
	path = filepath.Join(c.baseDir, hash[:2], hash+".comp")
	return
}

// Get retrieves a composite from the cache.
func (c *Cache) Get(key string) (*imagery.Composite, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, _ := c.pathFor(key)
	path, ok := c.index.Get(hash)
	if !ok {
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		c.index.Remove(hash)
		return nil, false
	}
	defer f.Close()

	var e entry
	if err := gob.NewDecoder(f).Decode(&e); err != nil {
		log.Printf("[CompositeCache] Corrupt entry dropped: %v", err)
		c.index.Remove(hash)
		return nil, false
	}

	comp := &imagery.Composite{
		Interval: e.Interval,
		Width:    e.Width,
		Height:   e.Height,
		Bands:    e.Bands,
		NoData:   e.NoData,
	}
	if err := comp.Validate(); err != nil {
		c.index.Remove(hash)
		return nil, false
	}
	return comp, true
}

// Put stores a composite. No-data sentinels are cached too: provider
// coverage gaps are stable across runs.
func (c *Cache) Put(key string, comp *imagery.Composite) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache subdirectory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}

	e := entry{
		Interval: comp.Interval,
		Width:    comp.Width,
		Height:   comp.Height,
		Bands:    comp.Bands,
		NoData:   comp.NoData,
	}
	if err := gob.NewEncoder(f).Encode(&e); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.index.Add(hash, path)
	return nil
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// cachedFetcher checks the cache before delegating to the inner fetcher.
type cachedFetcher struct {
	inner  imagery.Fetcher
	cache  *Cache
	scaleM float64
}

// Wrap layers the cache over an imagery fetcher. scaleM participates in the
// cache key so resolution changes don't serve stale rasters.
func Wrap(inner imagery.Fetcher, cache *Cache, scaleM float64) imagery.Fetcher {
	return &cachedFetcher{inner: inner, cache: cache, scaleM: scaleM}
}

func (cf *cachedFetcher) FetchComposite(ctx context.Context, region geocode.Region, interval timeline.Interval) (*imagery.Composite, error) {
	south, west, north, east := region.BBox()
	key := naming.CompositeKey(south, west, north, east,
		interval.Start.Format("2006-01-02"), interval.End.Format("2006-01-02"), cf.scaleM)

	if comp, ok := cf.cache.Get(key); ok {
		log.Printf("[CompositeCache] Hit for %s", interval.Label)
		return comp, nil
	}

	comp, err := cf.inner.FetchComposite(ctx, region, interval)
	if err != nil {
		return nil, err
	}
	if err := cf.cache.Put(key, comp); err != nil {
		log.Printf("[CompositeCache] Failed to store %s: %v", interval.Label, err)
	}
	return comp, nil
}
