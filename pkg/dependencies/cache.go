package dependencies

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defaults
const (
	DefaultCacheEntries = 32
	DefaultCacheTTL     = 10 * time.Minute
)

// keyFiles are the inputs that determine each tool's resolved graph
var keyFiles = map[string][]string{
	"cargo": {"Cargo.toml", "Cargo.lock"},
	"go":    {"go.mod", "go.sum"},
}

// CachingInspector memoizes another inspector's graphs keyed by the
// project's manifest and lockfile contents, so that watch reruns do not
// query the build tool again while those files are unchanged. Failed
// queries are never cached.
type CachingInspector struct {
	inner  DependencyInspector
	cache  *lru.LRU[string, *DependencyGraph]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingInspector wraps inner with an expiring LRU cache
func NewCachingInspector(inner DependencyInspector, entries int, ttl time.Duration) *CachingInspector {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	return &CachingInspector{
		inner: inner,
		cache: lru.NewLRU[string, *DependencyGraph](entries, nil, ttl),
	}
}

// CachedInspectors wraps every inspector with its own cache
func CachedInspectors(inspectors []DependencyInspector, entries int, ttl time.Duration) []DependencyInspector {
	cached := make([]DependencyInspector, 0, len(inspectors))
	for _, inspector := range inspectors {
		cached = append(cached, NewCachingInspector(inspector, entries, ttl))
	}
	return cached
}

func (c *CachingInspector) Name() string { return c.inner.Name() }

func (c *CachingInspector) Detect(dir string) bool { return c.inner.Detect(dir) }

func (c *CachingInspector) Inspect(ctx context.Context, dir string) (*DependencyGraph, error) {
	key, ok := c.key(dir)
	if ok {
		if graph, found := c.cache.Get(key); found {
			c.hits.Add(1)
			return graph, nil
		}
	}
	c.misses.Add(1)

	graph, err := c.inner.Inspect(ctx, dir)
	if err != nil {
		return nil, err
	}
	if ok {
		c.cache.Add(key, graph)
	}
	return graph, nil
}

// Stats returns cache hits and misses
func (c *CachingInspector) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// key digests the tool's key files. Unknown tools are not cached.
func (c *CachingInspector) key(dir string) (string, bool) {
	files, ok := keyFiles[c.inner.Name()]
	if !ok {
		return "", false
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}

	h := sha256.New()
	h.Write([]byte(c.inner.Name() + "\x00" + abs + "\x00"))
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(abs, name))
		if err != nil && !os.IsNotExist(err) {
			return "", false
		}
		h.Write([]byte(name + "\x00"))
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), true
}
