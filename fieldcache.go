package glass

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// fieldKey identifies a pointer-independent field.
type fieldKey struct {
	variant       Variant
	width, height int
}

func (k fieldKey) String() string {
	return fmt.Sprintf("%s:%dx%d", k.variant, k.width, k.height)
}

type cacheEntry struct {
	field    *Field
	resource *Resource
	evicted  bool
}

// releaseResource frees the GPU texture held by r, if any.
func releaseResource(r Resource) {
	if r.Texture != nil {
		r.Texture.Deallocate()
	}
}

// CacheStats counts cache traffic since creation.
type CacheStats struct {
	Hits       int
	Misses     int
	Rasterized int
	Encoded    int
}

// FieldCache memoizes rasterized fields keyed by (variant, width, height).
// Each key is rasterized at most once for the cache's lifetime, including
// under concurrent requests. With Limit zero the cache never evicts; panels
// resize rarely and the variant set is closed, so growth is bounded in
// practice. Long-running hosts that see many sizes should use
// NewBoundedFieldCache.
type FieldCache struct {
	rasterize func(v Variant, width, height int) (*Field, error)
	sink      Sink
	release   func(Resource)

	mu      sync.Mutex
	entries map[fieldKey]*cacheEntry
	bounded *lru.Cache[fieldKey, *cacheEntry]
	stats   CacheStats
	group   singleflight.Group
}

// NewFieldCache creates an unbounded cache that encodes resources with sink.
// A nil sink defaults to PNGSink.
func NewFieldCache(sink Sink) *FieldCache {
	if sink == nil {
		sink = PNGSink{}
	}
	return &FieldCache{
		rasterize: Rasterize,
		sink:      sink,
		release:   releaseResource,
		entries:   make(map[fieldKey]*cacheEntry),
	}
}

// NewBoundedFieldCache creates a cache holding at most limit fields, evicting
// the least recently used. Textures encoded for evicted fields are
// deallocated.
func NewBoundedFieldCache(limit int, sink Sink) (*FieldCache, error) {
	c := NewFieldCache(sink)
	l, err := lru.NewWithEvict[fieldKey, *cacheEntry](limit, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("field cache limit %d: %w", limit, err)
	}
	c.entries = nil
	c.bounded = l
	return c, nil
}

// onEvict runs inside the LRU with c.mu held.
func (c *FieldCache) onEvict(k fieldKey, e *cacheEntry) {
	e.evicted = true
	if e.resource != nil {
		debugLogf("field cache evict %s: releasing resource", k)
		c.release(*e.resource)
		e.resource = nil
		return
	}
	debugLogf("field cache evict %s", k)
}

// SetRasterizer replaces the function used on a miss. Intended for
// instrumentation; must be called before the first lookup.
func (c *FieldCache) SetRasterizer(fn func(v Variant, width, height int) (*Field, error)) {
	c.rasterize = fn
}

func (c *FieldCache) lookup(k fieldKey) (*cacheEntry, bool) {
	if c.bounded != nil {
		return c.bounded.Get(k)
	}
	e, ok := c.entries[k]
	return e, ok
}

func (c *FieldCache) store(k fieldKey, e *cacheEntry) {
	if c.bounded != nil {
		c.bounded.Add(k, e)
		return
	}
	c.entries[k] = e
}

// Field returns the field for (v, width, height), rasterizing it on first
// request. Unknown variants and non-positive sizes fail without touching the
// cache.
func (c *FieldCache) Field(v Variant, width, height int) (*Field, error) {
	e, err := c.entry(v, width, height)
	if err != nil {
		return nil, err
	}
	return e.field, nil
}

func (c *FieldCache) entry(v Variant, width, height int) (*cacheEntry, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("field cache: %s: %w", v, ErrUnknownVariant)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("field cache: %dx%d: %w", width, height, ErrInvalidSize)
	}
	k := fieldKey{v, width, height}

	c.mu.Lock()
	if e, ok := c.lookup(k); ok {
		c.stats.Hits++
		c.mu.Unlock()
		debugLogf("field cache hit %s", k)
		return e, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	res, err, _ := c.group.Do(k.String(), func() (any, error) {
		// A concurrent caller may have finished between our miss and Do.
		c.mu.Lock()
		if e, ok := c.lookup(k); ok {
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		f, err := c.rasterize(v, width, height)
		if err != nil {
			return nil, err
		}
		e := &cacheEntry{field: f}
		c.mu.Lock()
		c.stats.Rasterized++
		c.store(k, e)
		c.mu.Unlock()
		debugLogf("field cache miss %s: rasterized", k)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("field cache %s: %w", k, err)
	}
	return res.(*cacheEntry), nil
}

// Resource returns the sink-encoded field for (v, width, height). Encoding
// happens once per key. Sink failures yield Placeholder and are not cached,
// so a later call may succeed. Only programmer errors (unknown variant,
// invalid size) are returned. A resource encoded for a field that was
// evicted meanwhile is returned uncached and belongs to the caller.
func (c *FieldCache) Resource(v Variant, width, height int) (Resource, error) {
	e, err := c.entry(v, width, height)
	if err != nil {
		return Resource{}, err
	}
	k := fieldKey{v, width, height}

	c.mu.Lock()
	if e.resource != nil {
		r := *e.resource
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	out, _, _ := c.group.Do("resource:"+k.String(), func() (any, error) {
		c.mu.Lock()
		if e.resource != nil {
			r := *e.resource
			c.mu.Unlock()
			return r, nil
		}
		c.mu.Unlock()

		r := EncodeResource(c.sink, e.field)
		if !r.Placeholder {
			c.mu.Lock()
			c.stats.Encoded++
			if !e.evicted {
				e.resource = &r
			}
			c.mu.Unlock()
		}
		return r, nil
	})
	return out.(Resource), nil
}

// Len returns the number of cached fields.
func (c *FieldCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *FieldCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
