package glass

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingCache returns a cache whose rasterizer counts invocations.
func countingCache(t *testing.T, sink Sink) (*FieldCache, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	c := NewFieldCache(sink)
	c.SetRasterizer(func(v Variant, w, h int) (*Field, error) {
		n.Add(1)
		return Rasterize(v, w, h)
	})
	return c, &n
}

func TestFieldCacheIdempotent(t *testing.T) {
	c, n := countingCache(t, nil)
	a, err := c.Field(VariantStandard, 300, 200)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Field(VariantStandard, 300, 200)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second lookup returned a different field")
	}
	if got := n.Load(); got != 1 {
		t.Errorf("rasterized %d times, want 1", got)
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Rasterized != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 rasterized", st)
	}
}

func TestFieldCacheDistinctKeys(t *testing.T) {
	c, n := countingCache(t, nil)
	keys := []struct {
		v    Variant
		w, h int
	}{
		{VariantStandard, 64, 64},
		{VariantPolar, 64, 64},
		{VariantStandard, 64, 32},
		{VariantStandard, 32, 64},
	}
	for _, k := range keys {
		if _, err := c.Field(k.v, k.w, k.h); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != len(keys) {
		t.Errorf("Len = %d, want %d", c.Len(), len(keys))
	}
	if got := n.Load(); int(got) != len(keys) {
		t.Errorf("rasterized %d times, want %d", got, len(keys))
	}
}

func TestFieldCacheRejectsBadInput(t *testing.T) {
	c, n := countingCache(t, nil)
	if _, err := c.Field(Variant(99), 10, 10); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("unknown variant err = %v", err)
	}
	if _, err := c.Field(VariantStandard, 0, 10); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero width err = %v", err)
	}
	if _, err := c.Resource(VariantStandard, 10, -3); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("negative height err = %v", err)
	}
	if c.Len() != 0 || n.Load() != 0 {
		t.Errorf("bad input touched the cache: len %d, rasterized %d", c.Len(), n.Load())
	}
}

func TestFieldCacheConcurrentSingleRasterize(t *testing.T) {
	var n atomic.Int32
	c := NewFieldCache(nil)
	c.SetRasterizer(func(v Variant, w, h int) (*Field, error) {
		n.Add(1)
		time.Sleep(10 * time.Millisecond)
		return Rasterize(v, w, h)
	})

	const workers = 16
	fields := make([]*Field, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := c.Field(VariantProminent, 48, 48)
			if err != nil {
				t.Error(err)
				return
			}
			fields[i] = f
		}(i)
	}
	wg.Wait()

	if got := n.Load(); got != 1 {
		t.Errorf("rasterized %d times under contention, want 1", got)
	}
	for i := 1; i < workers; i++ {
		if fields[i] != fields[0] {
			t.Fatalf("worker %d got a different field", i)
		}
	}
}

func TestFieldCacheRasterizerError(t *testing.T) {
	boom := errors.New("boom")
	c := NewFieldCache(nil)
	c.SetRasterizer(func(Variant, int, int) (*Field, error) { return nil, boom })
	if _, err := c.Field(VariantStandard, 8, 8); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed rasterization was cached")
	}
}

func TestBoundedFieldCacheEvicts(t *testing.T) {
	c, err := NewBoundedFieldCache(2, nil)
	if err != nil {
		t.Fatal(err)
	}
	var n atomic.Int32
	c.SetRasterizer(func(v Variant, w, h int) (*Field, error) {
		n.Add(1)
		return Rasterize(v, w, h)
	})
	for _, w := range []int{10, 20, 30} {
		if _, err := c.Field(VariantStandard, w, 10); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	// 10x10 was least recently used.
	if _, err := c.Field(VariantStandard, 10, 10); err != nil {
		t.Fatal(err)
	}
	if got := n.Load(); got != 4 {
		t.Errorf("rasterized %d times, want 4 after eviction", got)
	}
	// 30x10 is still resident.
	if _, err := c.Field(VariantStandard, 30, 10); err != nil {
		t.Fatal(err)
	}
	if got := n.Load(); got != 4 {
		t.Errorf("rasterized %d times, want 4", got)
	}
}

func TestBoundedFieldCacheReleasesEvictedResources(t *testing.T) {
	c, err := NewBoundedFieldCache(1, &countingSink{})
	if err != nil {
		t.Fatal(err)
	}
	var released []Resource
	c.release = func(r Resource) { released = append(released, r) }

	enc, err := c.Resource(VariantStandard, 12, 8)
	if err != nil {
		t.Fatal(err)
	}
	// Evicts the encoded 12x8 entry.
	if _, err := c.Field(VariantPolar, 12, 8); err != nil {
		t.Fatal(err)
	}
	if len(released) != 1 || !bytes.Equal(released[0].Data, enc.Data) {
		t.Fatalf("released %d resources, want the evicted 12x8 one", len(released))
	}
	// Evicts the polar entry, which never had a resource.
	if _, err := c.Field(VariantPanel, 12, 8); err != nil {
		t.Fatal(err)
	}
	if len(released) != 1 {
		t.Errorf("released %d resources, want 1", len(released))
	}
}

func TestReleaseResourceTexture(t *testing.T) {
	res, err := TextureSink{}.Encode(testField(t, VariantStandard, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	releaseResource(res)
	releaseResource(Resource{}) // no texture: no-op
}

func TestBoundedFieldCacheInvalidLimit(t *testing.T) {
	if _, err := NewBoundedFieldCache(0, nil); err == nil {
		t.Error("expected error for zero limit")
	}
}

type countingSink struct {
	calls int
	fail  bool
}

func (s *countingSink) Encode(f *Field) (Resource, error) {
	s.calls++
	if s.fail {
		return Resource{}, errors.New("encoder unavailable")
	}
	return PNGSink{}.Encode(f)
}

func TestFieldCacheResourceEncodesOnce(t *testing.T) {
	s := &countingSink{}
	c := NewFieldCache(s)
	a, err := c.Resource(VariantPolar, 20, 20)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Resource(VariantPolar, 20, 20)
	if err != nil {
		t.Fatal(err)
	}
	if s.calls != 1 {
		t.Errorf("sink calls = %d, want 1", s.calls)
	}
	if a.DataURI() != b.DataURI() {
		t.Error("cached resource differs")
	}
	if c.Stats().Encoded != 1 {
		t.Errorf("Encoded = %d, want 1", c.Stats().Encoded)
	}
}

func TestFieldCacheResourcePlaceholderNotCached(t *testing.T) {
	s := &countingSink{fail: true}
	c := NewFieldCache(s)
	res, err := c.Resource(VariantStandard, 16, 16)
	if err != nil {
		t.Fatalf("sink failure surfaced as error: %v", err)
	}
	if !res.Placeholder {
		t.Fatal("expected placeholder")
	}

	s.fail = false
	res, err = c.Resource(VariantStandard, 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if res.Placeholder {
		t.Error("placeholder was cached; recovered sink not retried")
	}
	if s.calls != 2 {
		t.Errorf("sink calls = %d, want 2", s.calls)
	}
}

func TestFieldKeyString(t *testing.T) {
	k := fieldKey{VariantPanel, 300, 200}
	if got := k.String(); got != "panel-rounded-rect:300x200" {
		t.Errorf("String = %q", got)
	}
}

func BenchmarkFieldCacheHit(b *testing.B) {
	c := NewFieldCache(nil)
	if _, err := c.Field(VariantStandard, 300, 200); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = c.Field(VariantStandard, 300, 200)
	}
}
