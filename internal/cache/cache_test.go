package cache

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(maxSize int, ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func locs(ids ...int64) []brewmap.Location {
	out := make([]brewmap.Location, len(ids))
	for i, id := range ids {
		out[i] = brewmap.Location{ID: id, Type: brewmap.TypeCafe}
	}
	return out
}

func TestKey_Deterministic(t *testing.T) {
	t.Parallel()
	b := brewmap.Bounds{South: 48.856612345, West: 2.3522, North: 48.9, East: 2.4}
	fs := brewmap.FilterSet{brewmap.TypeShop: true, brewmap.TypeCafe: true, brewmap.TypeRoastery: false}

	k1, err := Key(b, fs)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	// Same effective filters, built in a different insertion order.
	fs2 := brewmap.FilterSet{brewmap.TypeRoastery: false, brewmap.TypeCafe: true, brewmap.TypeShop: true}
	k2, err := Key(b, fs2)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k1 != k2 {
		t.Errorf("same inputs produced different keys: %q vs %q", k1, k2)
	}
}

func TestKey_Rounding(t *testing.T) {
	t.Parallel()
	b := brewmap.Bounds{South: 48.856612345, West: 2.3522, North: 48.9, East: 2.4}
	k, err := Key(b, brewmap.DefaultFilters())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if !strings.HasPrefix(k, "48.857,2.352,48.900,2.400|") {
		t.Errorf("unexpected key format: %q", k)
	}
}

func TestKey_DistinguishesBounds(t *testing.T) {
	t.Parallel()
	fs := brewmap.DefaultFilters()
	b1 := brewmap.Bounds{South: 48.856, West: 2.352, North: 48.9, East: 2.4}
	b2 := brewmap.Bounds{South: 48.858, West: 2.352, North: 48.9, East: 2.4}
	b3 := brewmap.Bounds{South: 48.8561, West: 2.352, North: 48.9, East: 2.4} // within rounding granularity

	k1, _ := Key(b1, fs)
	k2, _ := Key(b2, fs)
	k3, _ := Key(b3, fs)
	if k1 == k2 {
		t.Error("bounds differing beyond rounding granularity must produce different keys")
	}
	if k1 != k3 {
		t.Errorf("bounds within rounding granularity should share a key: %q vs %q", k1, k3)
	}
}

func TestKey_DistinguishesFilters(t *testing.T) {
	t.Parallel()
	b := brewmap.Bounds{South: 48.856, West: 2.352, North: 48.9, East: 2.4}
	all := brewmap.DefaultFilters()
	some := all.Clone()
	some[brewmap.TypeRoastery] = false

	k1, _ := Key(b, all)
	k2, _ := Key(b, some)
	if k1 == k2 {
		t.Error("different enabled sets must produce different keys")
	}
	// A disabled flag and an absent flag fingerprint identically.
	sparse := brewmap.FilterSet{brewmap.TypeCafe: true, brewmap.TypeShop: true, brewmap.TypeSandwich: true}
	k3, _ := Key(b, sparse)
	if k2 != k3 {
		t.Errorf("disabled vs absent filter should be equivalent: %q vs %q", k2, k3)
	}
}

func TestKey_MalformedBounds(t *testing.T) {
	t.Parallel()
	for _, b := range []brewmap.Bounds{
		{South: math.NaN()},
		{North: math.Inf(1)},
		{West: math.Inf(-1)},
	} {
		if _, err := Key(b, brewmap.DefaultFilters()); !errors.Is(err, brewmap.ErrMalformedBounds) {
			t.Errorf("Key(%+v) error = %v, want ErrMalformedBounds", b, err)
		}
	}
}

func TestCache_SetGet(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(10, time.Minute)

	data := locs(1, 2, 3)
	c.Set("k", data)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 3 || got[0].ID != 1 || got[2].ID != 3 {
		t.Errorf("unexpected data: %+v", got)
	}
}

func TestCache_GetAbsent(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(10, time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Error("absent key must miss")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(10, time.Minute)

	c.Set("k", locs(1))
	clock.advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry should still be live just under TTL")
	}

	clock.advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire after TTL")
	}
	// Get purged it as a side effect.
	if s := c.Stats(); s.TotalEntries != 0 {
		t.Errorf("expired entry should be removed on Get, stats=%+v", s)
	}
}

func TestCache_StatsPartition(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(10, time.Minute)

	c.Set("old", locs(1))
	clock.advance(61 * time.Second)
	c.Set("fresh", locs(2))
	// Set purges expired entries, so re-insert an expired one without Set's purge
	// seeing it as stale: write it, then advance past TTL without another Set.
	clock.advance(61 * time.Second)
	c.Set("newest", locs(3))

	// "fresh" expired before "newest" was written, so Set purged it.
	s := c.Stats()
	if s.TotalEntries != 1 || s.ValidEntries != 1 || s.ExpiredEntries != 0 {
		t.Errorf("unexpected stats after purge-on-write: %+v", s)
	}

	clock.advance(61 * time.Second)
	s = c.Stats()
	if s.TotalEntries != 1 || s.ValidEntries != 0 || s.ExpiredEntries != 1 {
		t.Errorf("stats should count stale entries without purging: %+v", s)
	}
	// Stats is a pure read.
	if s2 := c.Stats(); s2.TotalEntries != 1 {
		t.Errorf("Stats must not mutate: %+v", s2)
	}
}

func TestCache_EvictsOldestFirst(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(3, time.Hour)

	for i := range 5 {
		c.Set(fmt.Sprintf("k%d", i), locs(int64(i)))
		clock.advance(time.Second)
	}

	s := c.Stats()
	if s.TotalEntries > 3 {
		t.Errorf("cache exceeded max size: %+v", s)
	}
	for _, old := range []string{"k0", "k1"} {
		if _, ok := c.Get(old); ok {
			t.Errorf("oldest entry %q should have been evicted", old)
		}
	}
	for _, kept := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(kept); !ok {
			t.Errorf("recent entry %q should survive", kept)
		}
	}
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(10, time.Minute)

	c.Set("a", locs(1))
	c.Set("b", locs(2))
	c.Clear()

	if s := c.Stats(); s.TotalEntries != 0 {
		t.Errorf("Clear should empty the cache: %+v", s)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get after Clear must miss")
	}
}

func TestCache_OverwriteRefreshesTimestamp(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(10, time.Minute)

	c.Set("k", locs(1))
	clock.advance(45 * time.Second)
	c.Set("k", locs(2))
	clock.advance(45 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("overwritten entry should be fresh from the second Set")
	}
	if got[0].ID != 2 {
		t.Errorf("overwrite should replace data, got %+v", got)
	}
}
