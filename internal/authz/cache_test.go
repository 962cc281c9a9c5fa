package authz

import (
	"testing"

	"github.com/wardenhq/warden/internal/store"
)

func setOf(grants ...store.Grant) PermissionSet {
	set := make(PermissionSet, len(grants))
	for _, g := range grants {
		set[g] = struct{}{}
	}
	return set
}

func TestCachePutGet(t *testing.T) {
	c := NewCache()
	set := setOf(store.Grant{Module: "Reports", Action: store.ActionRead})

	gen, epoch := c.Version(7)
	if !c.Put(7, set, gen, epoch) {
		t.Fatal("expected put to succeed")
	}

	got, ok := c.Get(7)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Has("Reports", store.ActionRead) {
		t.Fatal("cached set lost its grant")
	}
	if c.Len() != 1 {
		t.Fatalf("unexpected cache size: %d", c.Len())
	}
}

func TestCacheInvalidateDropsEntry(t *testing.T) {
	c := NewCache()
	gen, epoch := c.Version(7)
	c.Put(7, setOf(), gen, epoch)

	c.Invalidate(7)
	if _, ok := c.Get(7); ok {
		t.Fatal("expected entry to be dropped")
	}
}

func TestCacheStalePutDiscarded(t *testing.T) {
	c := NewCache()

	// A resolution snapshots the version, then an invalidation lands
	// before the result is stored.
	gen, epoch := c.Version(7)
	c.Invalidate(7)

	if c.Put(7, setOf(), gen, epoch) {
		t.Fatal("expected stale put to be discarded")
	}
	if _, ok := c.Get(7); ok {
		t.Fatal("stale result must not be readable")
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	c := NewCache()
	for _, id := range []int64{1, 2, 3} {
		gen, epoch := c.Version(id)
		c.Put(id, setOf(), gen, epoch)
	}

	gen, epoch := c.Version(4)
	c.InvalidateAll()

	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
	if c.Put(4, setOf(), gen, epoch) {
		t.Fatal("put versioned before InvalidateAll must be discarded")
	}
}

func TestCacheInvalidateOnlyTargets(t *testing.T) {
	c := NewCache()
	for _, id := range []int64{1, 2} {
		gen, epoch := c.Version(id)
		c.Put(id, setOf(), gen, epoch)
	}

	c.Invalidate(1)

	if _, ok := c.Get(1); ok {
		t.Fatal("expected user 1 dropped")
	}
	if _, ok := c.Get(2); !ok {
		t.Fatal("expected user 2 retained")
	}
}
