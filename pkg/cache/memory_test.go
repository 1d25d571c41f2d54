package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/config"
)

func newTestMemory(t *testing.T) *MemoryClient {
	t.Helper()
	c, err := NewMemory(config.CacheConfig{KeyPrefix: "test", DefaultTTL: 30 * time.Minute, MemoryMaxEntries: 1000}, nil)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemorySetGetDelete(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	if !c.Set(ctx, "tree:t1", testTree{ID: "t1", Title: "x"}) {
		t.Fatal("Set() = false")
	}
	var out testTree
	if !c.Get(ctx, "tree:t1", &out) || out.ID != "t1" {
		t.Fatalf("Get() = %+v", out)
	}

	if !c.Delete(ctx, "tree:t1") || c.Get(ctx, "tree:t1", &out) {
		t.Error("entry survived Delete")
	}
	if !c.Delete(ctx, "tree:t1") {
		t.Error("Delete() of absent key = false")
	}
}

func TestMemoryTTL(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	c.Set(ctx, "comments:t1", []string{"a"}, WithTTL(5*time.Minute))
	if got := c.TTL(ctx, "comments:t1"); got < 299 || got > 300 {
		t.Errorf("TTL() = %d, want ~300", got)
	}
	if got := c.TTL(ctx, "absent"); got != NoTTL {
		t.Errorf("TTL(absent) = %d, want -1", got)
	}

	if c.Set(ctx, "comments:t1", []string{"b"}, WithTTL(0)) {
		t.Error("Set(ttl=0) = true")
	}
	var v []string
	if c.Get(ctx, "comments:t1", &v) {
		t.Error("Set(ttl=0) did not remove the existing entry")
	}
}

func TestMemoryEntryExpires(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	c.Set(ctx, "search:q:20", "x", WithTTL(50*time.Millisecond))
	var v string
	if !c.Get(ctx, "search:q:20", &v) {
		t.Fatal("entry missing before expiry")
	}
	time.Sleep(120 * time.Millisecond)
	if c.Get(ctx, "search:q:20", &v) {
		t.Error("entry returned after expiry")
	}
}

func TestMemoryDeleteByPatternUsesIndex(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	c.Set(ctx, "like:t1:u1", true)
	c.Set(ctx, "like:t1:u2", false)
	c.Set(ctx, "like:t2:u1", true)
	c.Set(ctx, "tree:t1", "x")

	if got := c.DeleteByPattern(ctx, "like:t1:*"); got != 2 {
		t.Errorf("DeleteByPattern(like:t1:*) = %d, want 2", got)
	}
	var b bool
	if !c.Get(ctx, "like:t2:u1", &b) {
		t.Error("like for another tree removed")
	}
	if got := c.DeleteByPattern(ctx, "like:t1:*"); got != 0 {
		t.Errorf("second DeleteByPattern() = %d, want 0", got)
	}

	// A wildcard namespace walks every namespace in the index.
	if got := c.DeleteByPattern(ctx, "*:t1"); got != 1 {
		t.Errorf("DeleteByPattern(*:t1) = %d, want 1", got)
	}
}

func TestMemoryDeleteByPatternSkipsExpired(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()

	c.Set(ctx, "popular-trees:10", "a", WithTTL(20*time.Millisecond))
	c.Set(ctx, "popular-trees:20", "b")
	time.Sleep(60 * time.Millisecond)

	if got := c.DeleteByPattern(ctx, "popular-trees:*"); got != 1 {
		t.Errorf("DeleteByPattern() = %d, want 1 live key", got)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index["popular-trees"]; ok {
		t.Error("emptied namespace left in the index")
	}
}

func TestMemoryInvalidPattern(t *testing.T) {
	c := newTestMemory(t)
	if got := c.DeleteByPattern(context.Background(), "tree:[t1"); got != 0 {
		t.Errorf("DeleteByPattern(malformed) = %d, want 0", got)
	}
}

func TestMemoryClose(t *testing.T) {
	c := newTestMemory(t)
	ctx := context.Background()
	c.Set(ctx, "k", "v")

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	var v string
	if c.IsReady() || c.Get(ctx, "k", &v) || c.Set(ctx, "k", "v") {
		t.Error("closed memory client still serving")
	}
	if c.TTL(ctx, "k") != NoTTL || c.DeleteByPattern(ctx, "*") != 0 {
		t.Error("closed memory client returned non-sentinel values")
	}
	if err := Check(ctx, c); err == nil {
		t.Error("Check() = nil after Close")
	}
}

func TestNopClient(t *testing.T) {
	var c Client = NopClient{}
	ctx := context.Background()
	var v string

	if c.Set(ctx, "k", "v") || c.Get(ctx, "k", &v) || c.Delete(ctx, "k") || c.IsReady() {
		t.Error("NopClient reported success")
	}
	if c.DeleteByPattern(ctx, "*") != 0 || c.TTL(ctx, "k") != NoTTL || c.Close() != nil {
		t.Error("NopClient returned non-sentinel values")
	}
	if err := Check(ctx, c); err == nil {
		t.Error("Check(NopClient) = nil")
	}
}

func TestNewFactory(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Backend: config.CacheBackendMemory}, nil)
	if err != nil {
		t.Fatalf("New(memory) error = %v", err)
	}
	if _, ok := c.(*MemoryClient); !ok {
		t.Errorf("New(memory) = %T", c)
	}
	c.Close()

	c, err = New(ctx, config.CacheConfig{Backend: config.CacheBackendNone}, nil)
	if err != nil || c == nil {
		t.Fatalf("New(none) = %v, %v", c, err)
	}
	if _, ok := c.(NopClient); !ok {
		t.Errorf("New(none) = %T", c)
	}

	if _, err := New(ctx, config.CacheConfig{Backend: "memcached"}, nil); err == nil {
		t.Error("New(unknown backend) error = nil")
	}
}

func TestNewFactoryUnreachableRedisIsDegraded(t *testing.T) {
	cfg := config.CacheConfig{
		Backend:                 config.CacheBackendRedis,
		Host:                    "127.0.0.1",
		Port:                    1,
		MaxRetries:              -1,
		DialTimeout:             50 * time.Millisecond,
		OperationTimeout:        100 * time.Millisecond,
		ReconnectMaxAttempts:    1,
		ReconnectInitialBackoff: time.Millisecond,
		ReconnectMaxBackoff:     time.Millisecond,
	}

	c, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v, want degraded client", err)
	}
	defer c.Close()

	if c.IsReady() {
		t.Error("IsReady() = true for unreachable Redis")
	}
	if c.Set(context.Background(), "k", "v") {
		t.Error("Set() = true for unreachable Redis")
	}
}
