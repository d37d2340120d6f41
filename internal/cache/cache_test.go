package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, zerolog.Nop()), s
}

func TestSetAndGet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, SitesList("ws-1"), "all"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set(ctx, SitesList("ws-1"), "all", []byte(`["a"]`))
	got, ok := c.Get(ctx, SitesList("ws-1"), "all")
	if !ok || string(got) != `["a"]` {
		t.Fatalf("Get = %q, %v", got, ok)
	}
}

func TestInvalidateOnlyNamedScopes(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	c.Set(ctx, SitesList("ws-1"), "all", []byte("1"))
	c.Set(ctx, SitesList("ws-1"), "page-2", []byte("2"))
	c.Set(ctx, SitesList("ws-2"), "all", []byte("3"))
	c.Set(ctx, PublicPage("acme.launchkit.localhost", "index"), "html", []byte("<html>"))

	c.Invalidate(ctx, SitesList("ws-1"))

	if _, ok := c.Get(ctx, SitesList("ws-1"), "all"); ok {
		t.Fatal("ws-1 list should be invalidated")
	}
	if _, ok := c.Get(ctx, SitesList("ws-1"), "page-2"); ok {
		t.Fatal("every key of the scope should be invalidated")
	}
	if _, ok := c.Get(ctx, SitesList("ws-2"), "all"); !ok {
		t.Fatal("ws-2 list must survive")
	}
	if _, ok := c.Get(ctx, PublicPage("ACME.launchkit.localhost", "INDEX"), "html"); !ok {
		t.Fatal("public page must survive and match case-insensitively")
	}
}

func TestEntriesExpire(t *testing.T) {
	c, s := setupTestCache(t)
	ctx := context.Background()
	c.Set(ctx, Site("site-1"), "detail", []byte("x"))
	s.FastForward(defaultTTL + time.Second)
	if _, ok := c.Get(ctx, Site("site-1"), "detail"); ok {
		t.Fatal("entry should expire")
	}
}

func TestJSONHelpers(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()
	c.SetJSON(ctx, Members("ws-1"), "list", map[string]int{"count": 3})
	var got map[string]int
	if !c.GetJSON(ctx, Members("ws-1"), "list", &got) || got["count"] != 3 {
		t.Fatalf("GetJSON = %v", got)
	}
}

func TestRedisFailureIsAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := New(client, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, Site("site-1"), "detail", []byte("x"))
	if _, ok := c.Get(ctx, Site("site-1"), "detail"); ok {
		t.Fatal("unreachable redis should report a miss")
	}
	c.Invalidate(ctx, Site("site-1"))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	c.Set(ctx, Site("x"), "k", []byte("v"))
	if _, ok := c.Get(ctx, Site("x"), "k"); ok {
		t.Fatal("nil cache must miss")
	}
	c.Invalidate(ctx, Site("x"))
}
