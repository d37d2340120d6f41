// Package cache stores rendered views in Redis under named scopes so a
// mutation can invalidate exactly the views it affects.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Scope names a group of cached entries.
type Scope string

func SitesList(workspaceID string) Scope { return Scope("sites:" + workspaceID) }
func Site(siteID string) Scope { return Scope("site:" + siteID) }
func CampaignsList(siteID string) Scope { return Scope("campaigns:" + siteID) }
func Members(workspaceID string) Scope { return Scope("members:" + workspaceID) }
func Invitations(workspaceID string) Scope { return Scope("invitations:" + workspaceID) }
func Workspaces(userID string) Scope { return Scope("workspaces:" + userID) }
func PublicPage(host, slug string) Scope {
	return Scope("page:" + strings.ToLower(host) + "/" + strings.ToLower(slug))
}

const defaultTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

func New(client *redis.Client, logger zerolog.Logger) *Cache {
	return &Cache{client: client, prefix: "view:", ttl: defaultTTL, logger: logger}
}

func (c *Cache) entryKey(scope Scope, key string) string {
	return c.prefix + string(scope) + "#" + key
}

func (c *Cache) indexKey(scope Scope) string {
	return c.prefix + "idx:" + string(scope)
}

// Get returns a cached value. Misses and Redis failures both report false.
func (c *Cache) Get(ctx context.Context, scope Scope, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.entryKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", string(scope)).Msg("cache get failed")
		return nil, false
	}
	return raw, true
}

// Set stores a value and tracks it under the scope.
func (c *Cache) Set(ctx context.Context, scope Scope, key string, value []byte) {
	if c == nil {
		return
	}
	entry := c.entryKey(scope, key)
	index := c.indexKey(scope)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entry, value, c.ttl)
		pipe.SAdd(ctx, index, entry)
		pipe.Expire(ctx, index, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", string(scope)).Msg("cache set failed")
	}
}

func (c *Cache) GetJSON(ctx context.Context, scope Scope, key string, dest any) bool {
	raw, ok := c.Get(ctx, scope, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *Cache) SetJSON(ctx context.Context, scope Scope, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("scope", string(scope)).Msg("cache encode failed")
		return
	}
	c.Set(ctx, scope, key, raw)
}

// Invalidate deletes every entry tracked under the given scopes. Other scopes
// are untouched.
func (c *Cache) Invalidate(ctx context.Context, scopes ...Scope) {
	if c == nil || len(scopes) == 0 {
		return
	}
	for _, scope := range scopes {
		index := c.indexKey(scope)
		keys, err := c.client.SMembers(ctx, index).Result()
		if err != nil {
			c.logger.Warn().Err(err).Str("scope", string(scope)).Msg("cache invalidate failed")
			continue
		}
		keys = append(keys, index)
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn().Err(err).Str("scope", string(scope)).Msg("cache invalidate failed")
		}
	}
}
