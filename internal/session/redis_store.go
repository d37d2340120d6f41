// Package session keeps server-side sign-in sessions in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found or expired")

// Data is what one session remembers about its user.
type Data struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AppRole     string    `json:"app_role"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore stores sessions as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses the URL and checks connectivity.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Create stores a new session and returns it with its generated id.
func (s *RedisStore) Create(ctx context.Context, data Data, ttl time.Duration) (Data, error) {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	data.ID = uuid.NewString()
	data.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(data)
	if err != nil {
		return Data{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(data.ID), payload, ttl).Err(); err != nil {
		return Data{}, fmt.Errorf("save session: %w", err)
	}
	if err := s.client.SAdd(ctx, s.userKey(data.UserID), data.ID).Err(); err != nil {
		return Data{}, fmt.Errorf("index session: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (Data, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{}, ErrNotFound
	}
	if err != nil {
		return Data{}, fmt.Errorf("lookup session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if data.AppRole == "" {
		data.AppRole = "user"
	}
	return data, nil
}

// Revoke deletes a session. Unknown ids are not an error.
func (s *RedisStore) Revoke(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeUser deletes every session of a user, used after role or password
// changes.
func (s *RedisStore) RevokeUser(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
