package remote

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL    string
	Prefix string
}

// Redis stores each owner's collection as one hash keyed by document id.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the server at cfg.URL and pings it.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisFromClient(client, cfg.Prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(owner, collection string) string {
	return fmt.Sprintf("%susers:%s:%s", r.prefix, owner, collection)
}

// Put implements Backend.
func (r *Redis) Put(ctx context.Context, owner, collection, id string, data []byte) error {
	return r.client.HSet(ctx, r.key(owner, collection), id, data).Err()
}

// Delete implements Backend.
func (r *Redis) Delete(ctx context.Context, owner, collection, id string) error {
	return r.client.HDel(ctx, r.key(owner, collection), id).Err()
}

// List implements Backend. Documents are returned in id order.
func (r *Redis) List(ctx context.Context, owner, collection string) ([]Document, error) {
	fields, err := r.client.HGetAll(ctx, r.key(owner, collection)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(fields))
	for id, data := range fields {
		out = append(out, Document{ID: id, Data: []byte(data)})
	}
	slices.SortFunc(out, func(a, b Document) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Close implements Backend.
func (r *Redis) Close() error {
	return r.client.Close()
}
