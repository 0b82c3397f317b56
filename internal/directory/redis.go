package directory

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Redis implements Directory on shared Redis sets so several server
// instances see the same availability.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(addr, password, prefix string) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if prefix == "" {
		prefix = "responders"
	}
	return &Redis{client: c, prefix: prefix}
}

func (r *Redis) ListAvailable(ctx context.Context, category string) ([]string, error) {
	return r.client.SMembers(ctx, r.key(category)).Result()
}

func (r *Redis) MarkAvailable(ctx context.Context, responderID, category string) error {
	return r.client.SAdd(ctx, r.key(category), responderID).Err()
}

func (r *Redis) MarkUnavailable(ctx context.Context, responderID, category string) error {
	return r.client.SRem(ctx, r.key(category), responderID).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(category string) string { return r.prefix + ":" + category }
