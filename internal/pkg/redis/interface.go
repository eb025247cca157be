package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Cache is the slice of Redis the moderation service depends on.
type Cache interface {
	Ping(ctx context.Context) error

	ScriptRun(ctx context.Context, script *redis.Script, keys []string,
		args ...any) (any, error)

	Del(ctx context.Context, keys ...string) (int64, error)
}
