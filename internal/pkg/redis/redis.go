package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const Nil = redis.Nil

// Options configures a client.
type Options struct {
	Network      string
	Addr         string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis implements Cache on top of a go-redis client.
type Redis struct {
	client *redis.Client
}

// New creates a client. It does not dial; call Ping to verify connectivity.
func New(o Options) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Network:      o.Network,
			Addr:         o.Addr,
			Password:     o.Password,
			DB:           o.DB,
			ReadTimeout:  o.ReadTimeout,
			WriteTimeout: o.WriteTimeout,
		}),
	}
}

// NewScript wraps a Lua script for ScriptRun.
func NewScript(script string) *redis.Script {
	return redis.NewScript(script)
}

// Client exposes the underlying client for libraries that take one directly.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Del implements Cache.
func (r *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	return r.client.Del(ctx, keys...).Result()
}

// ScriptRun implements Cache. EVALSHA is tried first and falls back to EVAL.
func (r *Redis) ScriptRun(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	return script.Run(ctx, r.client, keys, args...).Result()
}
