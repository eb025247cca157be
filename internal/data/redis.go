package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/conf"
	pkgredis "moderation/internal/pkg/redis"
)

// NewRedis connects to Redis. It returns nil when Redis is disabled.
func NewRedis(c *conf.Data, logger log.Logger) (*pkgredis.Redis, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data/redis"))
	if !c.Redis.Enabled {
		return nil, func() {}, nil
	}

	client := pkgredis.New(pkgredis.Options{
		Network:      c.Redis.Network,
		Addr:         c.Redis.Addr,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		ReadTimeout:  c.Redis.ReadTimeout.Std(),
		WriteTimeout: c.Redis.WriteTimeout.Std(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		helper.Errorf("failed to connect to Redis at %s: %v", c.Redis.Addr, err)
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	helper.Infof("connected to Redis at %s", c.Redis.Addr)

	cleanup := func() {
		helper.Info("closing Redis connection")
		_ = client.Close()
	}
	return client, cleanup, nil
}
