package data

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/biz"
	"moderation/internal/conf"
	"moderation/internal/pkg/bloom"
	pkgredis "moderation/internal/pkg/redis"
)

// NewImageVerdictRepo builds the verdict store: Postgres or memory, behind a
// Redis read-through cache and a bloom prefilter when Redis is available.
func NewImageVerdictRepo(c *conf.Data, data *Data, rdb *pkgredis.Redis, logger log.Logger) (biz.ImageVerdictRepo, func(), error) {
	var repo biz.ImageVerdictRepo
	switch c.VerdictStore {
	case "postgres":
		if data.Queries == nil {
			return nil, nil, fmt.Errorf("postgres verdict store without a database")
		}
		repo = newPostgresImageVerdictRepo(data, logger)
	case "memory":
		repo = newMemImageVerdictRepo()
	default:
		return nil, nil, fmt.Errorf("unknown verdict store %q", c.VerdictStore)
	}
	if rdb == nil {
		return repo, func() {}, nil
	}

	repo = newCachedImageVerdictRepo(repo, rdb.Client(), c.Redis, logger)
	if !c.Redis.Bloom.Enabled {
		return repo, func() {}, nil
	}

	bc := c.Redis.Bloom
	ctx, cancel := context.WithCancel(context.Background())
	b := newBloomImageVerdictRepo(ctx, repo, bloom.New(rdb, bc.Key, uint(bc.Bits), bc.Hashes), bc.Key, logger)
	b.rewarm()
	cleanup := func() {
		cancel()
		b.wait()
	}
	return b, cleanup, nil
}
