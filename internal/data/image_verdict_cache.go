package data

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"moderation/internal/biz"
	"moderation/internal/conf"
	"moderation/internal/pkg/hash"
)

const verdictKeyPrefix = "moderation:image"

// cachedImageVerdictRepo reads verdicts through Redis with a TinyLFU local
// tier. Verdicts are immutable once stored, so entries are never invalidated.
type cachedImageVerdictRepo struct {
	next  biz.ImageVerdictRepo
	cache *cache.Cache
	ttl   time.Duration
	log   *log.Helper
}

func newCachedImageVerdictRepo(next biz.ImageVerdictRepo, rdb *redis.Client, c *conf.Redis, logger log.Logger) *cachedImageVerdictRepo {
	opts := &cache.Options{Redis: rdb}
	if c.LocalCacheSize > 0 {
		opts.LocalCache = cache.NewTinyLFU(c.LocalCacheSize, c.LocalCacheTTL.Std())
	}
	return newCachedRepo(next, cache.New(opts), c.CacheTTL.Std(), logger)
}

func newCachedRepo(next biz.ImageVerdictRepo, cd *cache.Cache, ttl time.Duration, logger log.Logger) *cachedImageVerdictRepo {
	return &cachedImageVerdictRepo{
		next:  next,
		cache: cd,
		ttl:   ttl,
		log:   log.NewHelper(log.With(logger, "module", "data/image_verdict_cache")),
	}
}

func (r *cachedImageVerdictRepo) Get(ctx context.Context, url string) (*biz.ImageVerdict, error) {
	key := hash.Key(verdictKeyPrefix, url)
	var v biz.ImageVerdict
	err := r.cache.Get(ctx, key, &v)
	switch {
	case err == nil && v.URL == url:
		return &v, nil
	case err == nil:
		// keys are hashes, so two URLs can share one
		r.log.Debugf("cache key %s holds %s, not %s", key, v.URL, url)
	case !errors.Is(err, cache.ErrCacheMiss):
		r.log.Warnf("redis get %s: %v", key, err)
	}

	stored, err := r.next.Get(ctx, url)
	if err != nil || stored == nil {
		return stored, err
	}
	r.set(ctx, key, stored)
	return stored, nil
}

func (r *cachedImageVerdictRepo) InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error) {
	inserted, err := r.next.InsertIfAbsent(ctx, url, flagged)
	if err != nil || !inserted {
		return inserted, err
	}
	r.set(ctx, hash.Key(verdictKeyPrefix, url), &biz.ImageVerdict{URL: url, Flagged: flagged, ModeratedAt: time.Now().UTC()})
	return true, nil
}

func (r *cachedImageVerdictRepo) set(ctx context.Context, key string, v *biz.ImageVerdict) {
	if err := r.cache.Set(&cache.Item{Ctx: ctx, Key: key, Value: v, TTL: r.ttl}); err != nil {
		r.log.Warnf("redis set %s: %v", key, err)
	}
}

func (r *cachedImageVerdictRepo) Count(ctx context.Context) (int64, int64, error) {
	return r.next.Count(ctx)
}

func (r *cachedImageVerdictRepo) List(ctx context.Context, after string, limit int) ([]*biz.ImageVerdict, error) {
	return r.next.List(ctx, after, limit)
}
