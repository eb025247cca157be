package data

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"moderation/internal/biz"
)

// memImageVerdictRepo keeps verdicts in process memory for development and
// one-shot checks. Verdicts never expire.
type memImageVerdictRepo struct {
	c *gocache.Cache
}

func newMemImageVerdictRepo() *memImageVerdictRepo {
	return &memImageVerdictRepo{c: gocache.New(gocache.NoExpiration, 0)}
}

func (r *memImageVerdictRepo) Get(_ context.Context, url string) (*biz.ImageVerdict, error) {
	v, ok := r.c.Get(url)
	if !ok {
		return nil, nil
	}
	out := *v.(*biz.ImageVerdict)
	return &out, nil
}

func (r *memImageVerdictRepo) InsertIfAbsent(_ context.Context, url string, flagged bool) (bool, error) {
	v := &biz.ImageVerdict{URL: url, Flagged: flagged, ModeratedAt: time.Now().UTC()}
	if err := r.c.Add(url, v, gocache.NoExpiration); err != nil {
		return false, nil // already stored
	}
	return true, nil
}

func (r *memImageVerdictRepo) Count(context.Context) (int64, int64, error) {
	var total, flagged int64
	for _, item := range r.c.Items() {
		total++
		if item.Object.(*biz.ImageVerdict).Flagged {
			flagged++
		}
	}
	return total, flagged, nil
}

func (r *memImageVerdictRepo) List(_ context.Context, after string, limit int) ([]*biz.ImageVerdict, error) {
	items := r.c.Items()
	urls := make([]string, 0, len(items))
	for url := range items {
		if url > after {
			urls = append(urls, url)
		}
	}
	sort.Strings(urls)
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	out := make([]*biz.ImageVerdict, 0, len(urls))
	for _, url := range urls {
		v := *items[url].Object.(*biz.ImageVerdict)
		out = append(out, &v)
	}
	return out, nil
}
