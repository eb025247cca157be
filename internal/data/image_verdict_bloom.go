package data

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/biz"
)

const warmPageSize = 1000

// urlFilter is the slice of *bloom.Filter the prefilter uses.
type urlFilter interface {
	AddString(ctx context.Context, s string) error
	MayContainString(ctx context.Context, s string) (bool, error)
	Seal(ctx context.Context) error
	Sealed(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
}

// bloomImageVerdictRepo answers lookups of never-moderated URLs without
// touching the layers below. The filter is only trusted while it is sealed:
// until the first warm-up finishes, and after Redis loses the key, every
// lookup falls through and the filter is rebuilt in the background.
type bloomImageVerdictRepo struct {
	next    biz.ImageVerdictRepo
	filter  urlFilter
	key     string
	ready   atomic.Bool
	warming atomic.Bool
	ctx     context.Context
	wg      sync.WaitGroup
	log     *log.Helper
}

// newBloomImageVerdictRepo wraps next. ctx bounds background warm-ups.
func newBloomImageVerdictRepo(ctx context.Context, next biz.ImageVerdictRepo, filter urlFilter, key string, logger log.Logger) *bloomImageVerdictRepo {
	return &bloomImageVerdictRepo{
		next:   next,
		filter: filter,
		key:    key,
		ctx:    ctx,
		log:    log.NewHelper(log.With(logger, "module", "data/image_verdict_bloom")),
	}
}

// rewarm stops trusting the filter and rebuilds it in the background, unless
// a rebuild is already running.
func (r *bloomImageVerdictRepo) rewarm() {
	if !r.warming.CompareAndSwap(false, true) {
		return
	}
	r.ready.Store(false)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.warming.Store(false)
		if err := r.warm(r.ctx); err != nil {
			r.log.Warnf("bloom filter %s not warmed, lookups go to the store: %v", r.key, err)
		}
	}()
}

// wait blocks until background warm-ups have returned.
func (r *bloomImageVerdictRepo) wait() { r.wg.Wait() }

// warm rebuilds the filter from the store below unless Redis holds a sealed one.
func (r *bloomImageVerdictRepo) warm(ctx context.Context) error {
	sealed, err := r.filter.Sealed(ctx)
	if err != nil {
		return err
	}
	if !sealed {
		if err := r.filter.Reset(ctx); err != nil {
			return err
		}
		added, err := r.fill(ctx)
		if err != nil {
			return err
		}
		if err := r.filter.Seal(ctx); err != nil {
			return err
		}
		r.log.Infof("bloom filter %s warmed with %d urls", r.key, added)
	}
	r.ready.Store(true)
	return nil
}

func (r *bloomImageVerdictRepo) fill(ctx context.Context) (int, error) {
	after, added := "", 0
	for {
		page, err := r.next.List(ctx, after, warmPageSize)
		if err != nil {
			return added, err
		}
		for _, v := range page {
			if err := r.filter.AddString(ctx, v.URL); err != nil {
				return added, err
			}
		}
		added += len(page)
		if len(page) < warmPageSize {
			return added, nil
		}
		after = page[len(page)-1].URL
	}
}

func (r *bloomImageVerdictRepo) Get(ctx context.Context, url string) (*biz.ImageVerdict, error) {
	if r.ready.Load() && r.definitelyAbsent(ctx, url) {
		return nil, nil
	}
	return r.next.Get(ctx, url)
}

// definitelyAbsent trusts a negative answer only from a sealed filter.
func (r *bloomImageVerdictRepo) definitelyAbsent(ctx context.Context, url string) bool {
	may, err := r.filter.MayContainString(ctx, url)
	if err != nil {
		r.log.Warnf("bloom check for %s: %v", url, err)
		return false
	}
	if may {
		return false
	}
	sealed, err := r.filter.Sealed(ctx)
	switch {
	case err != nil:
		r.log.Warnf("bloom seal check %s: %v", r.key, err)
		return false
	case !sealed:
		r.log.Warnf("bloom filter %s lost its seal, rebuilding", r.key)
		r.rewarm()
		return false
	}
	return true
}

func (r *bloomImageVerdictRepo) InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error) {
	inserted, err := r.next.InsertIfAbsent(ctx, url, flagged)
	if err != nil {
		return false, err
	}
	// a conflicting insert means the URL is stored, so it belongs in the filter too
	if err := r.filter.AddString(ctx, url); err != nil {
		r.log.Warnf("bloom add for %s: %v", url, err)
	}
	return inserted, nil
}

func (r *bloomImageVerdictRepo) Count(ctx context.Context) (int64, int64, error) {
	return r.next.Count(ctx)
}

func (r *bloomImageVerdictRepo) List(ctx context.Context, after string, limit int) ([]*biz.ImageVerdict, error) {
	return r.next.List(ctx, after, limit)
}
