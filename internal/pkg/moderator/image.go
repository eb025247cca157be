package moderator

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	"moderation/internal/pkg/nsfw"
)

// ImageBackend is a remote image classifier addressed by URL.
type ImageBackend interface {
	Name() string
	DetectFromURL(ctx context.Context, url string) (*nsfw.DetectionResult, error)
}

// StoredVerdict is a persisted image decision.
type StoredVerdict struct {
	Flagged     bool
	ModeratedAt time.Time
}

// VerdictStore persists image decisions keyed by URL. Once a URL is stored
// its verdict is final.
type VerdictStore interface {
	// Get returns nil, nil when url has no verdict.
	Get(ctx context.Context, url string) (*StoredVerdict, error)
	// InsertIfAbsent stores the verdict unless one exists and reports whether it did.
	InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error)
}

// ImageModeratorConfig holds configuration for image moderation.
type ImageModeratorConfig struct {
	Workers int
	Timeout time.Duration
}

// DefaultImageModeratorConfig returns default configuration.
func DefaultImageModeratorConfig() ImageModeratorConfig {
	return ImageModeratorConfig{
		Workers: 4,
		Timeout: 15 * time.Second,
	}
}

// ImageModerator checks images against the verdict store first and only
// classifies URLs it has never seen.
type ImageModerator struct {
	config  ImageModeratorConfig
	backend ImageBackend
	store   VerdictStore
	guard   *Guard
	log     *log.Helper
}

// NewImageModerator creates an ImageModerator. A nil backend disables
// classification; stored verdicts are still honoured.
func NewImageModerator(config ImageModeratorConfig, backend ImageBackend, store VerdictStore, guard *Guard, logger log.Logger) *ImageModerator {
	return &ImageModerator{
		config:  config,
		backend: backend,
		store:   store,
		guard:   guard,
		log:     log.NewHelper(log.With(logger, "module", "moderator/image")),
	}
}

// Classify calls the backend directly, bypassing the store.
func (m *ImageModerator) Classify(ctx context.Context, url string) (Verdict, error) {
	if m.backend == nil {
		return Verdict{}, nil
	}
	name := m.backend.Name()
	start := time.Now()
	res, err := guarded(ctx, m.guard, func(ctx context.Context) (*nsfw.DetectionResult, error) {
		if m.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
			defer cancel()
		}
		return m.backend.DetectFromURL(ctx, url)
	})
	classifierDuration.WithLabelValues("image", name).Observe(time.Since(start).Seconds())
	if err != nil {
		classifierCalls.WithLabelValues("image", name, "error").Inc()
		return Verdict{}, err
	}
	if !res.IsNSFW {
		classifierCalls.WithLabelValues("image", name, "clean").Inc()
		return Verdict{}, nil
	}
	classifierCalls.WithLabelValues("image", name, "flagged").Inc()
	return Verdict{Flagged: true, Categories: []string{res.Label}}, nil
}

// Check returns the stored verdict for url, or classifies and stores it.
// Store failures and classifier failures never surface: a failed lookup falls
// through to the classifier, a failed classification is "not flagged" and is
// not stored, a failed insert still returns the fresh verdict. A conflicting
// insert means another verdict won, and that stored verdict is returned.
func (m *ImageModerator) Check(ctx context.Context, url string) Verdict {
	if m.store != nil {
		stored, err := m.store.Get(ctx, url)
		switch {
		case err != nil:
			imageCacheLookups.WithLabelValues("error").Inc()
			m.log.Warnf("image verdict lookup failed for %s: %v", url, err)
		case stored != nil:
			imageCacheLookups.WithLabelValues("hit").Inc()
			return Verdict{Flagged: stored.Flagged}
		default:
			imageCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	if m.backend == nil {
		return Verdict{}
	}

	v, err := m.Classify(ctx, url)
	if err != nil {
		m.log.Warnf("image classification failed for %s, treating as clean: %v", url, err)
		return Verdict{}
	}

	if m.store != nil {
		inserted, err := m.store.InsertIfAbsent(ctx, url, v.Flagged)
		switch {
		case err != nil:
			imageCacheLookups.WithLabelValues("error").Inc()
			m.log.Warnf("failed to store image verdict for %s: %v", url, err)
		case !inserted:
			imageCacheLookups.WithLabelValues("conflict").Inc()
			stored, err := m.store.Get(ctx, url)
			if err != nil {
				m.log.Warnf("image verdict reread failed for %s: %v", url, err)
				break
			}
			if stored != nil {
				if stored.Flagged != v.Flagged {
					m.log.Infof("image %s reclassified as flagged=%v, keeping stored flagged=%v", url, v.Flagged, stored.Flagged)
				}
				return Verdict{Flagged: stored.Flagged}
			}
		default:
			imageCacheLookups.WithLabelValues("inserted").Inc()
		}
	}
	return v
}

// CheckAll checks every distinct URL with bounded concurrency and returns the
// verdicts by URL.
func (m *ImageModerator) CheckAll(ctx context.Context, urls []string) map[string]Verdict {
	workers := m.config.Workers
	if workers <= 0 {
		workers = 4
	}

	out := make(map[string]Verdict, len(urls))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	seen := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		g.Go(func() error {
			v := m.Check(ctx, url)
			mu.Lock()
			out[url] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
