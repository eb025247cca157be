package biz

import (
	"context"
	"time"
)

// ImageVerdict is the persisted decision for one image URL.
type ImageVerdict struct {
	URL         string
	Flagged     bool
	ModeratedAt time.Time
}

// ImageVerdictRepo stores image verdicts. A URL has at most one verdict and
// it is never overwritten.
type ImageVerdictRepo interface {
	// Get returns nil, nil when url has no verdict.
	Get(ctx context.Context, url string) (*ImageVerdict, error)
	// InsertIfAbsent reports false, nil when a verdict already exists.
	InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error)
	Count(ctx context.Context) (total int64, flagged int64, err error)
	// List returns up to limit verdicts with URL greater than after, by URL.
	List(ctx context.Context, after string, limit int) ([]*ImageVerdict, error)
}
