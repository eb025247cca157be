package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	"moderation/internal/document"
	"moderation/internal/pkg/moderator"
	"moderation/internal/pkg/pagination"
)

// SweepReport summarizes one sweep of a document.
type SweepReport struct {
	Document       string        `json:"document"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Version        uint64        `json:"version"`
	TextLength     int           `json:"text_length"`
	Images         int           `json:"images"`
	TextFlagged    bool          `json:"text_flagged"`
	TextLocations  int           `json:"text_locations"`
	ImageLocations int           `json:"image_locations"`
	Deleted        int           `json:"deleted"`
	Skipped        int           `json:"skipped"`
	Rebased        bool          `json:"rebased"`
	Anomaly        bool          `json:"anomaly"`
}

// Outcome classifies the report for metrics and logs.
func (r *SweepReport) Outcome() string {
	switch {
	case r.Deleted > 0:
		return "redacted"
	default:
		return "clean"
	}
}

// ModerationUsecase runs sweeps: extract, classify, locate, merge and apply.
type ModerationUsecase struct {
	text    TextClassifier
	images  ImageClassifier
	locator *Locator
	apply   *Applicator
	repo    ImageVerdictRepo
	log     *log.Helper

	mu   sync.RWMutex
	last *SweepReport
}

// NewModerationUsecase creates a ModerationUsecase.
func NewModerationUsecase(text TextClassifier, images ImageClassifier, locator *Locator, apply *Applicator, repo ImageVerdictRepo, logger log.Logger) *ModerationUsecase {
	return &ModerationUsecase{
		text:    text,
		images:  images,
		locator: locator,
		apply:   apply,
		repo:    repo,
		log:     log.NewHelper(log.With(logger, "module", "biz/moderation")),
	}
}

// Sweep moderates doc once. Classifier failures never fail a sweep; the only
// error is context cancellation. Edits made while classifiers run are
// tolerated: the plan is rebased onto the tree as it is at apply time.
func (uc *ModerationUsecase) Sweep(ctx context.Context, doc *document.Doc) (*SweepReport, error) {
	report := &SweepReport{Document: doc.Name(), StartedAt: time.Now()}

	var (
		text string
		refs []ImageReference
		snap *Snap
	)
	doc.ViewAt(func(root *document.Node, version uint64) {
		text = DocumentText(root)
		refs = ImageReferences(root)
		snap = Snapshot(root)
		report.Version = version
	})
	report.TextLength = len(text)
	report.Images = len(refs)

	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.URL)
	}

	var (
		textVerdict   moderator.Verdict
		imageVerdicts map[string]moderator.Verdict
	)
	var g errgroup.Group
	goSafe(&g, func() error {
		textVerdict = uc.text.Check(ctx, text)
		return nil
	})
	goSafe(&g, func() error {
		if len(urls) > 0 {
			imageVerdicts = uc.images.CheckAll(ctx, urls)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	textPlan := LocationMap{}
	if textVerdict.Flagged {
		report.TextFlagged = true
		textPlan = uc.locator.Locate(ctx, snap)
		if textPlan.Len() == 0 {
			report.Anomaly = true
			locatorAnomalies.Inc()
			uc.log.Errorf("document %q flagged (%v) but no node located, text length %d", doc.Name(), textVerdict.Categories, len(text))
		}
	}
	imagePlan := ImageLocations(refs, func(url string) bool {
		return imageVerdicts[url].Flagged
	})
	report.TextLocations = textPlan.Len()
	report.ImageLocations = imagePlan.Len()

	plan := Merge(textPlan, imagePlan)
	res := uc.apply.Apply(doc, snap, report.Version, plan)
	report.Deleted = res.Deleted
	report.Skipped = res.Skipped
	report.Rebased = res.Rebased
	report.Duration = time.Since(report.StartedAt)
	if res.Deleted > 0 {
		nodesRedacted.WithLabelValues("text").Add(float64(report.TextLocations))
		nodesRedacted.WithLabelValues("image").Add(float64(report.ImageLocations))
		uc.log.Infof("document %q: removed %d nodes (text %d, image %d)", doc.Name(), res.Deleted, report.TextLocations, report.ImageLocations)
	}

	uc.mu.Lock()
	uc.last = report
	uc.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent sweep report, or nil before the first sweep.
func (uc *ModerationUsecase) LastReport() *SweepReport {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.last == nil {
		return nil
	}
	r := *uc.last
	return &r
}

// LookupImage returns the stored verdict for url, nil if the URL was never moderated.
func (uc *ModerationUsecase) LookupImage(ctx context.Context, url string) (*ImageVerdict, error) {
	return uc.repo.Get(ctx, url)
}

// ListImages pages through stored verdicts ordered by URL.
func (uc *ModerationUsecase) ListImages(ctx context.Context, req *pagination.Request) (*pagination.Response[*ImageVerdict], error) {
	cursor, err := pagination.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	items, err := uc.repo.List(ctx, cursor.After, req.GetFetchLimit())
	if err != nil {
		return nil, err
	}
	return pagination.BuildResponse(items, req.GetLimit(), func(v *ImageVerdict) string { return v.URL }), nil
}

// ImageStats counts stored image verdicts.
func (uc *ModerationUsecase) ImageStats(ctx context.Context) (total, flagged int64, err error) {
	return uc.repo.Count(ctx)
}

// goSafe runs fn in g and reports a panic in fn as the goroutine's error.
func goSafe(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	})
}
