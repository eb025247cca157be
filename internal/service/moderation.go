package service

import (
	"context"
	"errors"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/biz"
	"moderation/internal/document"
	"moderation/internal/pkg/pagination"
)

// APIOrigin tags document edits made through the API.
const APIOrigin = "api"

// StatusReply describes the scheduler and the verdict store.
type StatusReply struct {
	Document      string           `json:"document"`
	Interval      string           `json:"interval"`
	Loaded        bool             `json:"loaded"`
	Dirty         bool             `json:"dirty"`
	Running       bool             `json:"running"`
	LastSweep     *biz.SweepReport `json:"last_sweep,omitempty"`
	ImagesTotal   int64            `json:"images_total"`
	ImagesFlagged int64            `json:"images_flagged"`
}

// ImageReply is one stored image verdict.
type ImageReply struct {
	URL         string    `json:"url"`
	Flagged     bool      `json:"flagged"`
	ModeratedAt time.Time `json:"moderated_at"`
}

// DocumentsReply lists loaded documents.
type DocumentsReply struct {
	Names []string `json:"names"`
}

// PutDocumentReply acknowledges a replaced document.
type PutDocumentReply struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
	Nodes   int    `json:"nodes"`
}

// ModerationService exposes the moderation engine over HTTP.
type ModerationService struct {
	uc    *biz.ModerationUsecase
	sched *biz.Scheduler
	docs  *document.Registry
	log   *log.Helper
}

// NewModerationService creates a new ModerationService.
func NewModerationService(uc *biz.ModerationUsecase, sched *biz.Scheduler, docs *document.Registry, logger log.Logger) *ModerationService {
	return &ModerationService{
		uc:    uc,
		sched: sched,
		docs:  docs,
		log:   log.NewHelper(log.With(logger, "module", "service/moderation")),
	}
}

// Status reports the run state and the last sweep.
func (s *ModerationService) Status(ctx context.Context) (*StatusReply, error) {
	dirty, running := s.sched.State()
	_, loaded := s.docs.Get(s.sched.Document())
	reply := &StatusReply{
		Document:  s.sched.Document(),
		Interval:  s.sched.Interval().String(),
		Loaded:    loaded,
		Dirty:     dirty,
		Running:   running,
		LastSweep: s.uc.LastReport(),
	}
	total, flagged, err := s.uc.ImageStats(ctx)
	if err != nil {
		s.log.Warnf("image stats: %v", err)
	} else {
		reply.ImagesTotal, reply.ImagesFlagged = total, flagged
	}
	return reply, nil
}

// Sweep runs a sweep now.
func (s *ModerationService) Sweep(ctx context.Context) (*biz.SweepReport, error) {
	report, err := s.sched.RunNow(ctx)
	switch {
	case errors.Is(err, biz.ErrSweepInProgress):
		return nil, kerrors.Conflict("SWEEP_IN_PROGRESS", "a sweep is already running")
	case errors.Is(err, biz.ErrDocumentNotFound):
		return nil, kerrors.NotFound("DOCUMENT_NOT_FOUND", "document "+s.sched.Document()+" is not loaded")
	case err != nil:
		return nil, kerrors.InternalServer("SWEEP_FAILED", err.Error())
	}
	return report, nil
}

// LookupImage returns the stored verdict for url.
func (s *ModerationService) LookupImage(ctx context.Context, url string) (*ImageReply, error) {
	if url == "" {
		return nil, kerrors.BadRequest("URL_REQUIRED", "url is required")
	}
	v, err := s.uc.LookupImage(ctx, url)
	if err != nil {
		return nil, kerrors.InternalServer("STORE_UNAVAILABLE", err.Error())
	}
	if v == nil {
		return nil, kerrors.NotFound("IMAGE_NOT_MODERATED", "no verdict for "+url)
	}
	return &ImageReply{URL: v.URL, Flagged: v.Flagged, ModeratedAt: v.ModeratedAt}, nil
}

// ListImages pages through stored verdicts.
func (s *ModerationService) ListImages(ctx context.Context, cursor string, limit int) (*pagination.Response[*ImageReply], error) {
	page, err := s.uc.ListImages(ctx, pagination.NewRequest(cursor, limit))
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return nil, kerrors.BadRequest("INVALID_CURSOR", err.Error())
	}
	if err != nil {
		return nil, kerrors.InternalServer("STORE_UNAVAILABLE", err.Error())
	}
	out := &pagination.Response[*ImageReply]{
		Items:      make([]*ImageReply, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i, v := range page.Items {
		out.Items[i] = &ImageReply{URL: v.URL, Flagged: v.Flagged, ModeratedAt: v.ModeratedAt}
	}
	return out, nil
}

// ListDocuments lists loaded documents.
func (s *ModerationService) ListDocuments(context.Context) (*DocumentsReply, error) {
	return &DocumentsReply{Names: s.docs.Names()}, nil
}

// GetDocument returns the current contents of a document.
func (s *ModerationService) GetDocument(_ context.Context, name string) (*document.Snapshot, error) {
	doc, ok := s.docs.Get(name)
	if !ok {
		return nil, kerrors.NotFound("DOCUMENT_NOT_FOUND", "document "+name+" is not loaded")
	}
	snap := &document.Snapshot{Name: name}
	doc.View(func(root *document.Node) {
		snap.Content = document.Encode(root)
	})
	return snap, nil
}

// PutDocument replaces the contents of a document, creating it if needed.
// body is a YAML or JSON snapshot.
func (s *ModerationService) PutDocument(_ context.Context, name string, body []byte) (*PutDocumentReply, error) {
	snap, err := document.Decode(body)
	if err != nil {
		return nil, kerrors.BadRequest("INVALID_DOCUMENT", err.Error())
	}
	if snap.Name != "" && snap.Name != name {
		return nil, kerrors.BadRequest("NAME_MISMATCH", "body names document "+snap.Name)
	}
	nodes, err := document.Build(snap.Content)
	if err != nil {
		return nil, kerrors.BadRequest("INVALID_DOCUMENT", err.Error())
	}
	doc, err := s.docs.Register(name, APIOrigin, nodes)
	if err != nil {
		return nil, kerrors.BadRequest("INVALID_DOCUMENT", err.Error())
	}
	s.log.Infof("document %q replaced with %d top-level nodes", name, len(nodes))
	return &PutDocumentReply{Name: name, Version: doc.Version(), Nodes: len(nodes)}, nil
}
