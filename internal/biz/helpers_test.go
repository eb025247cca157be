package biz

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/conf"
	"moderation/internal/document"
	"moderation/internal/pkg/moderator"
	"moderation/internal/pkg/nsfw"
)

const violation = "<explicit-violation-text>"

// keywordText flags any text containing violation.
type keywordText struct {
	mu    sync.Mutex
	calls int
	texts []string
	hold  chan struct{} // when set, Check blocks until closed
}

func (k *keywordText) Check(_ context.Context, text string) moderator.Verdict {
	k.mu.Lock()
	k.calls++
	k.texts = append(k.texts, text)
	hold := k.hold
	k.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if strings.Contains(text, violation) {
		return moderator.Verdict{Flagged: true, Categories: []string{"sexual"}}
	}
	return moderator.Verdict{}
}

func (k *keywordText) Calls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls
}

// alwaysFlagged flags every non-blank text.
type alwaysFlagged struct{}

func (alwaysFlagged) Check(_ context.Context, text string) moderator.Verdict {
	return moderator.Verdict{Flagged: strings.TrimSpace(text) != ""}
}

type nsfwBackend struct {
	calls   atomic.Int32
	flagged map[string]bool
}

func (b *nsfwBackend) Name() string { return "fake" }

func (b *nsfwBackend) DetectFromURL(_ context.Context, url string) (*nsfw.DetectionResult, error) {
	b.calls.Add(1)
	if b.flagged[url] {
		return &nsfw.DetectionResult{IsNSFW: true, NSFWScore: 0.97, Label: "nsfw"}, nil
	}
	return &nsfw.DetectionResult{NormalScore: 0.99, Label: "normal"}, nil
}

// memVerdicts satisfies both the biz repository and the moderator store.
type memVerdicts struct {
	mu       sync.Mutex
	verdicts map[string]*ImageVerdict
}

func newMemVerdicts() *memVerdicts {
	return &memVerdicts{verdicts: map[string]*ImageVerdict{}}
}

func (m *memVerdicts) Get(_ context.Context, url string) (*ImageVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verdicts[url]
	if !ok {
		return nil, nil
	}
	out := *v
	return &out, nil
}

func (m *memVerdicts) InsertIfAbsent(_ context.Context, url string, flagged bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.verdicts[url]; ok {
		return false, nil
	}
	m.verdicts[url] = &ImageVerdict{URL: url, Flagged: flagged, ModeratedAt: time.Now()}
	return true, nil
}

func (m *memVerdicts) Count(context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flagged int64
	for _, v := range m.verdicts {
		if v.Flagged {
			flagged++
		}
	}
	return int64(len(m.verdicts)), flagged, nil
}

func (m *memVerdicts) List(_ context.Context, after string, limit int) ([]*ImageVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, 0, len(m.verdicts))
	for u := range m.verdicts {
		if u > after {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	if len(urls) > limit {
		urls = urls[:limit]
	}
	out := make([]*ImageVerdict, 0, len(urls))
	for _, u := range urls {
		v := *m.verdicts[u]
		out = append(out, &v)
	}
	return out, nil
}

type storeAdapter struct{ repo *memVerdicts }

func (a storeAdapter) Get(ctx context.Context, url string) (*moderator.StoredVerdict, error) {
	v, err := a.repo.Get(ctx, url)
	if err != nil || v == nil {
		return nil, err
	}
	return &moderator.StoredVerdict{Flagged: v.Flagged, ModeratedAt: v.ModeratedAt}, nil
}

func (a storeAdapter) InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error) {
	return a.repo.InsertIfAbsent(ctx, url, flagged)
}

func testConf() *conf.Moderation {
	return &conf.Moderation{Document: "main", Origin: "moderation", Interval: conf.Duration(10 * time.Second)}
}

type fixture struct {
	text    *keywordText
	backend *nsfwBackend
	repo    *memVerdicts
	uc      *ModerationUsecase
}

func newFixture(flaggedImages ...string) *fixture {
	f := &fixture{
		text:    &keywordText{},
		backend: &nsfwBackend{flagged: map[string]bool{}},
		repo:    newMemVerdicts(),
	}
	for _, u := range flaggedImages {
		f.backend.flagged[u] = true
	}
	images := moderator.NewImageModerator(moderator.DefaultImageModeratorConfig(), f.backend, storeAdapter{f.repo}, nil, log.DefaultLogger)
	f.uc = NewModerationUsecase(f.text, images, NewLocator(f.text, log.DefaultLogger),
		NewApplicator(testConf(), log.DefaultLogger), f.repo, log.DefaultLogger)
	return f
}

func para(text string) *document.Node {
	return document.NewElement("paragraph", nil, document.NewText(text))
}

func image(src string) *document.Node {
	return document.NewElement(ImageNodeName, map[string]string{ImageSrcAttr: src})
}

// texts renders the first level of root, one entry per child.
func texts(root *document.Node) []string {
	var out []string
	for _, c := range root.Children() {
		switch {
		case c.Kind() == document.KindText:
			out = append(out, c.TextContent())
		case c.Name() == ImageNodeName:
			out = append(out, "img:"+c.Attr(ImageSrcAttr))
		default:
			out = append(out, strings.TrimSpace(NodeText(c)))
		}
	}
	return out
}
