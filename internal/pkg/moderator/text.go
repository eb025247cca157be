package moderator

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"moderation/internal/pkg/filter"
	"moderation/internal/pkg/hash"
	"moderation/internal/pkg/llm"
)

// TextBackend is a remote text classifier.
type TextBackend interface {
	Name() string
	ModerateText(ctx context.Context, text string) (*llm.ModerationResult, error)
}

// TextModeratorConfig holds configuration for text moderation.
type TextModeratorConfig struct {
	Timeout time.Duration // per backend call, 0 means caller's deadline only
	// Memo caches verdicts of identical text between sweeps.
	Memo     bool
	MemoSize int
	MemoTTL  time.Duration
}

// DefaultTextModeratorConfig returns default configuration.
func DefaultTextModeratorConfig() TextModeratorConfig {
	return TextModeratorConfig{
		Timeout:  10 * time.Second,
		MemoSize: 1024,
		MemoTTL:  10 * time.Minute,
	}
}

// TextModerator layers a local blocklist and an optional verdict memo in front
// of a remote backend.
type TextModerator struct {
	config    TextModeratorConfig
	backend   TextBackend
	blocklist *filter.Blocklist
	memo      *expirable.LRU[string, Verdict]
	guard     *Guard
	log       *log.Helper
}

// NewTextModerator creates a TextModerator. backend and blocklist may be nil.
func NewTextModerator(config TextModeratorConfig, backend TextBackend, blocklist *filter.Blocklist, guard *Guard, logger log.Logger) *TextModerator {
	m := &TextModerator{
		config:    config,
		backend:   backend,
		blocklist: blocklist,
		guard:     guard,
		log:       log.NewHelper(log.With(logger, "module", "moderator/text")),
	}
	if config.Memo && config.MemoSize > 0 {
		m.memo = expirable.NewLRU[string, Verdict](config.MemoSize, nil, config.MemoTTL)
	}
	return m
}

func (m *TextModerator) backendName() string {
	if m.backend == nil {
		return "none"
	}
	return m.backend.Name()
}

// Classify returns the verdict for text or an error wrapping
// ErrClassifierUnavailable. Blank text is never sent to the backend.
func (m *TextModerator) Classify(ctx context.Context, text string) (Verdict, error) {
	if strings.TrimSpace(text) == "" {
		return Verdict{}, nil
	}

	if m.blocklist != nil {
		if cats := m.blocklist.Categories(text); len(cats) > 0 {
			textShortCircuits.WithLabelValues("blocklist").Inc()
			return Verdict{Flagged: true, Categories: cats}, nil
		}
	}

	var key string
	if m.memo != nil {
		key = hash.Key("txt", text)
		if v, ok := m.memo.Get(key); ok {
			textShortCircuits.WithLabelValues("memo").Inc()
			return v, nil
		}
	}

	if m.backend == nil {
		return Verdict{}, nil
	}

	start := time.Now()
	res, err := guarded(ctx, m.guard, func(ctx context.Context) (*llm.ModerationResult, error) {
		if m.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
			defer cancel()
		}
		return m.backend.ModerateText(ctx, text)
	})
	classifierDuration.WithLabelValues("text", m.backendName()).Observe(time.Since(start).Seconds())
	if err != nil {
		classifierCalls.WithLabelValues("text", m.backendName(), "error").Inc()
		return Verdict{}, err
	}

	v := Verdict{Flagged: res.Flagged, Categories: res.Categories}
	outcome := "clean"
	if v.Flagged {
		outcome = "flagged"
	}
	classifierCalls.WithLabelValues("text", m.backendName(), outcome).Inc()

	if m.memo != nil {
		m.memo.Add(key, v)
	}
	return v, nil
}

// Check is Classify with failures folded to "not flagged". Moderation must
// never block editing, so an unavailable classifier lets content through.
func (m *TextModerator) Check(ctx context.Context, text string) Verdict {
	v, err := m.Classify(ctx, text)
	if err != nil {
		m.log.Warnf("text classification failed, treating as clean: %v", err)
		return Verdict{}
	}
	return v
}
