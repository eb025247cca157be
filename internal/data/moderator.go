package data

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/biz"
	"moderation/internal/conf"
	"moderation/internal/pkg/filter"
	"moderation/internal/pkg/httpx"
	"moderation/internal/pkg/llm"
	"moderation/internal/pkg/moderator"
	"moderation/internal/pkg/nsfw"
)

// verdictStoreAdapter adapts biz.ImageVerdictRepo to moderator.VerdictStore.
type verdictStoreAdapter struct {
	repo biz.ImageVerdictRepo
}

func (a *verdictStoreAdapter) Get(ctx context.Context, url string) (*moderator.StoredVerdict, error) {
	v, err := a.repo.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return &moderator.StoredVerdict{Flagged: v.Flagged, ModeratedAt: v.ModeratedAt}, nil
}

func (a *verdictStoreAdapter) InsertIfAbsent(ctx context.Context, url string, flagged bool) (bool, error) {
	return a.repo.InsertIfAbsent(ctx, url, flagged)
}

func guardConfig(rateLimit float64, burst int, b conf.Breaker) moderator.GuardConfig {
	return moderator.GuardConfig{
		RateLimit:           rateLimit,
		Burst:               burst,
		MaxRequests:         b.MaxRequests,
		Interval:            b.Interval.Std(),
		Timeout:             b.Timeout.Std(),
		ConsecutiveFailures: b.ConsecutiveFailures,
	}
}

// NewTextBackend builds the configured remote text classifier, nil for "none".
func NewTextBackend(c *conf.Text, logger log.Logger) (moderator.TextBackend, error) {
	client := httpx.NewClient(c.Timeout.Std(), httpx.WithLogger(logger))
	switch c.Backend {
	case "openai":
		m, err := llm.NewOpenAIModerator(llm.OpenAIConfig{
			APIKey:     c.OpenAI.APIKey,
			BaseURL:    c.OpenAI.BaseURL,
			Model:      c.OpenAI.Model,
			HTTPClient: client,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "guard":
		m, err := llm.NewGuardModerator(llm.GuardConfig{
			BaseURL:    c.Guard.BaseURL,
			Model:      c.Guard.Model,
			APIKey:     c.Guard.APIKey,
			MaxTokens:  c.Guard.MaxTokens,
			HTTPClient: client,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown text backend %q", c.Backend)
}

// NewTextModerator creates the text moderator with its blocklist, memo and guard.
func NewTextModerator(mc *conf.Moderation, logger log.Logger) (*moderator.TextModerator, error) {
	helper := log.NewHelper(log.With(logger, "module", "data/moderator"))

	backend, err := NewTextBackend(&mc.Text, logger)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		helper.Warn("no text backend configured, only the blocklist applies")
	}

	var blocklist *filter.Blocklist
	if len(mc.Blocklist.Words) > 0 {
		blocklist = filter.NewBlocklist(filter.Words(mc.Blocklist.Words))
		helper.Infof("blocklist loaded with %d terms", blocklist.Len())
	}

	config := moderator.DefaultTextModeratorConfig()
	config.Timeout = mc.Text.Timeout.Std()
	config.Memo = mc.Memo.Enabled
	config.MemoSize = mc.Memo.Size
	config.MemoTTL = mc.Memo.TTL.Std()

	var guard *moderator.Guard
	if backend != nil {
		guard = moderator.NewGuard(backend.Name(), guardConfig(mc.Text.RateLimit, mc.Text.Burst, mc.Text.Breaker), logger)
	}
	return moderator.NewTextModerator(config, backend, blocklist, guard, logger), nil
}

// NewImageModerator creates the image moderator over the verdict store. With
// image classification disabled stored verdicts still apply.
func NewImageModerator(mc *conf.Moderation, repo biz.ImageVerdictRepo, logger log.Logger) *moderator.ImageModerator {
	config := moderator.DefaultImageModeratorConfig()
	config.Workers = mc.Image.Concurrency
	config.Timeout = mc.Image.Timeout.Std()

	store := &verdictStoreAdapter{repo: repo}
	if !mc.Image.Enabled {
		return moderator.NewImageModerator(config, nil, store, nil, logger)
	}

	client := nsfw.NewClient(nsfw.Config{
		BaseURL:    mc.Image.BaseURL,
		Timeout:    mc.Image.Timeout.Std(),
		Threshold:  mc.Image.Threshold,
		HTTPClient: httpx.NewClient(mc.Image.Timeout.Std(), httpx.WithLogger(logger)),
	})
	guard := moderator.NewGuard(client.Name(), guardConfig(mc.Image.RateLimit, mc.Image.Burst, mc.Image.Breaker), logger)
	return moderator.NewImageModerator(config, client, store, guard, logger)
}
