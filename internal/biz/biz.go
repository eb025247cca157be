package biz

import (
	"context"

	"github.com/google/wire"

	"moderation/internal/pkg/moderator"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewLocator,
	NewApplicator,
	NewModerationUsecase,
	NewScheduler,
)

// TextClassifier folds classifier failures into a clean verdict.
type TextClassifier interface {
	Check(ctx context.Context, text string) moderator.Verdict
}

// ImageClassifier checks a batch of image URLs. Every input URL has an entry
// in the result.
type ImageClassifier interface {
	CheckAll(ctx context.Context, urls []string) map[string]moderator.Verdict
}

var (
	_ TextClassifier  = (*moderator.TextModerator)(nil)
	_ ImageClassifier = (*moderator.ImageModerator)(nil)
)
