package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moderation/internal/document"
	"moderation/internal/pkg/moderator"
	"moderation/internal/pkg/pagination"
)

func TestSweep_CleanDocument(t *testing.T) {
	f := newFixture()
	doc := document.New("main", document.NewFragment(para("This is fine."), image("https://cdn.example.com/cat.png")))
	mutations := 0
	doc.Observe(func(document.Change) { mutations++ })

	report, err := f.uc.Sweep(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, report.TextFlagged)
	assert.Zero(t, report.Deleted)
	assert.Zero(t, mutations)
	assert.Equal(t, "clean", report.Outcome())
	assert.Equal(t, 1, report.Images)
	assert.Equal(t, 1, f.text.Calls())
}

func TestSweep_RedactsViolatingLeaf(t *testing.T) {
	f := newFixture()
	doc := document.New("main", document.NewFragment(
		document.NewText("hello"),
		document.NewText(violation),
		document.NewText("bye"),
	))

	report, err := f.uc.Sweep(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, report.TextFlagged)
	assert.Equal(t, 1, report.TextLocations)
	assert.Equal(t, 1, report.Deleted)
	doc.View(func(root *document.Node) {
		assert.Equal(t, []string{"hello", "bye"}, texts(root))
	})
	assert.Equal(t, report, f.uc.LastReport())
}

func TestSweep_ImageScenario(t *testing.T) {
	const u = "https://cdn.example.com/explicit.png"
	f := newFixture(u)
	ctx := context.Background()

	first := document.New("main", document.NewFragment(para("caption"), image(u)))
	report, err := f.uc.Sweep(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ImageLocations)
	first.View(func(root *document.Node) {
		assert.Equal(t, []string{"caption"}, texts(root))
	})
	stored, err := f.uc.LookupImage(ctx, u)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Flagged)
	assert.Equal(t, int32(1), f.backend.calls.Load())

	// same image elsewhere, nested this time
	p := document.NewElement("paragraph", nil, document.NewText("look"), image(u), image(u))
	second := document.New("main", document.NewFragment(para("intro"), p))
	report, err = f.uc.Sweep(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, int32(1), f.backend.calls.Load())

	total, flagged, err := f.uc.ImageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), flagged)
}

func TestSweep_CleanImageCachedAcrossSweeps(t *testing.T) {
	const u = "https://cdn.example.com/cat.png"
	f := newFixture()
	doc := document.New("main", document.NewFragment(image(u)))

	for i := 0; i < 2; i++ {
		report, err := f.uc.Sweep(context.Background(), doc)
		require.NoError(t, err)
		assert.Zero(t, report.Deleted)
	}
	assert.Equal(t, int32(1), f.backend.calls.Load())
	stored, _ := f.uc.LookupImage(context.Background(), u)
	require.NotNil(t, stored)
	assert.False(t, stored.Flagged)
}

func TestSweep_TextAndImageTogether(t *testing.T) {
	const u = "https://cdn.example.com/explicit.png"
	f := newFixture(u)
	doc := document.New("main", document.NewFragment(
		para("hello"),
		image(u),
		document.NewText(violation),
		para("bye"),
	))

	report, err := f.uc.Sweep(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TextLocations)
	assert.Equal(t, 1, report.ImageLocations)
	doc.View(func(root *document.Node) {
		assert.Equal(t, []string{"hello", "bye"}, texts(root))
	})
}

type classifierFunc func(text string) bool

func (fn classifierFunc) Check(_ context.Context, text string) moderator.Verdict {
	return moderator.Verdict{Flagged: fn(text)}
}

func TestSweep_AnomalyIsNotFatal(t *testing.T) {
	f := newFixture()
	// only the combination is objectionable
	both := classifierFunc(func(text string) bool {
		return strings.Contains(text, "hello") && strings.Contains(text, "bye")
	})
	f.uc.text = both
	f.uc.locator = NewLocator(both, log.DefaultLogger)

	doc := document.New("main", document.NewFragment(document.NewText("hello"), document.NewText("bye")))
	report, err := f.uc.Sweep(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, report.TextFlagged)
	assert.True(t, report.Anomaly)
	assert.Zero(t, report.Deleted)
	assert.Equal(t, 2, doc.Root().Len())
}

func TestListImages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, u := range []string{"u3", "u1", "u2"} {
		_, err := f.repo.InsertIfAbsent(ctx, u, u == "u2")
		require.NoError(t, err)
	}

	page, err := f.uc.ListImages(ctx, pagination.NewRequest("", 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "u1", page.Items[0].URL)
	assert.True(t, page.HasMore)

	page, err = f.uc.ListImages(ctx, pagination.NewRequest(page.NextCursor, 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u3", page.Items[0].URL)
	assert.False(t, page.HasMore)

	_, err = f.uc.ListImages(ctx, pagination.NewRequest("%%%", 2))
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
}
