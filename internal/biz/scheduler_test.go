package biz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moderation/internal/document"
	"moderation/internal/pkg/moderator"
)

func TestRunState(t *testing.T) {
	s := NewRunState()
	dirty, running := s.Snapshot()
	assert.True(t, dirty)
	assert.False(t, running)

	require.True(t, s.TryBegin())
	assert.False(t, s.TryBegin(), "second begin while running")
	s.End()
	assert.False(t, s.TryBegin(), "clean after end")

	s.MarkDirty()
	require.True(t, s.TryBegin())
	s.MarkDirty() // edit during the sweep
	s.End()
	dirty, running = s.Snapshot()
	assert.True(t, dirty)
	assert.False(t, running)
}

func newScheduler(t *testing.T, f *fixture, nodes ...*document.Node) (*Scheduler, *document.Doc) {
	t.Helper()
	docs := document.NewRegistry()
	doc, err := docs.Register("main", "load", nodes)
	require.NoError(t, err)
	return NewScheduler(testConf(), f.uc, docs, log.DefaultLogger), doc
}

func TestScheduler_Idempotent(t *testing.T) {
	f := newFixture()
	s, _ := newScheduler(t, f, para("This is fine."))

	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Equal(t, 1, f.text.Calls())
}

func TestScheduler_EditsMarkDirty(t *testing.T) {
	f := newFixture()
	s, doc := newScheduler(t, f, para("hello"))
	ctx := context.Background()

	s.Tick(ctx)
	doc.Transact("editor", func(tx *document.Tx) {
		require.NoError(t, tx.Append(tx.Root(), document.NewText(violation)))
	})
	dirty, _ := s.State()
	assert.True(t, dirty)

	s.Tick(ctx)
	doc.View(func(root *document.Node) {
		assert.Equal(t, []string{"hello"}, texts(root))
	})

	// the redaction itself does not re-trigger a sweep
	dirty, _ = s.State()
	assert.False(t, dirty)
	calls := f.text.Calls()
	s.Tick(ctx)
	assert.Equal(t, calls, f.text.Calls())
}

func TestScheduler_OtherDocumentsIgnored(t *testing.T) {
	f := newFixture()
	docs := document.NewRegistry()
	_, err := docs.Register("main", "load", []*document.Node{para("x")})
	require.NoError(t, err)
	s := NewScheduler(testConf(), f.uc, docs, log.DefaultLogger)
	s.Tick(context.Background())

	other := docs.Open("scratch")
	other.Transact("editor", func(tx *document.Tx) {
		require.NoError(t, tx.Append(tx.Root(), para("y")))
	})
	dirty, _ := s.State()
	assert.False(t, dirty)
}

func TestScheduler_SingleFlight(t *testing.T) {
	f := newFixture()
	f.text.hold = make(chan struct{})
	s, _ := newScheduler(t, f, para("held open"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Tick(context.Background())
	}()
	require.Eventually(t, func() bool {
		_, running := s.State()
		return running
	}, time.Second, 5*time.Millisecond)

	s.state.MarkDirty()
	s.Tick(context.Background())
	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(f.text.hold)
	wg.Wait()
	assert.Equal(t, 1, f.text.Calls())
}

func TestScheduler_MissingDocument(t *testing.T) {
	f := newFixture()
	s := NewScheduler(testConf(), f.uc, document.NewRegistry(), log.DefaultLogger)

	s.Tick(context.Background())
	dirty, running := s.State()
	assert.True(t, dirty)
	assert.False(t, running)
	assert.Zero(t, f.text.Calls())

	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

type panicText struct{}

func (panicText) Check(context.Context, string) moderator.Verdict { panic("boom") }

func TestScheduler_PanicResetsState(t *testing.T) {
	f := newFixture()
	f.uc.text = panicText{}
	s, _ := newScheduler(t, f, para("anything"))

	assert.NotPanics(t, func() { s.Tick(context.Background()) })
	dirty, running := s.State()
	assert.False(t, running)
	assert.False(t, dirty)

	_, err := s.RunNow(context.Background())
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	f := newFixture()
	s, doc := newScheduler(t, f, document.NewText("hello"), document.NewText(violation))
	s.Tick(context.Background())
	require.Equal(t, 1, doc.Root().Len())

	report, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "clean", report.Outcome())
	assert.Equal(t, "main", s.Document())
	assert.Equal(t, 10*time.Second, s.Interval())
}

// typingText inserts a paragraph at the top of doc on every call, like a
// collaborator typing while classification is in flight.
type typingText struct {
	keywordText
	doc *document.Doc
}

func (k *typingText) Check(ctx context.Context, text string) moderator.Verdict {
	k.doc.Transact("editor", func(tx *document.Tx) {
		_ = tx.Insert(tx.Root(), 0, para("typing"))
	})
	return k.keywordText.Check(ctx, text)
}

func TestScheduler_RedactsWhileEdited(t *testing.T) {
	f := newFixture()
	docs := document.NewRegistry()
	doc, err := docs.Register("main", "load", []*document.Node{para("hello"), document.NewText(violation), para("bye")})
	require.NoError(t, err)

	text := &typingText{doc: doc}
	uc := NewModerationUsecase(text, f.uc.images, NewLocator(text, log.DefaultLogger),
		NewApplicator(testConf(), log.DefaultLogger), f.repo, log.DefaultLogger)
	s := NewScheduler(testConf(), uc, docs, log.DefaultLogger)

	s.Tick(context.Background())

	report := uc.LastReport()
	require.NotNil(t, report)
	assert.True(t, report.TextFlagged)
	assert.True(t, report.Rebased)
	assert.Equal(t, 1, report.Deleted)
	assert.Zero(t, report.Skipped)

	doc.View(func(root *document.Node) {
		got := texts(root)
		assert.NotContains(t, got, violation)
		require.Len(t, got, text.Calls()+2)
		assert.Equal(t, []string{"hello", "bye"}, got[len(got)-2:])
	})

	// the edits made during the sweep are swept on the next tick
	dirty, _ := s.State()
	assert.True(t, dirty)
}
