package biz

import (
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moderation/internal/document"
)

func TestMerge(t *testing.T) {
	p := document.NewElement("paragraph", nil)
	q := document.NewElement("paragraph", nil)
	a := LocationMap{p: {4, 1}}
	b := LocationMap{p: {3}, q: {0}}

	got := Merge(a, b)
	assert.Equal(t, []int{4, 3, 1}, got[p])
	assert.Equal(t, []int{0}, got[q])
	assert.Equal(t, got, Merge(b, a))

	// arguments untouched
	assert.Equal(t, []int{4, 1}, a[p])
	assert.Equal(t, []int{3}, b[p])

	assert.Empty(t, Merge(nil, nil))
}

func TestMerge_DuplicatesKept(t *testing.T) {
	p := document.NewElement("paragraph", nil)
	got := Merge(LocationMap{p: {2}}, LocationMap{p: {2}})
	assert.Equal(t, []int{2, 2}, got[p])
	assert.Equal(t, 2, got.Len())
}

func TestImageLocations(t *testing.T) {
	root := document.NewFragment(image("u1"), para("x"), image("u2"), image("u1"))
	refs := ImageReferences(root)
	plan := ImageLocations(refs, func(url string) bool { return url == "u1" })
	assert.Equal(t, []int{3, 0}, plan[root])
}

func sixChildren() *document.Doc {
	var nodes []*document.Node
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		nodes = append(nodes, para(s))
	}
	return document.New("main", document.NewFragment(nodes...))
}

func snapOf(doc *document.Doc) (*Snap, uint64) {
	var (
		snap    *Snap
		version uint64
	)
	doc.ViewAt(func(root *document.Node, v uint64) {
		snap, version = Snapshot(root), v
	})
	return snap, version
}

func TestApply_DescendingOrder(t *testing.T) {
	doc := sixChildren()
	snap, version := snapOf(doc)
	var changes []document.Change
	doc.Observe(func(c document.Change) { changes = append(changes, c) })

	a := NewApplicator(testConf(), log.DefaultLogger)
	res := a.Apply(doc, snap, version, LocationMap{doc.Root(): {5, 3, 1}})
	assert.Equal(t, ApplyResult{Deleted: 3}, res)

	doc.View(func(root *document.Node) {
		assert.Equal(t, []string{"a", "c", "e"}, texts(root))
	})
	require.Len(t, changes, 1)
	assert.Equal(t, "moderation", changes[0].Origin)
	assert.Equal(t, 3, changes[0].Ops)
}

func TestApply_EmptyPlanOpensNoTransaction(t *testing.T) {
	doc := sixChildren()
	snap, version := snapOf(doc)
	calls := 0
	doc.Observe(func(document.Change) { calls++ })

	res := NewApplicator(testConf(), log.DefaultLogger).Apply(doc, snap, version, LocationMap{})
	assert.Zero(t, res.Deleted)
	assert.Zero(t, calls)
	assert.Equal(t, uint64(0), doc.Version())
}

func TestApply_DuplicateIndexDeletesTwice(t *testing.T) {
	doc := sixChildren()
	snap, version := snapOf(doc)
	plan := Merge(LocationMap{doc.Root(): {2}}, LocationMap{doc.Root(): {2}})

	res := NewApplicator(testConf(), log.DefaultLogger).Apply(doc, snap, version, plan)
	assert.Equal(t, 2, res.Deleted)
	doc.View(func(root *document.Node) {
		// "c" and the sibling that shifted into its place
		assert.Equal(t, []string{"a", "b", "e", "f"}, texts(root))
	})
}

func TestApply_OutOfRangeSkipped(t *testing.T) {
	doc := sixChildren()
	snap, version := snapOf(doc)
	res := NewApplicator(testConf(), log.DefaultLogger).Apply(doc, snap, version, LocationMap{doc.Root(): {9, 0}})
	assert.Equal(t, 1, res.Deleted)
	doc.View(func(root *document.Node) {
		assert.Equal(t, []string{"b", "c", "d", "e", "f"}, texts(root))
	})
}

func TestApply_RebasedAfterEdits(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(tx *document.Tx) error
		plan    []int
		want    []string
		deleted int
		skipped int
	}{
		{
			name:    "insert before the flagged node",
			edit:    func(tx *document.Tx) error { return tx.Insert(tx.Root(), 0, para("new")) },
			plan:    []int{3, 1},
			want:    []string{"new", "a", "c", "e", "f"},
			deleted: 2,
		},
		{
			name:    "append after the flagged node",
			edit:    func(tx *document.Tx) error { return tx.Append(tx.Root(), para("new")) },
			plan:    []int{1},
			want:    []string{"a", "c", "d", "e", "f", "new"},
			deleted: 1,
		},
		{
			name:    "flagged node already deleted",
			edit:    func(tx *document.Tx) error { return tx.Delete(tx.Root(), 1, 1) },
			plan:    []int{4, 1},
			want:    []string{"a", "c", "d", "f"},
			deleted: 1,
			skipped: 1,
		},
		{
			name: "duplicate index follows the node",
			edit: func(tx *document.Tx) error { return tx.Insert(tx.Root(), 0, para("new")) },
			plan: []int{2, 2},
			// "c" and the sibling that shifted into its place
			want:    []string{"new", "a", "b", "e", "f"},
			deleted: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := sixChildren()
			snap, version := snapOf(doc)
			doc.Transact("editor", func(tx *document.Tx) {
				require.NoError(t, tt.edit(tx))
			})

			res := NewApplicator(testConf(), log.DefaultLogger).Apply(doc, snap, version, LocationMap{doc.Root(): tt.plan})
			assert.True(t, res.Rebased)
			assert.Equal(t, tt.deleted, res.Deleted)
			assert.Equal(t, tt.skipped, res.Skipped)
			doc.View(func(root *document.Node) {
				assert.Equal(t, tt.want, texts(root))
			})
		})
	}
}

func TestApply_RebaseSkipsDetachedParent(t *testing.T) {
	p := document.NewElement("paragraph", nil, document.NewText("x"), document.NewText(violation))
	doc := document.New("main", document.NewFragment(para("a"), p))
	snap, version := snapOf(doc)
	doc.Transact("editor", func(tx *document.Tx) {
		require.NoError(t, tx.Delete(tx.Root(), 1, 1))
	})

	res := NewApplicator(testConf(), log.DefaultLogger).Apply(doc, snap, version, LocationMap{p: {1}})
	assert.Equal(t, ApplyResult{Skipped: 1, Rebased: true}, res)
	assert.Equal(t, 2, p.Len())
}
