package document

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraph(text string) *Node {
	return NewElement("paragraph", nil, NewText(text))
}

func texts(root *Node) []string {
	var out []string
	for _, c := range root.Children() {
		if c.Kind() == KindText {
			out = append(out, c.TextContent())
			continue
		}
		if c.Len() > 0 {
			out = append(out, c.Child(0).TextContent())
		}
	}
	return out
}

func TestTransact_DeleteDescending(t *testing.T) {
	root := NewFragment()
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		_ = root.insert(root.Len(), []*Node{paragraph(s)})
	}
	d := New("main", root)

	var changes []Change
	d.Observe(func(c Change) { changes = append(changes, c) })

	d.Transact("moderation", func(tx *Tx) {
		for _, i := range []int{5, 3, 1} {
			require.NoError(t, tx.Delete(tx.Root(), i, 1))
		}
	})

	d.View(func(root *Node) {
		assert.Equal(t, []string{"a", "c", "e"}, texts(root))
	})
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Document: "main", Origin: "moderation", Ops: 3}, changes[0])
}

func TestTransact_OutOfRange(t *testing.T) {
	d := New("main", NewFragment(paragraph("only")))
	var err error
	d.Transact("moderation", func(tx *Tx) {
		err = tx.Delete(tx.Root(), 4, 1)
	})
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	d.View(func(root *Node) {
		assert.Equal(t, 1, root.Len())
	})
}

func TestTransact_NoOpsNoNotification(t *testing.T) {
	d := New("main", nil)
	called := false
	d.Observe(func(Change) { called = true })
	d.Transact("api", func(tx *Tx) {})
	assert.False(t, called)
}

func TestObserve_Cancel(t *testing.T) {
	d := New("main", nil)
	n := 0
	cancel := d.Observe(func(Change) { n++ })
	d.Transact("api", func(tx *Tx) { _ = tx.Append(tx.Root(), NewText("x")) })
	cancel()
	d.Transact("api", func(tx *Tx) { _ = tx.Append(tx.Root(), NewText("y")) })
	assert.Equal(t, 1, n)
}

func TestInsert_AttachedNodeRejected(t *testing.T) {
	leaf := NewText("x")
	d := New("main", NewFragment(NewElement("paragraph", nil, leaf)))
	var err error
	d.Transact("api", func(tx *Tx) {
		err = tx.Append(tx.Root(), leaf)
	})
	assert.ErrorIs(t, err, ErrAttached)
}

func TestTextLeafIsNotContainer(t *testing.T) {
	leaf := NewText("x")
	d := New("main", NewFragment(leaf))
	var err error
	d.Transact("api", func(tx *Tx) {
		err = tx.Delete(leaf, 0, 1)
	})
	assert.ErrorIs(t, err, ErrNotContainer)
	assert.False(t, leaf.IsContainer())
}

func TestRegistry_FanOut(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	var got []Change
	r.Observe(func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	_, err := r.Register("main", "api", []*Node{paragraph("hello")})
	require.NoError(t, err)
	_, err = r.Register("notes", "editor", []*Node{paragraph("x")})
	require.NoError(t, err)

	assert.Equal(t, []string{"main", "notes"}, r.Names())
	require.Len(t, got, 2)
	assert.Equal(t, "main", got[0].Document)
	assert.Equal(t, "editor", got[1].Origin)

	d, ok := r.Get("main")
	require.True(t, ok)
	d.View(func(root *Node) {
		assert.Equal(t, []string{"hello"}, texts(root))
	})

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestConcurrentEditsAndReads(t *testing.T) {
	d := New("main", nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Transact("editor", func(tx *Tx) { _ = tx.Append(tx.Root(), paragraph("p")) })
		}()
		go func() {
			defer wg.Done()
			d.View(func(root *Node) { _ = root.Len() })
		}()
	}
	wg.Wait()
	d.View(func(root *Node) { assert.Equal(t, 8, root.Len()) })
}

func TestVersion(t *testing.T) {
	d := New("main", NewFragment(paragraph("a")))
	assert.Equal(t, uint64(0), d.Version())

	d.Transact("api", func(tx *Tx) {
		assert.Equal(t, uint64(0), tx.Version())
		require.NoError(t, tx.Append(tx.Root(), paragraph("b")))
	})
	assert.Equal(t, uint64(1), d.Version())

	// a transaction without operations leaves the version alone
	d.Transact("api", func(tx *Tx) {})
	assert.Equal(t, uint64(1), d.Version())

	var seen uint64
	var got []string
	d.ViewAt(func(root *Node, version uint64) {
		seen = version
		got = texts(root)
	})
	assert.Equal(t, uint64(1), seen)
	assert.Equal(t, []string{"a", "b"}, got)
}
