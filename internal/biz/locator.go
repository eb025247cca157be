package biz

import (
	"context"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	"moderation/internal/document"
)

// Locator narrows a flagged document down to the smallest offending nodes by
// bisecting sibling lists, spending as few classifier calls as it can on
// mostly clean content.
type Locator struct {
	text TextClassifier
	log  *log.Helper
}

// NewLocator creates a Locator.
func NewLocator(text TextClassifier, logger log.Logger) *Locator {
	return &Locator{
		text: text,
		log:  log.NewHelper(log.With(logger, "module", "biz/locator")),
	}
}

// Locate returns the flagged nodes under root. Every classifier call it starts
// has returned by the time it does; a panic in any of them is re-raised here.
func (l *Locator) Locate(ctx context.Context, root *Snap) LocationMap {
	out := l.locate(ctx, root.Children, root.Node, 0)
	if out == nil {
		out = LocationMap{}
	}
	out.sortDescending()
	l.log.Debugf("located %d nodes under %d top-level children", out.Len(), len(root.Children))
	return out
}

// locate handles nodes, the children of parent starting at index start.
func (l *Locator) locate(ctx context.Context, nodes []*Snap, parent *document.Node, start int) LocationMap {
	switch len(nodes) {
	case 0:
		return nil
	case 1:
		n := nodes[0]
		if n.Kind == document.KindText {
			if l.text.Check(ctx, n.Text).Flagged {
				return LocationMap{parent: {start}}
			}
			return nil
		}
		if strings.TrimSpace(n.Text) == "" {
			return nil
		}
		if !l.text.Check(ctx, n.Text).Flagged {
			return nil
		}
		return l.locate(ctx, n.Children, n.Node, 0)
	}

	split := len(nodes) / 2
	first, second := nodes[:split], nodes[split:]

	var firstFlagged, secondFlagged bool
	var g errgroup.Group
	goSafe(&g, func() error {
		firstFlagged = l.text.Check(ctx, joinText(first)).Flagged
		return nil
	})
	goSafe(&g, func() error {
		secondFlagged = l.text.Check(ctx, joinText(second)).Flagged
		return nil
	})
	if err := g.Wait(); err != nil {
		panic(err) // surface on the caller's goroutine
	}

	var a, b LocationMap
	if firstFlagged {
		goSafe(&g, func() error {
			a = l.locate(ctx, first, parent, start)
			return nil
		})
	}
	if secondFlagged {
		goSafe(&g, func() error {
			b = l.locate(ctx, second, parent, start+split)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}

	if a == nil && b == nil {
		return nil
	}
	return Merge(a, b)
}

func joinText(nodes []*Snap) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.Text
	}
	return strings.Join(parts, "\n")
}
