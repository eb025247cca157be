package biz

import (
	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/conf"
	"moderation/internal/document"
)

// ApplyResult counts what one Apply did.
type ApplyResult struct {
	Deleted int
	// Skipped counts planned nodes an editor removed or moved away before the
	// redaction transaction started.
	Skipped int
	// Rebased is set when the document changed after the plan's snapshot and
	// the plan was mapped onto the current child positions.
	Rebased bool
}

// Applicator deletes planned nodes in a single transaction.
type Applicator struct {
	origin string
	log    *log.Helper
}

// NewApplicator creates an Applicator whose transactions carry the configured origin.
func NewApplicator(c *conf.Moderation, logger log.Logger) *Applicator {
	return &Applicator{
		origin: c.Origin,
		log:    log.NewHelper(log.With(logger, "module", "biz/apply")),
	}
}

// Origin is the tag carried by redaction transactions.
func (a *Applicator) Origin() string { return a.origin }

// Apply removes one child at every planned index, highest index first within
// each parent. plan was computed against base, taken at version. When the
// document has moved on since, every index is first rebased to the current
// position of the node it named in base; nodes no longer under their planned
// parent are skipped. An empty plan opens no transaction.
func (a *Applicator) Apply(doc *document.Doc, base *Snap, version uint64, plan LocationMap) ApplyResult {
	var res ApplyResult
	if plan.Len() == 0 {
		return res
	}
	doc.Transact(a.origin, func(tx *document.Tx) {
		current := plan
		if tx.Version() != version && base != nil {
			res.Rebased = true
			current, res.Skipped = rebase(tx.Root(), base, plan)
		}
		for parent, indices := range current {
			for _, index := range indices {
				if err := tx.Delete(parent, index, 1); err != nil {
					a.log.Warnf("skip delete at %d under %s: %v", index, parent.Kind(), err)
					continue
				}
				res.Deleted++
			}
		}
	})
	if res.Skipped > 0 {
		a.log.Infof("document %q: %d planned nodes were already gone", doc.Name(), res.Skipped)
	}
	return res
}

// rebase maps plan from the positions in base to the live tree under root.
// Call it inside Transact.
func rebase(root *document.Node, base *Snap, plan LocationMap) (LocationMap, int) {
	containers := base.containers()
	out := LocationMap{}
	skipped := 0
	for parent, indices := range plan {
		ps := containers[parent]
		live := ps != nil && attached(root, parent)
		for _, i := range indices {
			if !live || i < 0 || i >= len(ps.Children) {
				skipped++
				continue
			}
			at := parent.IndexOf(ps.Children[i].Node)
			if at < 0 {
				skipped++
				continue
			}
			out.add(parent, at)
		}
	}
	out.sortDescending()
	return out, skipped
}

// attached reports whether n is root or one of its descendants.
func attached(root, n *document.Node) bool {
	for ; n != nil; n = n.Parent() {
		if n == root {
			return true
		}
	}
	return false
}
