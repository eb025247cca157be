package document

import (
	"sort"
	"sync"
)

// Change is delivered to observers after every committed transaction that
// modified the tree.
type Change struct {
	Document string
	Origin   string
	Ops      int
}

// ChangeFunc observes committed changes.
type ChangeFunc func(Change)

// Doc is a named shared document. Reads go through View, writes through
// Transact; observers are notified outside the lock once a transaction commits.
type Doc struct {
	name string

	mu      sync.RWMutex
	root    *Node
	version uint64

	obsMu     sync.Mutex
	observers map[int]ChangeFunc
	nextObs   int
}

// New creates a document around root. A nil root starts an empty fragment.
func New(name string, root *Node) *Doc {
	if root == nil {
		root = NewFragment()
	}
	return &Doc{
		name:      name,
		root:      root,
		observers: make(map[int]ChangeFunc),
	}
}

func (d *Doc) Name() string { return d.name }

// Root returns the root fragment handle. Its contents may only be read inside View.
func (d *Doc) Root() *Node { return d.root }

// View runs fn with shared read access to the tree.
func (d *Doc) View(fn func(root *Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Transact runs fn with exclusive write access. All operations performed by fn
// commit as one change stamped with origin.
func (d *Doc) Transact(origin string, fn func(tx *Tx)) {
	tx := &Tx{root: d.root}
	func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		tx.version = d.version
		defer func() {
			if tx.ops > 0 {
				d.version++
			}
		}()
		fn(tx)
	}()
	if tx.ops > 0 {
		d.notify(Change{Document: d.name, Origin: origin, Ops: tx.ops})
	}
}

// Version counts committed transactions that changed the tree.
func (d *Doc) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// ViewAt is View that also reports the version the tree was read at.
func (d *Doc) ViewAt(fn func(root *Node, version uint64)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root, d.version)
}

// Observe registers fn for committed changes and returns a function that removes it.
func (d *Doc) Observe(fn ChangeFunc) (cancel func()) {
	d.obsMu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.obsMu.Unlock()
	return func() {
		d.obsMu.Lock()
		delete(d.observers, id)
		d.obsMu.Unlock()
	}
}

func (d *Doc) notify(c Change) {
	d.obsMu.Lock()
	ids := make([]int, 0, len(d.observers))
	for id := range d.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]ChangeFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.observers[id])
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Tx is a write transaction. It is only valid inside the Transact callback.
type Tx struct {
	root    *Node
	ops     int
	version uint64
}

// Version is the document version the transaction started from.
func (tx *Tx) Version() uint64 { return tx.version }

// Root returns the document root.
func (tx *Tx) Root() *Node { return tx.root }

// Ops returns the number of successful operations so far.
func (tx *Tx) Ops() int { return tx.ops }

// Delete removes length children of parent starting at index.
func (tx *Tx) Delete(parent *Node, index, length int) error {
	if err := parent.delete(index, length); err != nil {
		return err
	}
	tx.ops++
	return nil
}

// Insert places detached nodes into parent at index.
func (tx *Tx) Insert(parent *Node, index int, nodes ...*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	if err := parent.insert(index, nodes); err != nil {
		return err
	}
	tx.ops++
	return nil
}

// Append adds detached nodes to the end of parent.
func (tx *Tx) Append(parent *Node, nodes ...*Node) error {
	return tx.Insert(parent, parent.Len(), nodes...)
}

// SetText replaces the characters of a text leaf.
func (tx *Tx) SetText(n *Node, text string) error {
	if n.kind != KindText {
		return ErrNotContainer
	}
	n.text = text
	tx.ops++
	return nil
}

// SetAttr sets an element attribute.
func (tx *Tx) SetAttr(n *Node, key, value string) {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[key] = value
	tx.ops++
}

// ReplaceChildren swaps the whole child list of parent for nodes.
func (tx *Tx) ReplaceChildren(parent *Node, nodes ...*Node) error {
	for _, c := range nodes {
		if c.parent != nil {
			return ErrAttached
		}
	}
	if err := parent.delete(0, parent.Len()); err != nil {
		return err
	}
	if err := parent.insert(0, nodes); err != nil {
		return err
	}
	tx.ops++
	return nil
}

// Registry holds the live documents of the process by name.
type Registry struct {
	mu        sync.RWMutex
	docs      map[string]*Doc
	observers []ChangeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]*Doc)}
}

// Get returns the named document if it is loaded.
func (r *Registry) Get(name string) (*Doc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[name]
	return d, ok
}

// Open returns the named document, creating an empty one if needed.
func (r *Registry) Open(name string) *Doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[name]; ok {
		return d
	}
	d := New(name, nil)
	d.Observe(r.fanout)
	r.docs[name] = d
	return d
}

// Names lists loaded documents in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.docs))
	for name := range r.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Observe registers fn for changes committed on any document of the registry.
func (r *Registry) Observe(fn ChangeFunc) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

func (r *Registry) fanout(c Change) {
	r.mu.RLock()
	fns := make([]ChangeFunc, len(r.observers))
	copy(fns, r.observers)
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}
