package document

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a position does not exist in the parent.
	ErrIndexOutOfRange = errors.New("document: index out of range")
	// ErrNotContainer is returned when children are addressed on a text leaf.
	ErrNotContainer = errors.New("document: node cannot hold children")
	// ErrAttached is returned when inserting a node that already has a parent.
	ErrAttached = errors.New("document: node already attached")
)

// Kind is the variant of a Node.
type Kind uint8

const (
	KindFragment Kind = iota
	KindElement
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "fragment"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is a vertex of the document tree: a fragment (root container), a named
// element with attributes and ordered children, or a text leaf.
//
// Node identity is pointer identity. Accessors must be called while holding the
// owning Doc's read lock (Doc.View) or inside a transaction.
type Node struct {
	kind     Kind
	name     string
	attrs    map[string]string
	text     string
	children []*Node
	parent   *Node
}

// NewFragment creates a root container.
func NewFragment(children ...*Node) *Node {
	n := &Node{kind: KindFragment}
	n.adopt(children)
	return n
}

// NewElement creates a named element. attrs is copied.
func NewElement(name string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{kind: KindElement, name: name}
	if len(attrs) > 0 {
		n.attrs = make(map[string]string, len(attrs))
		for k, v := range attrs {
			n.attrs[k] = v
		}
	}
	n.adopt(children)
	return n
}

// NewText creates a text leaf.
func NewText(text string) *Node {
	return &Node{kind: KindText, text: text}
}

func (n *Node) adopt(children []*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.parent = n
		n.children = append(n.children, c)
	}
}

func (n *Node) Kind() Kind { return n.kind }

// Name returns the element name, or "" for fragments and text leaves.
func (n *Node) Name() string { return n.name }

// Attr returns the attribute value, or "" when unset.
func (n *Node) Attr(key string) string {
	if n.attrs == nil {
		return ""
	}
	return n.attrs[key]
}

// Attrs returns a copy of the element attributes.
func (n *Node) Attrs() map[string]string {
	if len(n.attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// IsContainer reports whether the node can hold children.
func (n *Node) IsContainer() bool { return n.kind != KindText }

// HasChildren reports whether the node currently holds at least one child.
func (n *Node) HasChildren() bool { return len(n.children) > 0 }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Child returns the child at index i, or nil.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// IndexOf returns the position of c among the children of n, or -1.
func (n *Node) IndexOf(c *Node) int {
	if c == nil || c.parent != n {
		return -1
	}
	for i, child := range n.children {
		if child == c {
			return i
		}
	}
	return -1
}

// TextContent returns the characters of a text leaf, "" for containers.
func (n *Node) TextContent() string {
	if n.kind != KindText {
		return ""
	}
	return n.text
}

// Parent returns the containing node, nil for detached nodes and roots.
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) insert(index int, nodes []*Node) error {
	if !n.IsContainer() {
		return ErrNotContainer
	}
	if index < 0 || index > len(n.children) {
		return fmt.Errorf("%w: insert at %d of %d", ErrIndexOutOfRange, index, len(n.children))
	}
	for _, c := range nodes {
		if c.parent != nil {
			return ErrAttached
		}
	}
	merged := make([]*Node, 0, len(n.children)+len(nodes))
	merged = append(merged, n.children[:index]...)
	merged = append(merged, nodes...)
	merged = append(merged, n.children[index:]...)
	for _, c := range nodes {
		c.parent = n
	}
	n.children = merged
	return nil
}

func (n *Node) delete(index, length int) error {
	if !n.IsContainer() {
		return ErrNotContainer
	}
	if length <= 0 {
		return nil
	}
	if index < 0 || index+length > len(n.children) {
		return fmt.Errorf("%w: delete [%d,%d) of %d", ErrIndexOutOfRange, index, index+length, len(n.children))
	}
	for _, c := range n.children[index : index+length] {
		c.parent = nil
	}
	n.children = append(n.children[:index], n.children[index+length:]...)
	return nil
}
