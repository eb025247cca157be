package biz

import (
	"strings"

	"moderation/internal/document"
)

// ImageNodeName is the element name that marks an embedded image.
const ImageNodeName = "image"

// ImageSrcAttr holds the image URL.
const ImageSrcAttr = "src"

// ImageReference locates one image element in the tree.
type ImageReference struct {
	URL     string
	Element *document.Node
	Parent  *document.Node
	Index   int
}

// ElementText concatenates the text of every descendant depth first. Each
// element, el included, ends with a line break.
func ElementText(el *document.Node) string {
	var sb strings.Builder
	writeElementText(&sb, el)
	return sb.String()
}

func writeElementText(sb *strings.Builder, el *document.Node) {
	for i := 0; i < el.Len(); i++ {
		c := el.Child(i)
		switch c.Kind() {
		case document.KindText:
			sb.WriteString(c.TextContent())
		case document.KindElement:
			writeElementText(sb, c)
		}
	}
	sb.WriteByte('\n')
}

// NodeText is ElementText for elements and the characters of text leaves.
func NodeText(n *document.Node) string {
	if n.Kind() == document.KindText {
		return n.TextContent()
	}
	return ElementText(n)
}

// DocumentText returns the plain text of a fragment: every top-level element
// and text leaf on its own line, surrounding whitespace trimmed.
func DocumentText(fragment *document.Node) string {
	var sb strings.Builder
	for i := 0; i < fragment.Len(); i++ {
		c := fragment.Child(i)
		switch c.Kind() {
		case document.KindElement:
			writeElementText(&sb, c)
		case document.KindText:
			sb.WriteString(c.TextContent())
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

// ImageReferences lists image elements with a non-empty src under container.
// Image elements are not descended into.
func ImageReferences(container *document.Node) []ImageReference {
	var refs []ImageReference
	collectImages(container, &refs)
	return refs
}

func collectImages(container *document.Node, refs *[]ImageReference) {
	for i := 0; i < container.Len(); i++ {
		c := container.Child(i)
		if c.Kind() != document.KindElement {
			continue
		}
		if c.Name() == ImageNodeName {
			if src := c.Attr(ImageSrcAttr); src != "" {
				*refs = append(*refs, ImageReference{URL: src, Element: c, Parent: container, Index: i})
			}
			continue
		}
		collectImages(c, refs)
	}
}

// Snap is a read-only copy of a subtree taken under the document read lock,
// so classification can proceed while editors keep writing.
type Snap struct {
	Node     *document.Node
	Kind     document.Kind
	Text     string // NodeText at snapshot time
	Children []*Snap
}

// containers indexes every container in the snapshot by its node.
func (s *Snap) containers() map[*document.Node]*Snap {
	out := map[*document.Node]*Snap{}
	var walk func(*Snap)
	walk = func(n *Snap) {
		if n.Kind == document.KindText {
			return
		}
		out[n.Node] = n
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s)
	return out
}

// Snapshot copies the structure and text of n.
func Snapshot(n *document.Node) *Snap {
	s := &Snap{Node: n, Kind: n.Kind()}
	if n.Kind() == document.KindText {
		s.Text = n.TextContent()
		return s
	}
	var sb strings.Builder
	s.Children = make([]*Snap, 0, n.Len())
	for i := 0; i < n.Len(); i++ {
		c := Snapshot(n.Child(i))
		s.Children = append(s.Children, c)
		sb.WriteString(c.Text)
	}
	sb.WriteByte('\n')
	s.Text = sb.String()
	return s
}
