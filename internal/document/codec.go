package document

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Snapshot is the serialized form of a document body used by fixtures and the
// admin API. YAML is a superset of JSON so both decode through Decode.
type Snapshot struct {
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
	Content []NodeSpec `json:"content" yaml:"content"`
}

// NodeSpec is the serialized form of one node. Type is "element" or "text";
// when empty it is inferred from Name.
type NodeSpec struct {
	Type     string            `json:"type,omitempty" yaml:"type,omitempty"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Text     string            `json:"text,omitempty" yaml:"text,omitempty"`
	Children []NodeSpec        `json:"children,omitempty" yaml:"children,omitempty"`
}

// Decode parses a YAML or JSON snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Build materializes detached nodes from specs.
func Build(specs []NodeSpec) ([]*Node, error) {
	out := make([]*Node, 0, len(specs))
	for i, s := range specs {
		n, err := s.build()
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s NodeSpec) build() (*Node, error) {
	typ := s.Type
	if typ == "" {
		if s.Name != "" {
			typ = "element"
		} else {
			typ = "text"
		}
	}
	switch typ {
	case "text":
		if len(s.Children) > 0 {
			return nil, fmt.Errorf("text node cannot have children")
		}
		return NewText(s.Text), nil
	case "element":
		if s.Name == "" {
			return nil, fmt.Errorf("element without name")
		}
		children, err := Build(s.Children)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		return NewElement(s.Name, s.Attrs, children...), nil
	default:
		return nil, fmt.Errorf("unknown node type %q", typ)
	}
}

// Encode serializes the children of root. Call it inside View.
func Encode(root *Node) []NodeSpec {
	out := make([]NodeSpec, 0, root.Len())
	for _, c := range root.children {
		out = append(out, encodeNode(c))
	}
	return out
}

func encodeNode(n *Node) NodeSpec {
	if n.kind == KindText {
		return NodeSpec{Type: "text", Text: n.text}
	}
	s := NodeSpec{Type: "element", Name: n.name, Attrs: n.Attrs()}
	for _, c := range n.children {
		s.Children = append(s.Children, encodeNode(c))
	}
	return s
}

// Register places a loaded document in the registry, replacing the contents of
// an existing one in a single transaction tagged origin.
func (r *Registry) Register(name, origin string, nodes []*Node) (*Doc, error) {
	d := r.Open(name)
	var err error
	d.Transact(origin, func(tx *Tx) {
		err = tx.ReplaceChildren(tx.Root(), nodes...)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
