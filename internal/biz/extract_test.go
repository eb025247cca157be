package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moderation/internal/document"
)

func TestElementText(t *testing.T) {
	el := document.NewElement("blockquote", nil,
		para("one"),
		document.NewText("two"),
		document.NewElement("list", nil, para("three")),
	)
	assert.Equal(t, "one\ntwo"+"three\n\n\n", ElementText(el))
	assert.Equal(t, "\n", ElementText(document.NewElement("paragraph", nil)))
}

func TestDocumentText(t *testing.T) {
	root := document.NewFragment(
		para("  Title"),
		document.NewText("loose"),
		para("end  "),
	)
	assert.Equal(t, "Title\nloose\nend", DocumentText(root))
	assert.Equal(t, "", DocumentText(document.NewFragment()))
	assert.Equal(t, "", DocumentText(document.NewFragment(document.NewElement("paragraph", nil))))
}

func TestImageReferences(t *testing.T) {
	inner := image("https://cdn.example.com/b.png")
	p := document.NewElement("paragraph", nil, document.NewText("see"), inner)
	root := document.NewFragment(
		image("https://cdn.example.com/a.png"),
		image(""),
		p,
		// images are not descended into
		document.NewElement(ImageNodeName, map[string]string{ImageSrcAttr: "https://cdn.example.com/c.png"},
			image("https://cdn.example.com/hidden.png")),
	)

	refs := ImageReferences(root)
	require.Len(t, refs, 3)
	assert.Equal(t, "https://cdn.example.com/a.png", refs[0].URL)
	assert.Equal(t, root, refs[0].Parent)
	assert.Equal(t, 0, refs[0].Index)
	assert.Equal(t, inner, refs[1].Element)
	assert.Equal(t, p, refs[1].Parent)
	assert.Equal(t, 1, refs[1].Index)
	assert.Equal(t, "https://cdn.example.com/c.png", refs[2].URL)
	assert.Equal(t, 3, refs[2].Index)

	assert.Empty(t, ImageReferences(document.NewFragment(para("text only"))))
}

func TestSnapshotMatchesNodeText(t *testing.T) {
	root := document.NewFragment(
		para("hello"),
		document.NewElement("list", nil, para("a"), document.NewText("b")),
		document.NewText("tail"),
	)
	snap := Snapshot(root)
	require.Len(t, snap.Children, 3)
	for i, c := range snap.Children {
		assert.Equal(t, NodeText(root.Child(i)), c.Text)
		assert.Equal(t, root.Child(i), c.Node)
	}
	assert.Equal(t, document.KindText, snap.Children[2].Kind)
}
