package tags_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/kvance/estate/internal/tags"
)

func newParser() *tags.Parser {
	return tags.NewParser(zap.NewNop())
}

func TestParse_BasicTag(t *testing.T) {
	nodes := newParser().Parse("<div>Hello</div>", nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, "div", nodes[0].Type)
	assert.Empty(t, nodes[0].Attrs)
	assert.Equal(t, "Hello", nodes[0].Content)
	assert.Nil(t, nodes[0].SubTags)
}

func TestParse_Attributes(t *testing.T) {
	nodes := newParser().Parse(`<dialog id="ama" to="player">Hi there.</dialog>`, nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, "dialog", nodes[0].Type)
	assert.Equal(t, "ama", nodes[0].Attr("id"))
	assert.Equal(t, "player", nodes[0].Attr("to"))
	assert.Equal(t, "Hi there.", nodes[0].Content)
}

func TestParse_MalformedAttributesIgnored(t *testing.T) {
	nodes := newParser().Parse(`<set attr="ama.name" oops=bare 'x'>Ama</set>`, nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, map[string]string{"attr": "ama.name"}, nodes[0].Attrs)
	assert.Equal(t, "Ama", nodes[0].Content)
}

func TestParse_SelfClosing(t *testing.T) {
	nodes := newParser().Parse(`before <leaveNow/> after`, nil)
	require.Len(t, nodes, 3)
	assert.Equal(t, tags.CommentType, nodes[0].Type)
	assert.Equal(t, "before", nodes[0].Content)
	assert.Equal(t, "leaveNow", nodes[1].Type)
	assert.Equal(t, "", nodes[1].Content)
	assert.Nil(t, nodes[1].SubTags)
	assert.Equal(t, "after", nodes[2].Content)
}

func TestParse_TextRunsBecomeComments(t *testing.T) {
	nodes := newParser().Parse("Just thinking out loud.", nil)
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].IsComment())
	assert.Equal(t, "Just thinking out loud.", nodes[0].Content)
}

func TestParse_UnclosedTagAutoClosesAtEOF(t *testing.T) {
	nodes := newParser().Parse("<description>The hallway stretches on", nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, "description", nodes[0].Type)
	assert.Equal(t, "The hallway stretches on", nodes[0].Content)
}

func TestParse_MismatchedCloseRecovery(t *testing.T) {
	var nodes []*tags.Node
	require.NotPanics(t, func() {
		nodes = newParser().Parse("<div><span>Test</div></span>", nil)
	})
	require.NotEmpty(t, nodes)
	assert.Equal(t, "div", nodes[0].Type)
	assert.Contains(t, nodes[0].Content, "Test")
	// The stray close survives as literal text rather than vanishing.
	require.Len(t, nodes, 2)
	assert.True(t, nodes[1].IsComment())
	assert.Equal(t, "</span>", nodes[1].Content)
}

func TestParse_DisallowedTagKeptAsText(t *testing.T) {
	nodes := newParser().Parse("<dialog>hi</dialog><bogus>x</bogus>", []string{"dialog"})
	require.Len(t, nodes, 2)
	assert.Equal(t, "dialog", nodes[0].Type)
	assert.True(t, nodes[1].IsComment())
	assert.Equal(t, "<bogus>x</bogus>", nodes[1].Content)
}

func TestParse_TagNamesAreCaseSensitive(t *testing.T) {
	nodes := newParser().Parse("<Dialog>Hello.</Dialog>", []string{"dialog"})
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].IsComment())
	assert.Equal(t, "<Dialog>Hello.</Dialog>", nodes[0].Content)
}

func TestParse_NestedContentKeepsOriginalMarkup(t *testing.T) {
	nodes := newParser().Parse("<a>x<b>y</b>z</a>", nil)
	require.Len(t, nodes, 1)
	a := nodes[0]
	assert.Equal(t, "x<b>y</b>z", a.Content)
	require.Len(t, a.SubTags, 3)
	assert.Equal(t, tags.CommentType, a.SubTags[0].Type)
	assert.Equal(t, "x", a.SubTags[0].Content)
	assert.Equal(t, "b", a.SubTags[1].Type)
	assert.Equal(t, "y", a.SubTags[1].Content)
	assert.Equal(t, "z", a.SubTags[2].Content)
}

func TestParse_FenceStripped(t *testing.T) {
	for _, input := range []string{
		"```\n<div>Hello</div>\n```",
		"```xml\n<div>Hello</div>\n```",
		"  ```\n<div>Hello</div>\n```  ",
	} {
		nodes := newParser().Parse(input, nil)
		require.Len(t, nodes, 1, "input %q", input)
		assert.Equal(t, "div", nodes[0].Type)
		assert.Equal(t, "Hello", nodes[0].Content)
	}
}

func TestParse_ContentTrimmed(t *testing.T) {
	nodes := newParser().Parse("<dialog>\n  spaced out  \n</dialog>", nil)
	require.Len(t, nodes, 1)
	assert.Equal(t, "spaced out", nodes[0].Content)
}

func TestSerialize_RebuildsMarkup(t *testing.T) {
	p := newParser()
	in := `<dialog id="ama">Hello</dialog>`
	assert.Equal(t, in, tags.Serialize(p.Parse(in, nil)))
}

var tagNameGen = rapid.StringMatching(`[a-z][a-z0-9]{0,7}`)
var textGen = rapid.StringMatching(`[A-Za-z0-9 .,!?']{1,40}`)

// TestProperty_RoundTrip checks that parsing well-formed markup and
// serializing it back reproduces an equivalent structure.
func TestProperty_RoundTrip(t *testing.T) {
	p := newParser()
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 5).Draw(rt, "count")
		original := make([]*tags.Node, 0, count)
		for i := 0; i < count; i++ {
			node := &tags.Node{
				Type:    tagNameGen.Draw(rt, "name"),
				Attrs:   map[string]string{},
				Content: textGen.Draw(rt, "content"),
			}
			if node.Type == tags.CommentType {
				// "comment" is a reserved sentinel, not a real tag name.
				node.Type = "note"
			}
			if rapid.Bool().Draw(rt, "hasAttr") {
				node.Attrs[tagNameGen.Draw(rt, "attrKey")] = textGen.Draw(rt, "attrVal")
			}
			original = append(original, node)
		}

		reparsed := p.Parse(tags.Serialize(original), nil)
		if len(reparsed) != len(original) {
			rt.Fatalf("expected %d nodes, got %d", len(original), len(reparsed))
		}
		for i, want := range original {
			got := reparsed[i]
			if got.Type != want.Type {
				rt.Fatalf("node %d: type %q != %q", i, got.Type, want.Type)
			}
			if got.Content != strings.TrimSpace(want.Content) {
				rt.Fatalf("node %d: content %q != %q", i, got.Content, want.Content)
			}
			for k, v := range want.Attrs {
				if got.Attrs[k] != v {
					rt.Fatalf("node %d: attr %q %q != %q", i, k, got.Attrs[k], v)
				}
			}
		}
	})
}
