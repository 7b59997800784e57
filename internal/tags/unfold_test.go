package tags_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvance/estate/internal/tags"
)

func TestUnfold_FlattensNestedTags(t *testing.T) {
	p := newParser()
	nodes := tags.Unfold(p.Parse("<a>x<b>y</b>z</a>", nil), tags.Options{})
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].Type)
	assert.Equal(t, "x", nodes[0].Content)
	assert.Nil(t, nodes[0].SubTags)
	assert.Equal(t, "b", nodes[1].Type)
	assert.Equal(t, "y", nodes[1].Content)
}

func TestUnfold_PreservesContainers(t *testing.T) {
	p := newParser()
	nodes := tags.Unfold(p.Parse("<a>x<b>y</b>z</a>", nil), tags.Options{
		IgnoreContainers: []string{"a"},
	})
	require.Len(t, nodes, 1)
	assert.Equal(t, "a", nodes[0].Type)
	assert.Contains(t, nodes[0].Content, "<b>y</b>")
}

func TestUnfold_FlattensRecursively(t *testing.T) {
	p := newParser()
	nodes := tags.Unfold(p.Parse("<a>one<b>two<c>three</c></b></a>", nil), tags.Options{})
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{nodes[0].Type, nodes[1].Type, nodes[2].Type})
	assert.Equal(t, "one", nodes[0].Content)
	assert.Equal(t, "two", nodes[1].Content)
	assert.Equal(t, "three", nodes[2].Content)
}

func TestUnfold_TrimEmptyDropsEmptyTags(t *testing.T) {
	p := newParser()
	opts := tags.Options{TrimEmpty: []string{"dialog"}}

	nodes := tags.Unfold(p.Parse("<dialog></dialog>", nil), opts)
	assert.Empty(t, nodes)

	nodes = tags.Unfold(p.Parse("<dialog>something</dialog>", nil), opts)
	require.Len(t, nodes, 1)
	assert.Equal(t, "something", nodes[0].Content)
}

func TestUnfold_TrimEmptyKeepsOtherEmptyTags(t *testing.T) {
	p := newParser()
	nodes := tags.Unfold(p.Parse("<leaveNow/>", nil), tags.Options{TrimEmpty: []string{"dialog"}})
	require.Len(t, nodes, 1)
	assert.Equal(t, "leaveNow", nodes[0].Type)
}

func TestUnfold_PreservesDocumentOrder(t *testing.T) {
	p := newParser()
	in := "<a>lead<b>inner</b></a><c>tail</c>"
	nodes := tags.Unfold(p.Parse(in, nil), tags.Options{})
	require.Len(t, nodes, 3)
	assert.Equal(t, "a", nodes[0].Type)
	assert.Equal(t, "b", nodes[1].Type)
	assert.Equal(t, "c", nodes[2].Type)
}

func TestUnfoldResponse_ReparsesWrappedPlanningBlock(t *testing.T) {
	p := newParser()
	in := "<context><dialog id=\"ama\">Hello.</dialog><description>A pause.</description></context>"
	nodes := p.UnfoldResponse(in, nil, "context", tags.Options{
		IgnoreContainers: []string{"context"},
	})
	require.Len(t, nodes, 2)
	assert.Equal(t, "dialog", nodes[0].Type)
	assert.Equal(t, "description", nodes[1].Type)
}

func TestUnfoldResponse_KeepsPlanningPreamble(t *testing.T) {
	p := newParser()
	in := "<context>thinking...</context><dialog id=\"ama\">Hello.</dialog>"
	nodes := p.UnfoldResponse(in, nil, "context", tags.Options{
		IgnoreContainers: []string{"context"},
	})
	require.Len(t, nodes, 2)
	assert.Equal(t, "context", nodes[0].Type)
	assert.Equal(t, "dialog", nodes[1].Type)
}
