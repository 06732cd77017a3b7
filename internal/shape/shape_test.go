package shape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphpager/internal/schema"
)

func issuesShape() *Node {
	issue := &Node{Result: schema.Entity("Issue"), Fields: []*Node{
		{Key: "id", Result: schema.Scalar(schema.ID), Hidden: true},
		{Key: "title", Result: schema.Scalar(schema.String)},
	}}
	return &Node{Key: "issues", Result: schema.ConnectionOf(schema.Entity("Issue")), Item: issue}
}

func TestResolveConnectionWrappers(t *testing.T) {
	conn := issuesShape()

	edges, each, err := conn.Resolve("edges[]")
	require.NoError(t, err)
	require.True(t, each)
	node, each, err := edges.Resolve("node")
	require.NoError(t, err)
	require.False(t, each)
	title, _, err := node.Resolve("title")
	require.NoError(t, err)
	require.Equal(t, schema.String, title.Result.Type)

	pi, _, err := conn.Resolve("pageInfo")
	require.NoError(t, err)
	_, _, err = pi.Resolve("hasNextPage")
	require.NoError(t, err)
	_, _, err = pi.Resolve("endCursor")
	require.NoError(t, err)
}

func TestResolveRejectsUnknownSegments(t *testing.T) {
	conn := issuesShape()
	_, _, err := conn.Resolve("nodes[]")
	require.Error(t, err)
	_, _, err = conn.Resolve("pageInfo[]")
	require.Error(t, err)

	edges, _, err := conn.Resolve("edges[]")
	require.NoError(t, err)
	node, _, err := edges.Resolve("node")
	require.NoError(t, err)
	_, _, err = node.Resolve("body")
	require.Error(t, err)
	title, _, err := node.Resolve("title")
	require.NoError(t, err)
	_, _, err = title.Resolve("length")
	require.Error(t, err)
}

func TestAddReplacesHiddenField(t *testing.T) {
	n := &Node{Result: schema.Entity("Issue")}
	n.Add(&Node{Key: "id", Hidden: true})
	got := n.Add(&Node{Key: "id"})
	require.False(t, got.Hidden)
	require.Len(t, n.Fields, 1)
	again := n.Add(&Node{Key: "id", Hidden: true})
	require.False(t, again.Hidden)
}
