// Package shape holds the shape descriptor: the tree of selected fields and
// their declared result kinds that mirrors a compiled document. The
// deserializer materializes responses against it and the expression compiler
// resolves selector paths against it.
package shape

import (
	"fmt"
	"strings"

	"github.com/hanpama/graphpager/internal/schema"
)

// Node describes one selected field.
type Node struct {
	// Key is the response key (alias or field name).
	Key    string
	Result schema.Result
	Fields []*Node
	// Item describes one element of a list or connection.
	Item *Node
	// Hidden fields are requested by the engine itself (id, __typename) and
	// are not exposed in result records.
	Hidden bool
	// Paged is set on connections that have a registered subquery in the
	// document this shape belongs to.
	Paged bool
	// Path is the composition path, used in error messages.
	Path string
}

func (n *Node) Kind() schema.Kind { return n.Result.Kind }

// Field returns the child with the given response key.
func (n *Node) Field(key string) *Node {
	for _, f := range n.Fields {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// Add appends a field, replacing a hidden one with the same key.
func (n *Node) Add(f *Node) *Node {
	for i, cur := range n.Fields {
		if cur.Key == f.Key {
			if cur.Hidden && !f.Hidden {
				n.Fields[i] = f
				return f
			}
			return cur
		}
	}
	n.Fields = append(n.Fields, f)
	return f
}

// Resolve navigates one physical response segment from n. A trailing "[]"
// projects over list elements. Connection wrappers (pageInfo, edges, node,
// nodes) are synthesized from the connection shape.
func (n *Node) Resolve(segment string) (*Node, bool, error) {
	name, each := strings.CutSuffix(segment, "[]")
	next, err := n.child(name)
	if err != nil {
		return nil, false, err
	}
	if each {
		if next.Kind() != schema.KindList {
			return nil, false, fmt.Errorf("%q is not a list", name)
		}
		return next.Item, true, nil
	}
	return next, false, nil
}

func (n *Node) child(name string) (*Node, error) {
	switch n.Kind() {
	case schema.KindObject:
		if f := n.Field(name); f != nil {
			return f, nil
		}
		return nil, fmt.Errorf("field %q is not selected on %s", name, n.describe())
	case schema.KindConnection:
		c := n.Result.Shape()
		switch {
		case name == c.PageInfo:
			return pageInfoNode(c), nil
		case c.Nodes == "" && name == c.Edges:
			edge := &Node{Key: c.Edges + "[]", Result: schema.Object("Edge"), Fields: []*Node{renamed(n.Item, c.Node)}}
			return &Node{Key: c.Edges, Result: schema.ListOf(edge.Result), Item: edge}, nil
		case c.Nodes != "" && name == c.Nodes:
			return &Node{Key: c.Nodes, Result: schema.ListOf(n.Item.Result), Item: n.Item}, nil
		}
		return nil, fmt.Errorf("connection %s has no wrapper field %q", n.describe(), name)
	default:
		return nil, fmt.Errorf("cannot select %q on %s %s", name, n.Kind(), n.describe())
	}
}

func (n *Node) describe() string {
	if n.Path != "" {
		return n.Path
	}
	if n.Key != "" {
		return n.Key
	}
	return n.Result.Type
}

func renamed(n *Node, key string) *Node {
	cp := *n
	cp.Key = key
	return &cp
}

func pageInfoNode(c *schema.ConnectionShape) *Node {
	return &Node{
		Key:    c.PageInfo,
		Result: schema.Object("PageInfo"),
		Fields: []*Node{
			{Key: c.HasNextPage, Result: schema.Scalar(schema.Boolean)},
			{Key: c.EndCursor, Result: schema.Scalar(schema.String).Null()},
		},
	}
}
