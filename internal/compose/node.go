// Package compose builds immutable composition trees describing which fields
// and relations to fetch from a remote GraphQL API.
//
// A tree starts at Root and grows by FieldAccess (Field) and MethodCall
// (Call) nodes. Every builder call returns a new node that points at its
// parent; nothing is mutated, compiled, or sent at build time. The fields to
// read from an object, list item or connection item are attached with Select,
// whose callback receives a scope node standing for "each value".
package compose

import (
	"strings"

	"github.com/hanpama/graphpager/internal/schema"
)

// NodeKind tags the variant of a Node.
type NodeKind int

const (
	Root NodeKind = iota
	FieldAccess
	MethodCall
)

func (k NodeKind) String() string {
	switch k {
	case Root:
		return "root"
	case FieldAccess:
		return "field"
	case MethodCall:
		return "call"
	default:
		return "unknown"
	}
}

// Arg is a named method-call argument. Value is a Go literal, an EnumValue,
// a *VarRef, or a slice/map of those.
type Arg struct {
	Name  string
	Value any
}

// Node is one immutable position in a composition tree.
type Node struct {
	kind   NodeKind
	name   string
	alias  string
	args   []Arg
	parent *Node
	result schema.Result

	selections    []*Node
	firstPageOnly bool
	// scope marks a Root created by Select for the selected value.
	scope bool
}

// NewRoot starts a tree at the root operation type, e.g. "Query".
func NewRoot(typeName string) *Node {
	return &Node{kind: Root, name: typeName, result: schema.Object(typeName)}
}

// Field returns a FieldAccess child of n.
func (n *Node) Field(name string, result schema.Result) *Node {
	return &Node{kind: FieldAccess, name: name, parent: n, result: result}
}

// Call returns a MethodCall child of n carrying arguments in order.
func (n *Node) Call(name string, result schema.Result, args ...Arg) *Node {
	cp := make([]Arg, len(args))
	copy(cp, args)
	return &Node{kind: MethodCall, name: name, args: cp, parent: n, result: result}
}

// Select returns a copy of n whose value is projected onto the nodes built
// by fn. fn receives a scope node representing one value of n (the object
// itself, or one item of a list or connection).
func (n *Node) Select(fn func(item *Node) []*Node) *Node {
	item := n.result
	if n.result.Kind == schema.KindList || n.result.Kind == schema.KindConnection {
		item = n.result.Item()
	}
	scope := &Node{kind: Root, name: item.Type, result: item, scope: true}
	cp := n.clone()
	cp.selections = fn(scope)
	return cp
}

// As returns a copy of n selected under a response alias.
func (n *Node) As(alias string) *Node {
	cp := n.clone()
	cp.alias = alias
	return cp
}

// FirstPageOnly returns a copy of a connection node that is fetched for its
// first page only and never walked further.
func (n *Node) FirstPageOnly() *Node {
	cp := n.clone()
	cp.firstPageOnly = true
	return cp
}

func (n *Node) clone() *Node {
	cp := *n
	return &cp
}

func (n *Node) Kind() NodeKind          { return n.kind }
func (n *Node) Name() string            { return n.name }
func (n *Node) Alias() string           { return n.alias }
func (n *Node) Parent() *Node           { return n.parent }
func (n *Node) Result() schema.Result   { return n.result }
func (n *Node) Selections() []*Node     { return n.selections }
func (n *Node) IsFirstPageOnly() bool   { return n.firstPageOnly }
func (n *Node) IsScope() bool           { return n.scope }
func (n *Node) Args() []Arg             { return n.args }
func (n *Node) Node() *Node             { return n }
func (n *Node) HasSelections() bool     { return len(n.selections) > 0 }
func (n *Node) IsRoot() bool            { return n.kind == Root }
func (n *Node) IsConnection() bool      { return n.result.Kind == schema.KindConnection }
func (n *Node) ResponseKey() string {
	if n.alias != "" {
		return n.alias
	}
	return n.name
}

// Chain returns the nodes from the nearest Root down to n.
func (n *Node) Chain() []*Node {
	var out []*Node
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur)
		if cur.kind == Root {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Path renders the chain as "repository.issues.title".
func (n *Node) Path() string {
	var parts []string
	for _, c := range n.Chain() {
		if c.kind == Root {
			continue
		}
		parts = append(parts, c.ResponseKey())
	}
	return strings.Join(parts, ".")
}

func (n *Node) String() string {
	if n.kind == Root {
		return n.name
	}
	return n.Path()
}
