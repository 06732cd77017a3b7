// Package compiler turns composition trees into executable queries.
//
// Compile emits the root document, a shape descriptor mirroring every
// selected field, and a registry of subqueries: one per connection that may
// need pages beyond the first. A subquery refetches its connection through
// the global node lookup,
//
//	query($__id: ID!, $__after: String) {
//	  node(id: $__id) { __typename ... on Repository { issues(first: 100, after: $__after) { ... } } }
//	}
//
// and owns the subqueries of the connections nested in its own document.
// When the composition tree ends at a connection, the root document itself
// declares $__after and is fetched once per page.
package compiler

import (
	"strings"

	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/expr"
	"github.com/hanpama/graphpager/internal/language"
	"github.com/hanpama/graphpager/internal/schema"
	"github.com/hanpama/graphpager/internal/shape"
)

// CompiledQuery is immutable and may be executed concurrently.
type CompiledQuery struct {
	Document string
	// Variables are the caller variables the document declares.
	Variables language.VariableDefinitionList
	Shape     *shape.Node
	// Terminal holds the response keys from the root to the node the
	// composition tree ended at.
	Terminal   []string
	Primary    *Primary
	Subqueries []*Subquery
}

// Primary describes a root document that pages its terminal connection.
type Primary struct {
	Path       string
	Connection *expr.Path
	PageInfo   *expr.PageInfos
	// After is the caller's own after argument: nil, a literal cursor or a
	// *compose.VarRef.
	After any
}

// Subquery fetches the remaining pages of one connection for every entity
// that owns it.
type Subquery struct {
	// Path is the composition path of the connection.
	Path      string
	OwnerType string
	// Field is the connection's shape within the parent document.
	Field *shape.Node

	Document  string
	Variables language.VariableDefinitionList
	Shape     *shape.Node
	// Connection selects the connection in a sub-document response.
	Connection *expr.Path

	// ParentIDs and ParentPageInfo are evaluated against a parent response
	// and yield aligned sequences.
	ParentIDs      *expr.IDs
	ParentPageInfo *expr.PageInfos
	// PageInfo is evaluated against a sub-document response.
	PageInfo *expr.PageInfos

	Subqueries []*Subquery
}

// Compile compiles the composition tree ending at n.
func Compile(n *compose.Node) (*CompiledQuery, error) {
	root, keys, err := merge(n)
	if err != nil {
		return nil, err
	}
	terminal := root
	for _, k := range keys {
		terminal = terminal.find(k)
	}

	b := &builder{}
	if terminal.node.IsConnection() && walkable(terminal.node) {
		b.primary = terminal
	}
	rootShape := &shape.Node{Result: root.node.Result()}
	set, err := b.selectionSet(root, rootShape, "", "")
	if err != nil {
		return nil, err
	}
	subqueries, err := b.finish(rootShape)
	if err != nil {
		return nil, err
	}

	q := &CompiledQuery{
		Variables:  b.defs,
		Shape:      rootShape,
		Terminal:   keys,
		Subqueries: subqueries,
	}
	defs := b.defs
	if b.primary != nil {
		path := strings.Join(keys, ".")
		conn, err := expr.Compile(rootShape, path)
		if err != nil {
			return nil, compileErr(path, err)
		}
		infos, err := expr.CompilePageInfos(rootShape, path)
		if err != nil {
			return nil, compileErr(path, err)
		}
		q.Primary = &Primary{Path: path, Connection: conn, PageInfo: infos, After: b.after}
		defs = append(language.VariableDefinitionList{
			{Variable: VarAfter, Type: language.NamedType(schema.String)},
		}, defs...)
	}
	q.Document = language.Print(operation(defs, set))
	return q, nil
}

func compileSubquery(s *selection, ownerType, parentPath string) (*Subquery, error) {
	b := &builder{primary: s}
	root := &shape.Node{Result: schema.Object("Query")}
	node := &shape.Node{Key: schema.NodeQuery, Result: schema.Interface("Node", true).Null(), Path: parentPath}
	node.Add(&shape.Node{Key: schema.TypenameField, Result: schema.Scalar(schema.String), Hidden: true})

	f, err := b.field(s, node, schema.NodeQuery, parentPath)
	if err != nil {
		return nil, err
	}
	root.Add(node)
	nested, err := b.finish(root)
	if err != nil {
		return nil, err
	}
	connAt := expr.Join(schema.NodeQuery, s.key)
	conn, err := expr.Compile(root, connAt)
	if err != nil {
		return nil, compileErr(joinPath(parentPath, s.key), err)
	}
	infos, err := expr.CompilePageInfos(root, connAt)
	if err != nil {
		return nil, compileErr(joinPath(parentPath, s.key), err)
	}

	defs := append(language.VariableDefinitionList{
		{Variable: VarID, Type: language.NonNullNamedType(schema.ID)},
		{Variable: VarAfter, Type: language.NamedType(schema.String)},
	}, b.defs...)
	set := language.SelectionSet{
		&language.Field{
			Name:      schema.NodeQuery,
			Arguments: language.ArgumentList{{Name: schema.NodeArgument, Value: variable(VarID)}},
			SelectionSet: language.SelectionSet{
				&language.Field{Name: schema.TypenameField},
				&language.InlineFragment{TypeCondition: ownerType, SelectionSet: language.SelectionSet{f}},
			},
		},
	}
	return &Subquery{
		Path:       joinPath(parentPath, s.key),
		OwnerType:  ownerType,
		Document:   language.Print(operation(defs, set)),
		Variables:  b.defs,
		Shape:      root,
		Connection: conn,
		PageInfo:   infos,
		Subqueries: nested,
	}, nil
}

func operation(defs language.VariableDefinitionList, set language.SelectionSet) *language.QueryDocument {
	return &language.QueryDocument{Operations: language.OperationList{{
		Operation:           language.Query,
		VariableDefinitions: defs,
		SelectionSet:        set,
	}}}
}

// Walk visits every subquery of q depth-first.
func (q *CompiledQuery) Walk(fn func(*Subquery)) {
	walk(q.Subqueries, fn)
}

func walk(sqs []*Subquery, fn func(*Subquery)) {
	for _, sq := range sqs {
		fn(sq)
		walk(sq.Subqueries, fn)
	}
}
