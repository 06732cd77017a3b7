package compiler

import (
	"fmt"
	"reflect"

	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/expr"
	"github.com/hanpama/graphpager/internal/language"
	"github.com/hanpama/graphpager/internal/schema"
	"github.com/hanpama/graphpager/internal/shape"
)

// Reserved variable names used by runners for cursoring.
const (
	VarID    = "__id"
	VarAfter = "__after"
)

// builder emits one document and its shape.
type builder struct {
	// primary is the connection that takes $__after in this document.
	primary *selection
	// after is a caller-supplied after argument of the primary connection.
	after any

	vars    []*compose.VarRef
	defs    language.VariableDefinitionList
	pending []pendingSubquery
}

type pendingSubquery struct {
	sel        *selection
	field      *shape.Node
	owner      *shape.Node
	ownerAt    string
	connAt     string
	parentPath string
}

func (b *builder) useVar(v *compose.VarRef) error {
	if v.Name == VarID || v.Name == VarAfter {
		return fmt.Errorf("%w: $%s", ErrReservedVariable, v.Name)
	}
	for _, cur := range b.vars {
		if cur.Name != v.Name {
			continue
		}
		if cur.Type != v.Type || cur.HasDefault != v.HasDefault || !reflect.DeepEqual(cur.DefaultVal, v.DefaultVal) {
			return fmt.Errorf("%w: $%s", ErrConflictingVariable, v.Name)
		}
		return nil
	}
	typ, err := language.ParseType(v.Type)
	if err != nil {
		return fmt.Errorf("%w: $%s: %v", ErrInvalidVariableType, v.Name, err)
	}
	def := &language.VariableDefinition{Variable: v.Name, Type: typ}
	if v.HasDefault {
		if def.DefaultValue, err = toValue(v.DefaultVal, nil); err != nil {
			return err
		}
	}
	b.vars = append(b.vars, v)
	b.defs = append(b.defs, def)
	return nil
}

func (b *builder) arguments(args []compose.Arg) (language.ArgumentList, error) {
	out := make(language.ArgumentList, 0, len(args))
	for _, a := range args {
		v, err := toValue(a.Value, b.useVar)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", a.Name, err)
		}
		out = append(out, &language.Argument{Name: a.Name, Value: v})
	}
	return out, nil
}

func (b *builder) selectionSet(s *selection, sh *shape.Node, at, path string) (language.SelectionSet, error) {
	var set language.SelectionSet
	r := sh.Result
	hidden := func(name string, result schema.Result) error {
		if c := s.find(name); c != nil {
			if c.node.Name() != name {
				return compileErr(joinPath(path, name), fmt.Errorf("%w: %s is reserved", ErrConflictingSelection, name))
			}
			return nil
		}
		sh.Add(&shape.Node{Key: name, Result: result, Hidden: true, Path: joinPath(path, name)})
		set = append(set, &language.Field{Name: name})
		return nil
	}
	if r.Abstract {
		if err := hidden(schema.TypenameField, schema.Scalar(schema.String)); err != nil {
			return nil, err
		}
	}
	if r.Node {
		if err := hidden(schema.IDField, schema.Scalar(schema.ID)); err != nil {
			return nil, err
		}
	}
	for _, c := range s.children {
		f, err := b.field(c, sh, at, path)
		if err != nil {
			return nil, err
		}
		set = append(set, f)
	}
	if len(set) == 0 {
		if err := hidden(schema.TypenameField, schema.Scalar(schema.String)); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// field emits s, adds its shape under parent and returns the AST field. at
// is the selector of parent within the document.
func (b *builder) field(s *selection, parent *shape.Node, at, parentPath string) (*language.Field, error) {
	n := s.node
	r := n.Result()
	path := joinPath(parentPath, s.key)

	f := &language.Field{Name: n.Name()}
	if s.key != n.Name() {
		f.Alias = s.key
	}
	callArgs := n.Args()
	if s == b.primary {
		callArgs, b.after = withoutArg(callArgs, r.Shape().After)
	}
	args, err := b.arguments(callArgs)
	if err != nil {
		return nil, compileErr(path, err)
	}
	sh := &shape.Node{Key: s.key, Result: r, Path: path}

	switch r.Kind {
	case schema.KindScalar:
		if len(s.children) > 0 {
			return nil, compileErr(path, fmt.Errorf("%w: scalar %s has no fields", ErrInvalidSelection, r.Type))
		}
	case schema.KindObject:
		if f.SelectionSet, err = b.selectionSet(s, sh, expr.Join(at, s.key), path); err != nil {
			return nil, err
		}
	case schema.KindList:
		sh.Item = &shape.Node{Key: s.key + "[]", Result: r.Item(), Path: path}
		if f.SelectionSet, err = b.items(s, sh.Item, expr.Join(at, s.key+"[]"), path); err != nil {
			return nil, err
		}
	case schema.KindConnection:
		sh.Item = &shape.Node{Result: r.Item(), Path: path}
		if f.SelectionSet, args, err = b.connection(s, sh, parent, args, at, parentPath); err != nil {
			return nil, err
		}
	}
	f.Arguments = args
	parent.Add(sh)
	return f, nil
}

func (b *builder) items(s *selection, item *shape.Node, at, path string) (language.SelectionSet, error) {
	if item.Kind() != schema.KindObject {
		if len(s.children) > 0 {
			return nil, compileErr(path, fmt.Errorf("%w: %s items have no fields", ErrInvalidSelection, item.Result.Type))
		}
		return nil, nil
	}
	return b.selectionSet(s, item, at, path)
}

func (b *builder) connection(s *selection, sh, parent *shape.Node, args language.ArgumentList, at, parentPath string) (language.SelectionSet, language.ArgumentList, error) {
	cs := sh.Result.Shape()
	path := sh.Path
	if args.ForName(cs.First) == nil && args.ForName(cs.Last) == nil {
		args = append(args, &language.Argument{Name: cs.First, Value: intValue(schema.DefaultPageSize)})
	}
	connAt := expr.Join(at, s.key)

	if s == b.primary {
		args = append(args, &language.Argument{Name: cs.After, Value: variable(VarAfter)})
	} else if walkable(s.node) {
		if !parent.Result.Node {
			return nil, nil, compileErr(path, fmt.Errorf("%w: %s does not implement Node; mark the connection FirstPageOnly", ErrUnpageableConnection, parent.Result.Type))
		}
		sh.Paged = true
		b.pending = append(b.pending, pendingSubquery{
			sel:        s,
			field:      sh,
			owner:      parent,
			ownerAt:    at,
			connAt:     connAt,
			parentPath: parentPath,
		})
	}

	items, err := b.items(s, sh.Item, expr.Join(append([]string{connAt}, cs.ItemPath()...)...), path)
	if err != nil {
		return nil, nil, err
	}
	set := language.SelectionSet{
		&language.Field{Name: cs.PageInfo, SelectionSet: language.SelectionSet{
			&language.Field{Name: cs.HasNextPage},
			&language.Field{Name: cs.EndCursor},
		}},
	}
	if cs.Nodes != "" {
		set = append(set, &language.Field{Name: cs.Nodes, SelectionSet: items})
	} else {
		set = append(set, &language.Field{Name: cs.Edges, SelectionSet: language.SelectionSet{
			&language.Field{Name: cs.Node, SelectionSet: items},
		}})
	}
	return set, args, nil
}

// finish compiles the selectors and sub-documents of every connection
// registered while emitting the document rooted at root.
func (b *builder) finish(root *shape.Node) ([]*Subquery, error) {
	out := make([]*Subquery, 0, len(b.pending))
	for _, p := range b.pending {
		path := p.field.Path
		ids, err := expr.CompileIDs(root, expr.Join(p.ownerAt, schema.IDField))
		if err != nil {
			return nil, compileErr(path, err)
		}
		infos, err := expr.CompilePageInfos(root, p.connAt)
		if err != nil {
			return nil, compileErr(path, err)
		}
		sq, err := compileSubquery(p.sel, p.owner.Result.Type, p.parentPath)
		if err != nil {
			return nil, err
		}
		sq.Field = p.field
		sq.ParentIDs = ids
		sq.ParentPageInfo = infos
		out = append(out, sq)
	}
	return out, nil
}

// walkable reports whether a connection is followed past its first page.
// Backward pagination is never walked.
func walkable(n *compose.Node) bool {
	if n.IsFirstPageOnly() {
		return false
	}
	cs := n.Result().Shape()
	for _, a := range n.Args() {
		if a.Name == cs.Last || a.Name == cs.Before {
			return false
		}
	}
	return true
}

func withoutArg(args []compose.Arg, name string) ([]compose.Arg, any) {
	for i, a := range args {
		if a.Name == name {
			out := append(args[:i:i], args[i+1:]...)
			return out, a.Value
		}
	}
	return args, nil
}
