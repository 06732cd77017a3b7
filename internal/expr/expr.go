// Package expr compiles selectors over response-node trees.
//
// A selector is a dotted path of response keys such as
// "repository.issues.edges[].node.id", where a trailing "[]" projects over
// the elements of a list. Paths are resolved against a shape descriptor when
// they are compiled, so a selector that names a field the document never
// selects fails at compile time rather than when it is evaluated.
//
// Evaluation preserves positions: a null or missing value along a projected
// path yields a nil entry, never a dropped one. Two selectors that share a
// projected prefix therefore produce aligned sequences.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/schema"
	"github.com/hanpama/graphpager/internal/shape"
)

var ErrUnresolvable = errors.New("unresolvable selector")

type step struct {
	key  string
	each bool
}

// Path is a compiled selector. It is immutable and safe for concurrent use.
type Path struct {
	src    string
	steps  []step
	target *shape.Node
	many   bool
}

// Compile resolves src against root.
func Compile(root *shape.Node, src string) (*Path, error) {
	p := &Path{src: src, target: root}
	if src == "" {
		return p, nil
	}
	cur := root
	for _, seg := range strings.Split(src, ".") {
		if seg == "" || seg == "[]" {
			return nil, fmt.Errorf("%w %q: empty segment", ErrUnresolvable, src)
		}
		next, each, err := cur.Resolve(seg)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrUnresolvable, src, err)
		}
		p.steps = append(p.steps, step{key: strings.TrimSuffix(seg, "[]"), each: each})
		p.many = p.many || each
		cur = next
	}
	p.target = cur
	return p, nil
}

// Join builds a selector from segments, skipping empty ones.
func Join(segments ...string) string {
	out := segments[:0:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ".")
}

func (p *Path) String() string { return p.src }

// Target is the shape the selector ends at.
func (p *Path) Target() *shape.Node { return p.target }

// Many reports whether the selector projects over a list.
func (p *Path) Many() bool { return p.many }

// Eval returns one node per projected element.
func (p *Path) Eval(n *jsontree.Node) []*jsontree.Node {
	cur := []*jsontree.Node{n}
	for _, s := range p.steps {
		next := make([]*jsontree.Node, 0, len(cur))
		for _, v := range cur {
			child := v.Get(s.key)
			if s.each {
				next = append(next, child.Items()...)
			} else {
				next = append(next, child)
			}
		}
		cur = next
	}
	return cur
}

// One evaluates a selector without projections.
func (p *Path) One(n *jsontree.Node) *jsontree.Node {
	out := p.Eval(n)
	if len(out) != 1 {
		return nil
	}
	return out[0]
}

// IDs selects entity ids. A null entity or id yields "".
type IDs struct {
	path *Path
}

func CompileIDs(root *shape.Node, src string) (*IDs, error) {
	p, err := Compile(root, src)
	if err != nil {
		return nil, err
	}
	t := p.target.Result
	if t.Kind != schema.KindScalar || (t.Type != schema.ID && t.Type != schema.String) {
		return nil, fmt.Errorf("%w %q: %s is not an id", ErrUnresolvable, src, t.Type)
	}
	return &IDs{path: p}, nil
}

func (s *IDs) String() string { return s.path.src }

func (s *IDs) Eval(n *jsontree.Node) []string {
	nodes := s.path.Eval(n)
	out := make([]string, len(nodes))
	for i, v := range nodes {
		out[i], _ = v.Str()
	}
	return out
}

// PageInfos selects the page info of every connection matched by a
// selector. A null connection yields a zero PageInfo, which never continues.
type PageInfos struct {
	conn        *shape.Node
	path        *Path
	hasNextPage string
	endCursor   string
}

// CompilePageInfos takes a selector ending at a connection.
func CompilePageInfos(root *shape.Node, conn string) (*PageInfos, error) {
	c, err := Compile(root, conn)
	if err != nil {
		return nil, err
	}
	if c.target.Kind() != schema.KindConnection {
		return nil, fmt.Errorf("%w %q: %s is not a connection", ErrUnresolvable, conn, c.target.Kind())
	}
	cs := c.target.Result.Shape()
	p, err := Compile(root, Join(conn, cs.PageInfo))
	if err != nil {
		return nil, err
	}
	for _, key := range []string{cs.HasNextPage, cs.EndCursor} {
		if p.target.Field(key) == nil {
			return nil, fmt.Errorf("%w %q: page info lacks %q", ErrUnresolvable, conn, key)
		}
	}
	return &PageInfos{conn: c.target, path: p, hasNextPage: cs.HasNextPage, endCursor: cs.EndCursor}, nil
}

func (s *PageInfos) String() string { return s.path.src }

func (s *PageInfos) Many() bool { return s.path.many }

// Connection is the shape of the selected connection.
func (s *PageInfos) Connection() *shape.Node { return s.conn }

func (s *PageInfos) Eval(n *jsontree.Node) []schema.PageInfo {
	nodes := s.path.Eval(n)
	out := make([]schema.PageInfo, len(nodes))
	for i, v := range nodes {
		out[i] = s.read(v)
	}
	return out
}

// One evaluates a selector without projections.
func (s *PageInfos) One(n *jsontree.Node) schema.PageInfo {
	return s.read(s.path.One(n))
}

func (s *PageInfos) read(v *jsontree.Node) schema.PageInfo {
	var pi schema.PageInfo
	pi.HasNextPage, _ = v.Get(s.hasNextPage).Bool()
	if c, ok := v.Get(s.endCursor).Str(); ok {
		pi.EndCursor = &c
	}
	return pi
}
