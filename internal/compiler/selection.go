package compiler

import (
	"fmt"
	"strings"

	"github.com/hanpama/graphpager/internal/compose"
)

// selection is one response key of the merged selection tree. Composition
// nodes that resolve to the same response key are merged into a single
// selection when they are compatible.
type selection struct {
	node     *compose.Node
	key      string
	children []*selection
}

func (s *selection) child(n *compose.Node, path string) (*selection, error) {
	key := n.ResponseKey()
	for _, c := range s.children {
		if c.key != key {
			continue
		}
		if err := compatible(c.node, n); err != nil {
			return nil, compileErr(joinPath(path, key), err)
		}
		return c, nil
	}
	c := &selection{node: n, key: key}
	s.children = append(s.children, c)
	return c, nil
}

func (s *selection) find(key string) *selection {
	for _, c := range s.children {
		if c.key == key {
			return c
		}
	}
	return nil
}

func compatible(a, b *compose.Node) error {
	ar, br := a.Result(), b.Result()
	switch {
	case a.Name() != b.Name():
		return fmt.Errorf("%w: %s and %s", ErrConflictingSelection, a.Name(), b.Name())
	case ar.Kind != br.Kind || ar.Type != br.Type:
		return fmt.Errorf("%w: %s %s and %s %s", ErrConflictingSelection, ar.Kind, ar.Type, br.Kind, br.Type)
	case a.IsFirstPageOnly() != b.IsFirstPageOnly():
		return fmt.Errorf("%w: first-page-only differs", ErrConflictingSelection)
	}
	ak, err := argsKey(a.Args())
	if err != nil {
		return err
	}
	bk, err := argsKey(b.Args())
	if err != nil {
		return err
	}
	if ak != bk {
		return fmt.Errorf("%w: (%s) and (%s)", ErrConflictingSelection, ak, bk)
	}
	return nil
}

func argsKey(args []compose.Arg) (string, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		v, err := toValue(a.Value, func(*compose.VarRef) error { return nil })
		if err != nil {
			return "", err
		}
		parts = append(parts, a.Name+":"+v.String())
	}
	return strings.Join(parts, ","), nil
}

// merge builds the selection tree of the composition tree ending at n and
// returns it with the response keys leading to n.
func merge(n *compose.Node) (*selection, []string, error) {
	chain := n.Chain()
	if chain[0].IsScope() {
		return nil, nil, compileErr(n.Path(), fmt.Errorf("%w: node belongs to a selection scope", ErrInvalidSelection))
	}
	root := &selection{node: chain[0]}
	if err := attach(root, chain[0], ""); err != nil {
		return nil, nil, err
	}
	cur := root
	var keys []string
	for _, c := range chain[1:] {
		next, err := cur.child(c, strings.Join(keys, "."))
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, c.ResponseKey())
		cur = next
		// Selections made anywhere along the chain belong to the document.
		if err := attach(cur, c, strings.Join(keys, ".")); err != nil {
			return nil, nil, err
		}
	}
	return root, keys, nil
}

func attach(s *selection, n *compose.Node, path string) error {
	for _, item := range n.Selections() {
		chain := item.Chain()
		if !chain[0].IsScope() || len(chain) == 1 {
			return compileErr(path, fmt.Errorf("%w: %s is not a field of the selected value", ErrInvalidSelection, item))
		}
		cur, at := s, path
		for _, c := range chain[1:] {
			next, err := cur.child(c, at)
			if err != nil {
				return err
			}
			cur, at = next, joinPath(at, c.ResponseKey())
			if err := attach(cur, c, at); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
