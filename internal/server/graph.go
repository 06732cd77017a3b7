package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Graph is an in-memory GraphQL data set.
//
// Values are YAML scalars, lists and mappings. A mapping with a single
// special key has a meaning of its own:
//
//	{$ref: I1}                       the node with id I1
//	{$connection: [I1, I2, {...}]}   a cursor-paginated connection
//	{$match: [{args: {...}, value: v}]}
//	                                 the value of the first entry whose args
//	                                 equal the field arguments
//
// Every other mapping is an inline object typed by its __typename.
type Graph struct {
	Query map[string]any `yaml:"query"`
	// Nodes are the objects reachable through node(id:). Their map key is
	// their id.
	Nodes map[string]map[string]any `yaml:"nodes"`
	// Implements lists the interfaces of each concrete type, used to match
	// fragment type conditions.
	Implements map[string][]string `yaml:"implements"`
}

const (
	keyRef        = "$ref"
	keyConnection = "$connection"
	keyMatch      = "$match"
	keyTypename   = "__typename"
	keyID         = "id"
)

var ErrInvalidGraph = errors.New("invalid graph")

// LoadGraph decodes and validates a YAML graph.
func LoadGraph(r io.Reader) (*Graph, error) {
	var g Graph
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	if err := g.init(); err != nil {
		return nil, err
	}
	return &g, nil
}

func LoadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadGraph(f)
}

func (g *Graph) init() error {
	if g.Query == nil {
		g.Query = map[string]any{}
	}
	if g.Nodes == nil {
		g.Nodes = map[string]map[string]any{}
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		obj := g.Nodes[id]
		if obj == nil {
			return fmt.Errorf("%w: node %s is empty", ErrInvalidGraph, id)
		}
		if _, ok := obj[keyTypename].(string); !ok {
			return fmt.Errorf("%w: node %s has no __typename", ErrInvalidGraph, id)
		}
		obj[keyID] = id
	}
	for _, id := range ids {
		for k, v := range g.Nodes[id] {
			if err := g.check(v); err != nil {
				return fmt.Errorf("%w: %s.%s: %v", ErrInvalidGraph, id, k, err)
			}
		}
	}
	for k, v := range g.Query {
		if err := g.check(v); err != nil {
			return fmt.Errorf("%w: query.%s: %v", ErrInvalidGraph, k, err)
		}
	}
	return nil
}

// check verifies that every reference names a node.
func (g *Graph) check(v any) error {
	switch v := v.(type) {
	case []any:
		for _, it := range v {
			if err := g.check(it); err != nil {
				return err
			}
		}
	case map[string]any:
		if ref, ok := v[keyRef]; ok {
			if _, ok := g.Nodes[fmt.Sprint(ref)]; !ok {
				return fmt.Errorf("unknown node %v", ref)
			}
			return nil
		}
		if items, ok := v[keyConnection]; ok {
			list, ok := items.([]any)
			if !ok && items != nil {
				return fmt.Errorf("$connection must be a list")
			}
			for _, it := range list {
				if id, ok := it.(string); ok {
					if _, ok := g.Nodes[id]; !ok {
						return fmt.Errorf("unknown node %s", id)
					}
					continue
				}
				if err := g.check(it); err != nil {
					return err
				}
			}
			return nil
		}
		if entries, ok := v[keyMatch]; ok {
			list, ok := entries.([]any)
			if !ok {
				return fmt.Errorf("$match must be a list")
			}
			for _, e := range list {
				entry, ok := e.(map[string]any)
				if !ok {
					return fmt.Errorf("$match entries must be mappings")
				}
				if err := g.check(entry["value"]); err != nil {
					return err
				}
			}
			return nil
		}
		for _, it := range v {
			if err := g.check(it); err != nil {
				return err
			}
		}
	}
	return nil
}
