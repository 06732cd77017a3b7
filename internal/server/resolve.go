package server

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/language"
)

const cursorPrefix = "cursor:"

// resolver evaluates one operation against a Graph.
type resolver struct {
	graph     *Graph
	doc       *language.QueryDocument
	vars      map[string]any
	pageLimit int
}

func (r *resolver) errorf(path language.Path, format string, args ...any) *language.Error {
	return &language.Error{Message: fmt.Sprintf(format, args...), Path: slices.Clone(path)}
}

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{ResponseName: responseName, Fields: []*language.Field{field}})
}

func (r *resolver) collectFields(typ string, set language.SelectionSet) *collectedFieldMap {
	fields := &collectedFieldMap{index: map[string]int{}}
	r.collectFieldsImpl(typ, set, fields, map[string]bool{})
	return fields
}

func (r *resolver) collectFieldsImpl(typ string, set language.SelectionSet, fields *collectedFieldMap, visited map[string]bool) {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			fields.add(name, sel)
		case *language.InlineFragment:
			if r.applies(typ, sel.TypeCondition) {
				r.collectFieldsImpl(typ, sel.SelectionSet, fields, visited)
			}
		case *language.FragmentSpread:
			if visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			def := r.doc.Fragments.ForName(sel.Name)
			if def != nil && r.applies(typ, def.TypeCondition) {
				r.collectFieldsImpl(typ, def.SelectionSet, fields, visited)
			}
		}
	}
}

// applies reports whether a fragment with the type condition applies to an
// object of type typ.
func (r *resolver) applies(typ, condition string) bool {
	if condition == "" || condition == typ {
		return true
	}
	return slices.Contains(r.graph.Implements[typ], condition)
}

func (r *resolver) object(obj map[string]any, set language.SelectionSet, path language.Path) (*jsontree.Node, error) {
	typ, _ := obj[keyTypename].(string)
	fields := r.collectFields(typ, set)
	members := make([]jsontree.Member, 0, len(fields.fields))
	for _, f := range fields.fields {
		field := f.Fields[0]
		var sub language.SelectionSet
		for _, ff := range f.Fields {
			sub = append(sub, ff.SelectionSet...)
		}
		fieldPath := append(slices.Clone(path), language.PathName(f.ResponseName))
		v, err := r.field(obj, typ, field, sub, fieldPath)
		if err != nil {
			return nil, err
		}
		members = append(members, jsontree.Member{Name: f.ResponseName, Value: v})
	}
	return jsontree.NewObject(members...), nil
}

func (r *resolver) field(obj map[string]any, typ string, field *language.Field, set language.SelectionSet, path language.Path) (*jsontree.Node, error) {
	if field.Name == keyTypename {
		return jsontree.NewString(typ), nil
	}
	args := make(map[string]any, len(field.Arguments))
	for _, a := range field.Arguments {
		v, err := a.Value.Value(r.vars)
		if err != nil {
			return nil, r.errorf(path, "argument %s: %v", a.Name, err)
		}
		args[a.Name] = v
	}
	if typ == "Query" && field.Name == "node" {
		if _, ok := obj["node"]; !ok {
			return r.value(map[string]any{keyRef: fmt.Sprint(args["id"])}, args, set, path)
		}
	}
	return r.value(obj[field.Name], args, set, path)
}

func (r *resolver) value(v any, args map[string]any, set language.SelectionSet, path language.Path) (*jsontree.Node, error) {
	switch v := v.(type) {
	case nil:
		return jsontree.NewNull(), nil
	case []any:
		items := make([]*jsontree.Node, len(v))
		for i, it := range v {
			n, err := r.value(it, nil, set, append(slices.Clone(path), language.PathIndex(i)))
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return jsontree.NewArray(items...), nil
	case map[string]any:
		if ref, ok := v[keyRef]; ok {
			obj, ok := r.graph.Nodes[fmt.Sprint(ref)]
			if !ok {
				return jsontree.NewNull(), nil
			}
			return r.requireSelection(obj, set, path)
		}
		if items, ok := v[keyConnection]; ok {
			list, _ := items.([]any)
			return r.connection(list, args, set, path)
		}
		if entries, ok := v[keyMatch]; ok {
			list, _ := entries.([]any)
			for _, e := range list {
				entry, _ := e.(map[string]any)
				want, _ := entry["args"].(map[string]any)
				if matches(want, args) {
					return r.value(entry["value"], args, set, path)
				}
			}
			return jsontree.NewNull(), nil
		}
		return r.requireSelection(v, set, path)
	}
	if len(set) > 0 {
		return nil, r.errorf(path, "cannot select fields of a scalar")
	}
	return scalar(v)
}

func (r *resolver) requireSelection(obj map[string]any, set language.SelectionSet, path language.Path) (*jsontree.Node, error) {
	if len(set) == 0 {
		return nil, r.errorf(path, "an object requires a selection")
	}
	return r.object(obj, set, path)
}

// connection pages items with first/after and last/before and resolves the
// selection against a synthetic connection object.
func (r *resolver) connection(items []any, args map[string]any, set language.SelectionSet, path language.Path) (*jsontree.Node, error) {
	first, hasFirst, err := intArg(args, "first")
	if err != nil {
		return nil, r.errorf(path, "%v", err)
	}
	last, hasLast, err := intArg(args, "last")
	if err != nil {
		return nil, r.errorf(path, "%v", err)
	}
	for _, n := range []struct {
		name  string
		value int
		set   bool
	}{{"first", first, hasFirst}, {"last", last, hasLast}} {
		if n.set && (n.value < 0 || (r.pageLimit > 0 && n.value > r.pageLimit)) {
			return nil, r.errorf(path, "%s must be between 0 and %d, got %d", n.name, r.pageLimit, n.value)
		}
	}
	if !hasFirst && !hasLast {
		first, hasFirst = r.pageLimit, r.pageLimit > 0
	}

	lo, hi := 0, len(items)
	if s, ok := args["after"].(string); ok {
		n, err := parseCursor(s, len(items))
		if err != nil {
			return nil, r.errorf(path, "after: %v", err)
		}
		lo = n
	}
	if s, ok := args["before"].(string); ok {
		n, err := parseCursor(s, len(items))
		if err != nil {
			return nil, r.errorf(path, "before: %v", err)
		}
		hi = n - 1
	}
	if hi < lo {
		hi = lo
	}
	if hasFirst && hi-lo > first {
		hi = lo + first
	}
	if hasLast && hi-lo > last {
		lo = hi - last
	}

	edges := make([]any, 0, hi-lo)
	nodes := make([]any, 0, hi-lo)
	for i := lo; i < hi; i++ {
		item := items[i]
		if id, ok := item.(string); ok {
			item = map[string]any{keyRef: id}
		}
		edges = append(edges, map[string]any{
			keyTypename: "Edge",
			"cursor":    cursor(i + 1),
			"node":      item,
		})
		nodes = append(nodes, item)
	}
	pageInfo := map[string]any{
		keyTypename:       "PageInfo",
		"hasNextPage":     hi < len(items),
		"hasPreviousPage": lo > 0,
		"startCursor":     nil,
		"endCursor":       nil,
	}
	if hi > lo {
		pageInfo["startCursor"] = cursor(lo + 1)
		pageInfo["endCursor"] = cursor(hi)
	}
	return r.requireSelection(map[string]any{
		keyTypename:  "Connection",
		"pageInfo":   pageInfo,
		"edges":      edges,
		"nodes":      nodes,
		"totalCount": len(items),
	}, set, path)
}

func cursor(n int) string { return cursorPrefix + strconv.Itoa(n) }

// parseCursor returns the 1-based position a cursor points at.
func parseCursor(s string, size int) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, cursorPrefix))
	if err != nil || !strings.HasPrefix(s, cursorPrefix) || n < 0 || n > size {
		return 0, fmt.Errorf("invalid cursor %q", s)
	}
	return n, nil
}

func intArg(args map[string]any, name string) (int, bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch v := v.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), true, nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true, nil
		}
	}
	return 0, false, fmt.Errorf("%s must be an integer, got %v", name, v)
}

func matches(want, args map[string]any) bool {
	for k, v := range want {
		if fmt.Sprint(args[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func scalar(v any) (*jsontree.Node, error) {
	switch v := v.(type) {
	case string:
		return jsontree.NewString(v), nil
	case bool:
		return jsontree.NewBool(v), nil
	case int:
		return jsontree.NewInt(int64(v)), nil
	case int64:
		return jsontree.NewInt(v), nil
	case uint64:
		return jsontree.NewNumber(json.Number(strconv.FormatUint(v, 10))), nil
	case float64:
		return jsontree.NewNumber(json.Number(strconv.FormatFloat(v, 'g', -1, 64))), nil
	case time.Time:
		return jsontree.NewString(v.UTC().Format(time.RFC3339)), nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}
