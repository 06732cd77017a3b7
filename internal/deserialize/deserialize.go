// Package deserialize materializes response-node trees into the result
// graph according to a shape descriptor.
package deserialize

import (
	"time"

	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/result"
	"github.com/hanpama/graphpager/internal/schema"
	"github.com/hanpama/graphpager/internal/shape"
)

// Key identifies the connections one subquery continues: the connection's
// shape and the id of the entity owning it.
type Key struct {
	Field *shape.Node
	Owner string
}

// Decoder deserializes one response. It records every paged connection it
// materializes so that later pages can be spliced into them by owner id.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	sinks map[Key][]*result.Connection
}

func NewDecoder() *Decoder {
	return &Decoder{sinks: map[Key][]*result.Connection{}}
}

// Sinks returns the connections of field owned by the entity id. The same
// entity may appear at several places of one response.
func (d *Decoder) Sinks(field *shape.Node, owner string) []*result.Connection {
	return d.sinks[Key{Field: field, Owner: owner}]
}

// Decode materializes n as a value of sh.
func (d *Decoder) Decode(sh *shape.Node, n *jsontree.Node) (any, error) {
	return d.value(sh, n, "")
}

func (d *Decoder) value(sh *shape.Node, n *jsontree.Node, owner string) (any, error) {
	if n.IsNull() {
		if sh.Result.Nullable {
			return nil, nil
		}
		return nil, &MissingFieldError{Path: sh.Path}
	}
	switch sh.Kind() {
	case schema.KindScalar:
		return scalar(sh, n)
	case schema.KindObject:
		return d.object(sh, n)
	case schema.KindList:
		if n.Kind() != jsontree.Array {
			return nil, mismatch(sh, "list", n)
		}
		items := n.Items()
		out := make([]any, len(items))
		for i, it := range items {
			v, err := d.value(sh.Item, it, owner)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case schema.KindConnection:
		return d.connection(sh, n, owner)
	}
	return nil, mismatch(sh, sh.Kind().String(), n)
}

func (d *Decoder) object(sh *shape.Node, n *jsontree.Node) (*result.Record, error) {
	if n.Kind() != jsontree.Object {
		return nil, mismatch(sh, "object", n)
	}
	rec := result.NewRecord(sh.Result.Type, sh.Path)
	if typ, ok := n.Get(schema.TypenameField).Str(); ok {
		rec.SetType(typ)
	}
	if sh.Result.Node {
		if id, ok := n.Get(schema.IDField).Str(); ok {
			rec.SetID(id)
		}
	}
	for _, f := range sh.Fields {
		if !n.Has(f.Key) && !f.Result.Nullable {
			return nil, &MissingFieldError{Path: f.Path}
		}
		v, err := d.value(f, n.Get(f.Key), rec.ID())
		if err != nil {
			return nil, err
		}
		if f.Hidden {
			continue
		}
		rec.Set(f.Key, v)
	}
	return rec, nil
}

func (d *Decoder) connection(sh *shape.Node, n *jsontree.Node, owner string) (*result.Connection, error) {
	if n.Kind() != jsontree.Object {
		return nil, mismatch(sh, "connection", n)
	}
	cs := sh.Result.Shape()
	pi, err := pageInfo(sh, cs, n.Get(cs.PageInfo))
	if err != nil {
		return nil, err
	}

	var items []any
	if cs.Nodes != "" {
		list := n.Get(cs.Nodes)
		if list.Kind() != jsontree.Array {
			return nil, mismatch(sh, "list", list)
		}
		for _, it := range list.Items() {
			v, err := d.value(sh.Item, it, owner)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	} else {
		edges := n.Get(cs.Edges)
		if edges.Kind() != jsontree.Array {
			return nil, mismatch(sh, "list", edges)
		}
		for _, edge := range edges.Items() {
			if edge.IsNull() {
				items = append(items, nil)
				continue
			}
			v, err := d.value(sh.Item, edge.Get(cs.Node), owner)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	}
	if items == nil {
		items = []any{}
	}

	conn := result.NewConnection(items, pi)
	switch {
	case sh.Paged:
		key := Key{Field: sh, Owner: owner}
		d.sinks[key] = append(d.sinks[key], conn)
	case pi.HasNextPage:
		// Nothing walks it; a page appended later resets the state.
		conn.Finish(result.Partial, nil)
	}
	return conn, nil
}

func pageInfo(sh *shape.Node, cs *schema.ConnectionShape, n *jsontree.Node) (schema.PageInfo, error) {
	var pi schema.PageInfo
	if n.Kind() != jsontree.Object {
		return pi, &MissingFieldError{Path: sh.Path + "." + cs.PageInfo}
	}
	has, ok := n.Get(cs.HasNextPage).Bool()
	if !ok {
		return pi, &MissingFieldError{Path: sh.Path + "." + cs.PageInfo + "." + cs.HasNextPage}
	}
	pi.HasNextPage = has
	if c := n.Get(cs.EndCursor); !c.IsNull() {
		s, ok := c.Str()
		if !ok {
			return pi, &TypeMismatchError{Path: sh.Path + "." + cs.PageInfo + "." + cs.EndCursor, Want: schema.String, Got: c.Kind().String()}
		}
		pi.EndCursor = &s
	}
	return pi, nil
}

func scalar(sh *shape.Node, n *jsontree.Node) (any, error) {
	r := sh.Result
	if r.Enum {
		if s, ok := n.Str(); ok {
			return s, nil
		}
		return nil, mismatch(sh, r.Type, n)
	}
	switch r.Type {
	case schema.Int:
		if num, ok := n.Number(); ok {
			if i, err := num.Int64(); err == nil {
				return i, nil
			}
		}
	case schema.Float:
		if num, ok := n.Number(); ok {
			if f, err := num.Float64(); err == nil {
				return f, nil
			}
		}
	case schema.Boolean:
		if b, ok := n.Bool(); ok {
			return b, nil
		}
	case schema.ID:
		if s, ok := n.Str(); ok {
			return s, nil
		}
		if num, ok := n.Number(); ok {
			return num.String(), nil
		}
	case schema.DateTime:
		if s, ok := n.Str(); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t, nil
			}
		}
	case schema.String, schema.URI:
		if s, ok := n.Str(); ok {
			return s, nil
		}
	default:
		return n.Value(), nil
	}
	return nil, mismatch(sh, r.Type, n)
}

func mismatch(sh *shape.Node, want string, n *jsontree.Node) error {
	got := n.Kind().String()
	if s, ok := n.Str(); ok && n.Kind() == jsontree.String {
		got = "string " + quote(s)
	}
	return &TypeMismatchError{Path: sh.Path, Want: want, Got: got}
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return `"` + s + `"`
}
