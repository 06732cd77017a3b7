// Package jsontree is the response-node data model: an ordered tree of named,
// typed JSON nodes backed by astjson values. Object members keep document
// order, which the result graph relies on.
package jsontree

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wundergraph/astjson"
)

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one name/value pair of an object node.
type Member struct {
	Name  string
	Value *Node
}

// Node is an immutable JSON value. A nil *Node behaves as JSON null.
type Node struct {
	v *astjson.Value
}

var null = astjson.MustParse("null")

func wrap(v *astjson.Value) *Node {
	if v == nil {
		return nil
	}
	return &Node{v: v}
}

func (n *Node) raw() *astjson.Value {
	if n == nil || n.v == nil {
		return null
	}
	return n.v
}

func NewNull() *Node { return wrap(null) }

func NewBool(b bool) *Node {
	var a astjson.Arena
	if b {
		return wrap(a.NewTrue())
	}
	return wrap(a.NewFalse())
}

func NewString(s string) *Node {
	var a astjson.Arena
	return wrap(a.NewString(s))
}

func NewNumber(n json.Number) *Node {
	var a astjson.Arena
	return wrap(a.NewNumberString(n.String()))
}

func NewInt(i int64) *Node { return NewNumber(json.Number(strconv.FormatInt(i, 10))) }

func NewArray(items ...*Node) *Node {
	var a astjson.Arena
	arr := a.NewArray()
	for i, it := range items {
		arr.SetArrayItem(i, it.raw())
	}
	return wrap(arr)
}

// NewObject builds an object in member order. A repeated name keeps its
// first position and takes the last value.
func NewObject(members ...Member) *Node {
	var a astjson.Arena
	obj := a.NewObject()
	for _, m := range members {
		obj.Set(m.Name, m.Value.raw())
	}
	return wrap(obj)
}

// Kind returns the node kind; nil nodes are Null.
func (n *Node) Kind() Kind {
	switch n.raw().Type() {
	case astjson.TypeTrue, astjson.TypeFalse:
		return Bool
	case astjson.TypeNumber:
		return Number
	case astjson.TypeString:
		return String
	case astjson.TypeArray:
		return Array
	case astjson.TypeObject:
		return Object
	default:
		return Null
	}
}

func (n *Node) IsNull() bool { return n.Kind() == Null }

// Get returns the member named name, or nil when n is not an object or has
// no such member.
func (n *Node) Get(name string) *Node {
	if n.Kind() != Object {
		return nil
	}
	return wrap(n.v.GetObject().Get(name))
}

// Has reports whether an object node carries the member, even if null.
func (n *Node) Has(name string) bool {
	return n.Kind() == Object && n.v.Exists(name)
}

func (n *Node) Members() []Member {
	if n.Kind() != Object {
		return nil
	}
	obj := n.v.GetObject()
	out := make([]Member, 0, obj.Len())
	obj.Visit(func(key []byte, v *astjson.Value) {
		out = append(out, Member{Name: string(key), Value: wrap(v)})
	})
	return out
}

func (n *Node) Items() []*Node {
	if n.Kind() != Array {
		return nil
	}
	vs := n.v.GetArray()
	out := make([]*Node, len(vs))
	for i, v := range vs {
		out[i] = wrap(v)
	}
	return out
}

func (n *Node) Str() (string, bool) {
	if n.Kind() != String {
		return "", false
	}
	b, err := n.v.StringBytes()
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (n *Node) Bool() (bool, bool) {
	if n.Kind() != Bool {
		return false, false
	}
	return n.v.Type() == astjson.TypeTrue, true
}

func (n *Node) Number() (json.Number, bool) {
	if n.Kind() != Number {
		return "", false
	}
	return json.Number(n.v.MarshalTo(nil)), true
}

// Value converts n to plain Go values: nil, bool, json.Number, string,
// []any, map[string]any.
func (n *Node) Value() any {
	switch n.Kind() {
	case Bool:
		b, _ := n.Bool()
		return b
	case Number:
		num, _ := n.Number()
		return num
	case String:
		s, _ := n.Str()
		return s
	case Array:
		items := n.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = it.Value()
		}
		return out
	case Object:
		members := n.Members()
		out := make(map[string]any, len(members))
		for _, m := range members {
			out[m.Name] = m.Value.Value()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON writes n preserving member order.
func (n *Node) MarshalJSON() ([]byte, error) {
	return n.raw().MarshalTo(nil), nil
}

func (n *Node) String() string {
	return string(n.raw().MarshalTo(nil))
}

// Parse decodes a single JSON value. Trailing data is an error.
func Parse(data []byte) (*Node, error) {
	v, err := astjson.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("jsontree: %w", err)
	}
	return wrap(v), nil
}

// MustParse is Parse for fixtures; it panics on malformed input.
func MustParse(data string) *Node {
	n, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return n
}

// UnmarshalJSON lets Node appear inside json-tagged structs.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}
