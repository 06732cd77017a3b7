// Package result is the materialized result graph. Objects are Records
// keeping their fields in document order; paginated connections are
// Connections whose item list grows as later pages arrive and which report
// whether they were walked to completion.
package result

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dolmen-go/jsonmap"
)

// Record is one deserialized object. Field values are nil, string, int64,
// float64, bool, time.Time, *Record, *Connection or []any.
type Record struct {
	typ    string
	id     string
	path   string
	fields jsonmap.Ordered
}

// NewRecord creates an empty record of the given type at a composition path.
func NewRecord(typ, path string) *Record {
	return &Record{typ: typ, path: path, fields: jsonmap.Ordered{Data: map[string]interface{}{}}}
}

// Type is the concrete type name, read from __typename for abstract types.
func (r *Record) Type() string { return r.typ }

// ID is the entity id, or "" for objects without one.
func (r *Record) ID() string { return r.id }

// Path is the composition path the record was selected at.
func (r *Record) Path() string { return r.path }

func (r *Record) SetType(typ string) { r.typ = typ }
func (r *Record) SetID(id string)     { r.id = id }

// Set stores a field, keeping the position of an existing key.
func (r *Record) Set(key string, v any) {
	if _, ok := r.fields.Data[key]; !ok {
		r.fields.Order = append(r.fields.Order, key)
	}
	r.fields.Data[key] = v
}

// Keys returns field keys in document order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.fields.Order))
	copy(out, r.fields.Order)
	return out
}

func (r *Record) Len() int { return len(r.fields.Order) }

func (r *Record) Value(key string) (any, bool) {
	v, ok := r.fields.Data[key]
	return v, ok
}

func (r *Record) String(key string) string {
	s, _ := Get[string](r, key)
	return s
}

func (r *Record) Int(key string) int64 {
	i, _ := Get[int64](r, key)
	return i
}

func (r *Record) Float(key string) float64 {
	f, _ := Get[float64](r, key)
	return f
}

func (r *Record) Bool(key string) bool {
	b, _ := Get[bool](r, key)
	return b
}

func (r *Record) Time(key string) time.Time {
	t, _ := Get[time.Time](r, key)
	return t
}

// Record returns a nested object, or nil when it is null or absent.
func (r *Record) Record(key string) *Record {
	v, _ := Get[*Record](r, key)
	return v
}

func (r *Record) Connection(key string) *Connection {
	v, _ := Get[*Connection](r, key)
	return v
}

func (r *Record) List(key string) []any {
	v, _ := Get[[]any](r, key)
	return v
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(&r.fields)
}

// Get returns the field value at key when it holds a T.
func Get[T any](r *Record, key string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.fields.Data[key].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Lookup follows response keys through nested records.
func Lookup(v any, keys ...string) (any, bool) {
	for _, k := range keys {
		r, ok := v.(*Record)
		if !ok || r == nil {
			return nil, false
		}
		if v, ok = r.Value(k); !ok {
			return nil, false
		}
	}
	return v, true
}

// Decode copies a result value into out through its JSON form.
func Decode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("result: encode: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("result: decode: %w", err)
	}
	return nil
}
