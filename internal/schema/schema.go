// Package schema describes the contract between schema-bound proxy types and
// the query engine: the declared result kind of every field, the capabilities
// of entity types, and the uniform shape of cursor-paginated connections.
package schema

// Kind is the declared result kind of a field.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindList
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// Built-in scalar type names. Enum types are declared with Enum.
const (
	String   = "String"
	Int      = "Int"
	Float    = "Float"
	Boolean  = "Boolean"
	ID       = "ID"
	DateTime = "DateTime"
	URI      = "URI"
)

// Result is the declared result of a field or method on a proxy type.
type Result struct {
	Kind Kind
	// Type is the named GraphQL type of the value. For connections and lists
	// it is the type of a single item.
	Type     string
	Nullable bool
	// Enum marks a scalar result whose values are enum names.
	Enum bool
	// Node marks object types that implement the global Node interface and
	// can be fetched again by id.
	Node bool
	// Abstract marks interface or union types; their concrete type is read
	// from __typename.
	Abstract bool
	// Elem describes list items for KindList and connection items for
	// KindConnection.
	Elem *Result
	// Connection overrides DefaultConnection for KindConnection.
	Connection *ConnectionShape
}

func Scalar(typ string) Result { return Result{Kind: KindScalar, Type: typ} }

func Enum(typ string) Result { return Result{Kind: KindScalar, Type: typ, Enum: true} }

func Object(typ string) Result { return Result{Kind: KindObject, Type: typ} }

// Entity declares an object type implementing Node.
func Entity(typ string) Result { return Result{Kind: KindObject, Type: typ, Node: true} }

// Interface declares an abstract type. Node reports whether every
// implementation of the interface carries an id.
func Interface(typ string, node bool) Result {
	return Result{Kind: KindObject, Type: typ, Abstract: true, Node: node}
}

func ListOf(elem Result) Result {
	e := elem
	return Result{Kind: KindList, Type: elem.Type, Elem: &e}
}

func ConnectionOf(item Result) Result {
	e := item
	return Result{Kind: KindConnection, Type: item.Type, Elem: &e}
}

// Null returns a copy of r that tolerates null.
func (r Result) Null() Result {
	r.Nullable = true
	return r
}

// Item returns the declared item result of a list or connection.
func (r Result) Item() Result {
	if r.Elem == nil {
		return Result{}
	}
	return *r.Elem
}

func (r Result) Shape() *ConnectionShape {
	if r.Connection != nil {
		return r.Connection
	}
	return &DefaultConnection
}

// ConnectionShape names the arguments and wrapper fields of a connection.
// Connections are assumed to be structurally uniform across a schema.
type ConnectionShape struct {
	First  string
	After  string
	Last   string
	Before string

	PageInfo    string
	HasNextPage string
	EndCursor   string
	Edges       string
	Node        string
	// Nodes, when set, selects items through the flat nodes list instead
	// of edges { node }.
	Nodes string
}

var DefaultConnection = ConnectionShape{
	First:       "first",
	After:       "after",
	Last:        "last",
	Before:      "before",
	PageInfo:    "pageInfo",
	HasNextPage: "hasNextPage",
	EndCursor:   "endCursor",
	Edges:       "edges",
	Node:        "node",
}

// ItemPath returns the response path segments leading from a connection to
// one of its items. A trailing "[]" marks list projection.
func (c *ConnectionShape) ItemPath() []string {
	if c.Nodes != "" {
		return []string{c.Nodes + "[]"}
	}
	return []string{c.Edges + "[]", c.Node}
}

// Names used by the engine for entity identity and refetching.
const (
	IDField       = "id"
	TypenameField = "__typename"
	NodeQuery     = "node"
	NodeArgument  = "id"
)

// DefaultPageSize is requested for connections with no explicit first/last.
const DefaultPageSize = 100

// PageInfo is the continuation state of a connection page. When
// HasNextPage is false, EndCursor must not be followed.
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// Cursor returns the end cursor or "" when absent.
func (p PageInfo) Cursor() string {
	if p.EndCursor == nil {
		return ""
	}
	return *p.EndCursor
}
