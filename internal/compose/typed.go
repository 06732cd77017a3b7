package compose

import "github.com/hanpama/graphpager/internal/schema"

// Selectable is anything that can appear in a Select projection.
type Selectable interface {
	Node() *Node
}

// Nodes unwraps selectables for Node.Select.
func Nodes(items ...Selectable) []*Node {
	out := make([]*Node, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, it.Node())
	}
	return out
}

// Field is a typed leaf. T is the Go type the scalar decodes to.
type Field[T any] struct {
	node *Node
}

func NewField[T any](n *Node) Field[T] { return Field[T]{node: n} }

func (f Field[T]) Node() *Node { return f.node }

func (f Field[T]) As(alias string) Field[T] { return Field[T]{node: f.node.As(alias)} }

// Entity wraps a node whose value is an object of a schema-bound proxy type.
type Entity interface {
	Selectable
}

// Object is a typed object relation whose proxy type is T.
type Object[T Entity] struct {
	node *Node
	wrap func(*Node) T
}

func NewObject[T Entity](n *Node, wrap func(*Node) T) Object[T] {
	return Object[T]{node: n, wrap: wrap}
}

func (o Object[T]) Node() *Node { return o.node }

// Proxy continues building from the related object.
func (o Object[T]) Proxy() T { return o.wrap(o.node) }

// Select projects the object onto the selectables returned by fn.
func (o Object[T]) Select(fn func(T) []Selectable) *Node {
	return o.node.Select(func(item *Node) []*Node { return Nodes(fn(o.wrap(item))...) })
}

// Connection is a typed cursor-paginated relation with items of proxy type T.
type Connection[T Entity] struct {
	node *Node
	wrap func(*Node) T
}

func NewConnection[T Entity](n *Node, wrap func(*Node) T) Connection[T] {
	if n.result.Kind != schema.KindConnection {
		panic("compose: " + n.Path() + " is not a connection")
	}
	return Connection[T]{node: n, wrap: wrap}
}

func (c Connection[T]) Node() *Node { return c.node }

func (c Connection[T]) FirstPageOnly() Connection[T] {
	return Connection[T]{node: c.node.FirstPageOnly(), wrap: c.wrap}
}

func (c Connection[T]) As(alias string) Connection[T] {
	return Connection[T]{node: c.node.As(alias), wrap: c.wrap}
}

// Select projects every item of the connection onto the selectables
// returned by fn.
func (c Connection[T]) Select(fn func(T) []Selectable) *Node {
	return c.node.Select(func(item *Node) []*Node { return Nodes(fn(c.wrap(item))...) })
}

// List is a typed plain list relation with items of proxy type T.
type List[T Entity] struct {
	node *Node
	wrap func(*Node) T
}

func NewList[T Entity](n *Node, wrap func(*Node) T) List[T] {
	return List[T]{node: n, wrap: wrap}
}

func (l List[T]) Node() *Node { return l.node }

func (l List[T]) Select(fn func(T) []Selectable) *Node {
	return l.node.Select(func(item *Node) []*Node { return Nodes(fn(l.wrap(item))...) })
}
