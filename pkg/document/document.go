// Package document holds machine configuration documents as an ordered tree of
// objects, arrays and scalars. Nothing about the tree is schema bound: field
// meaning is left to the callers walking it.
package document

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type Kind int

const (
	Scalar Kind = iota
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type Field struct {
	Name  string
	Value *Node
}

// Node is a single document value. Fields is used for objects, Items for
// arrays and Value for scalars. Scalar values are string, json.Number, bool or
// nil when decoded.
type Node struct {
	Kind   Kind
	Fields []Field
	Items  []*Node
	Value  any
}

func NewObject(fields ...Field) *Node {
	return &Node{Kind: Object, Fields: fields}
}

func NewArray(items ...*Node) *Node {
	return &Node{Kind: Array, Items: items}
}

func NewScalar(v any) *Node {
	return &Node{Kind: Scalar, Value: v}
}

func NewString(s string) *Node {
	return NewScalar(s)
}

func (n *Node) IsContainer() bool {
	return n != nil && (n.Kind == Object || n.Kind == Array)
}

// AsString returns the value of a string scalar.
func (n *Node) AsString() (string, bool) {
	if n == nil || n.Kind != Scalar {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

func (n *Node) Get(name string) (*Node, bool) {
	if n == nil || n.Kind != Object {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the named field in place, keeping its position, or appends it.
func (n *Node) Set(name string, v *Node) {
	if n.Kind != Object {
		panic(fmt.Sprintf("document: Set on %v node", n.Kind))
	}
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			n.Fields[i].Value = v
			return
		}
	}
	n.Fields = append(n.Fields, Field{Name: name, Value: v})
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Kind: n.Kind, Value: n.Value}
	if n.Fields != nil {
		c.Fields = make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			c.Fields[i] = Field{Name: f.Name, Value: f.Value.Clone()}
		}
	}
	if n.Items != nil {
		c.Items = make([]*Node, len(n.Items))
		for i, item := range n.Items {
			c.Items[i] = item.Clone()
		}
	}
	return c
}

// Equal reports structural equality. Field order is significant.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind != o.Kind {
		return false
	}
	switch n.Kind {
	case Object:
		if len(n.Fields) != len(o.Fields) {
			return false
		}
		for i := range n.Fields {
			if n.Fields[i].Name != o.Fields[i].Name || !n.Fields[i].Value.Equal(o.Fields[i].Value) {
				return false
			}
		}
		return true
	case Array:
		if len(n.Items) != len(o.Items) {
			return false
		}
		for i := range n.Items {
			if !n.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	default:
		if a, ok := n.Value.(json.Number); ok {
			b, ok := o.Value.(json.Number)
			return ok && a == b
		}
		return reflect.DeepEqual(n.Value, o.Value)
	}
}
