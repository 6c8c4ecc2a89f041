// Package document defines the generic structured document produced by the
// file decoders and consumed by the builder. A document is a tree of named
// nodes; each node carries a flat set of named field values plus an ordered
// list of child nodes. Field values are cty values so decoders can hand over
// either real types (HCL) or raw text (XML) and the typed getters below take
// care of conversion.
package document

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Node is one element of a decoded export tree. Child order is significant:
// methods and their instructions execute in document order.
type Node struct {
	Name     string
	Fields   map[string]cty.Value
	Children []*Node
}

// New returns an empty node with the given name.
func New(name string) *Node {
	return &Node{
		Name:   name,
		Fields: map[string]cty.Value{},
	}
}

// Set stores a field value and returns the node for chaining.
func (n *Node) Set(field string, v cty.Value) *Node {
	n.Fields[field] = v
	return n
}

// Add appends child nodes in order and returns the node for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Has reports whether the named field is present.
func (n *Node) Has(field string) bool {
	_, ok := n.Fields[field]
	return ok
}

// ChildrenNamed returns all direct children with the given name, in document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first direct child with the given name.
func (n *Node) FirstChild(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// FieldError describes a missing or mistyped field on a node. The builder
// inspects Missing to distinguish absent fields from shape errors.
type FieldError struct {
	Node    string
	Field   string
	Missing bool
	Reason  string
}

// Error implements the error interface for FieldError.
func (e *FieldError) Error() string {
	if e.Missing {
		return fmt.Sprintf("node %s: missing field %q", e.Node, e.Field)
	}
	return fmt.Sprintf("node %s: field %q: %s", e.Node, e.Field, e.Reason)
}

func (n *Node) missing(field string) *FieldError {
	return &FieldError{Node: n.Name, Field: field, Missing: true}
}

func (n *Node) mistyped(field string, reason string) *FieldError {
	return &FieldError{Node: n.Name, Field: field, Reason: reason}
}

// typed fetches a field and converts it to the wanted cty type. XML decoders
// store everything as strings, so conversion rather than a strict type check
// is the contract here.
func (n *Node) typed(field string, want cty.Type) (cty.Value, error) {
	v, ok := n.Fields[field]
	if !ok {
		return cty.NilVal, n.missing(field)
	}
	if v.IsNull() {
		return cty.NilVal, n.mistyped(field, "value is null")
	}
	conv, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, n.mistyped(field, fmt.Sprintf("cannot read as %s: %v", want.FriendlyName(), err))
	}
	return conv, nil
}

// String returns the named field as a string.
func (n *Node) String(field string) (string, error) {
	v, err := n.typed(field, cty.String)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// Float returns the named field as a float64.
func (n *Node) Float(field string) (float64, error) {
	v, err := n.typed(field, cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// Int returns the named field as an int, rejecting fractional values.
func (n *Node) Int(field string) (int, error) {
	f, err := n.Float(field)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, n.mistyped(field, "expected an integer")
	}
	return int(f), nil
}

// Bool returns the named field as a bool. Absent fields default to false,
// matching the export format's habit of omitting unset flags.
func (n *Node) Bool(field string) (bool, error) {
	if !n.Has(field) {
		return false, nil
	}
	v, err := n.typed(field, cty.Bool)
	if err != nil {
		return false, err
	}
	return v.True(), nil
}

// UUID returns the named field parsed as a UUID.
func (n *Node) UUID(field string) (uuid.UUID, error) {
	s, err := n.String(field)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, n.mistyped(field, fmt.Sprintf("not a UUID: %v", err))
	}
	return id, nil
}

// StringOr returns the named field as a string, or fallback if absent.
func (n *Node) StringOr(field, fallback string) (string, error) {
	if !n.Has(field) {
		return fallback, nil
	}
	return n.String(field)
}

// IntOr returns the named field as an int, or fallback if absent.
func (n *Node) IntOr(field string, fallback int) (int, error) {
	if !n.Has(field) {
		return fallback, nil
	}
	return n.Int(field)
}

// FloatOr returns the named field as a float64, or fallback if absent.
func (n *Node) FloatOr(field string, fallback float64) (float64, error) {
	if !n.Has(field) {
		return fallback, nil
	}
	return n.Float(field)
}
