// Package docmodel defines the canonical invoice document: an ordered tree
// of sections and fields whose leaves pair an extracted string value with a
// confidence score. The tree is a tagged union (Scalar | *Group | List) so
// merge and template logic dispatch on the node kind instead of sniffing
// map shapes.
//
// Wire format: a leaf serializes as {"v": <string>, "p": <float>}, a group
// as a plain JSON object, a repeated group as an array of objects.
package docmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a single node in a canonical document.
type Value interface {
	isValue()

	// Clone returns a deep copy of the node.
	Clone() Value
}

// Scalar is a leaf: an extracted string plus a confidence in [0,1].
type Scalar struct {
	Value      string
	Confidence float64
}

func (Scalar) isValue() {}

// Clone implements Value. Scalars are plain values; the copy is trivial.
func (s Scalar) Clone() Value { return s }

// MarshalJSON writes the {"v","p"} leaf shape.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		V string  `json:"v"`
		P float64 `json:"p"`
	}{V: s.Value, P: s.Confidence})
}

// Group is an ordered mapping from names to child values. Key order is
// preserved from first insertion; Set on an existing key replaces the value
// in place without moving it.
type Group struct {
	keys     []string
	children map[string]Value
}

func (*Group) isValue() {}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{children: make(map[string]Value)}
}

// Set inserts or replaces a child.
func (g *Group) Set(name string, v Value) {
	if g.children == nil {
		g.children = make(map[string]Value)
	}
	if _, ok := g.children[name]; !ok {
		g.keys = append(g.keys, name)
	}
	g.children[name] = v
}

// Get returns the child for name.
func (g *Group) Get(name string) (Value, bool) {
	v, ok := g.children[name]
	return v, ok
}

// Delete removes a child if present.
func (g *Group) Delete(name string) {
	if _, ok := g.children[name]; !ok {
		return
	}
	delete(g.children, name)
	for i, k := range g.keys {
		if k == name {
			g.keys = append(g.keys[:i], g.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the child names in insertion order.
func (g *Group) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Len returns the number of children.
func (g *Group) Len() int { return len(g.children) }

// Clone implements Value.
func (g *Group) Clone() Value { return g.CloneGroup() }

// CloneGroup returns a deep copy with the concrete type.
func (g *Group) CloneGroup() *Group {
	out := NewGroup()
	for _, k := range g.keys {
		out.Set(k, g.children[k].Clone())
	}
	return out
}

// MarshalJSON writes the group as an object, children in insertion order.
func (g *Group) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(g.children[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving key order.
func (g *Group) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	parsed, ok := v.(*Group)
	if !ok {
		return fmt.Errorf("document root must be an object")
	}
	*g = *parsed
	return nil
}

// List is an ordered sequence, e.g. invoice line items (elements are
// groups) or a projected column of scalars. Element order is the row order
// of the source document.
type List []Value

func (List) isValue() {}

// Clone implements Value.
func (l List) Clone() Value {
	out := make(List, len(l))
	for i, v := range l {
		out[i] = v.Clone()
	}
	return out
}

// FromJSON parses a canonical document from its wire form.
func FromJSON(data []byte) (*Group, error) {
	g := NewGroup()
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return g, nil
}

// decodeValue reads one JSON value from the decoder. Objects whose keys are
// a subset of {v, p} and include "v" decode as a Scalar leaf; this boundary
// rule is why catalog field names "v" and "p" are rejected at load time.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return Scalar{Value: t, Confidence: 1.0}, nil
	case json.Number:
		return Scalar{Value: t.String(), Confidence: 1.0}, nil
	case bool:
		return Scalar{Value: fmt.Sprintf("%t", t), Confidence: 1.0}, nil
	case nil:
		return Scalar{}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (Value, error) {
	g := NewGroup()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		g.Set(key, v)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	if leaf, ok := asLeaf(g); ok {
		return leaf, nil
	}
	return g, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	var l List
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		l = append(l, v)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, err
	}
	return l, nil
}

// asLeaf recognizes the {"v","p"} wire shape.
func asLeaf(g *Group) (Scalar, bool) {
	if g.Len() == 0 || g.Len() > 2 {
		return Scalar{}, false
	}
	vv, hasV := g.Get("v")
	if !hasV {
		return Scalar{}, false
	}
	if g.Len() == 2 {
		if _, hasP := g.Get("p"); !hasP {
			return Scalar{}, false
		}
	}
	vs, ok := vv.(Scalar)
	if !ok {
		return Scalar{}, false
	}
	leaf := Scalar{Value: vs.Value, Confidence: 1.0}
	if pv, ok := g.Get("p"); ok {
		ps, ok := pv.(Scalar)
		if !ok {
			return Scalar{}, false
		}
		p, err := strconv.ParseFloat(ps.Value, 64)
		if err != nil {
			return Scalar{}, false
		}
		leaf.Confidence = p
	}
	return leaf, true
}

// Equal reports deep equality of two values. Sibling order inside a group
// is not significant; list order is.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && av == bv
	case *Group:
		bv, ok := b.(*Group)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			bc, ok := bv.Get(k)
			if !ok || !Equal(av.children[k], bc) {
				return false
			}
		}
		return true
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}
