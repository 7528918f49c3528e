// Package document provides the mutable tree nodes used while constructing
// outgoing documents, and the coercion of row cells onto BSON values.
//
// Interior nodes are either insertion-ordered objects or dense lists; leaves
// are Go primitives, bson.DateTime, bson.Binary, or spliced document
// literals. Finished trees convert to bson.D / bson.A for the driver.
package document

import "go.mongodb.org/mongo-driver/v2/bson"

// Object is an insertion-ordered document node.
type Object struct {
	idx   map[string]int
	elems []bson.E
}

// NewObject creates an empty object node.
func NewObject() *Object {
	return &Object{idx: make(map[string]int)}
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.elems) }

// Get returns the child stored under name.
func (o *Object) Get(name string) (any, bool) {
	i, ok := o.idx[name]
	if !ok {
		return nil, false
	}
	return o.elems[i].Value, true
}

// Set stores a child under name, keeping first-insertion order on overwrite.
func (o *Object) Set(name string, value any) {
	if i, ok := o.idx[name]; ok {
		o.elems[i].Value = value
		return
	}
	o.idx[name] = len(o.elems)
	o.elems = append(o.elems, bson.E{Key: name, Value: value})
}

// BSON converts the tree rooted at this object into an ordered bson.D.
func (o *Object) BSON() bson.D {
	d := make(bson.D, 0, len(o.elems))
	for _, e := range o.elems {
		d = append(d, bson.E{Key: e.Key, Value: toBSON(e.Value)})
	}
	return d
}

// List is a dense array node. Setting past the current end grows the list;
// intermediate elements stay nil until written.
type List struct {
	elems []any
}

// NewList creates an empty list node.
func NewList() *List {
	return &List{}
}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.elems) }

// Get returns the element at index i, or nil if unset or out of range.
func (l *List) Get(i int) any {
	if i < 0 || i >= len(l.elems) {
		return nil
	}
	return l.elems[i]
}

// Set stores an element at index i, growing the list as needed.
func (l *List) Set(i int, value any) {
	for len(l.elems) <= i {
		l.elems = append(l.elems, nil)
	}
	l.elems[i] = value
}

// BSON converts the tree rooted at this list into a bson.A.
func (l *List) BSON() bson.A {
	a := make(bson.A, 0, len(l.elems))
	for _, e := range l.elems {
		a = append(a, toBSON(e))
	}
	return a
}

// toBSON converts a node value to its driver representation. Leaves pass
// through unchanged.
func toBSON(v any) any {
	switch n := v.(type) {
	case *Object:
		return n.BSON()
	case *List:
		return n.BSON()
	default:
		return v
	}
}

// ToBSON converts any builder artifact (object, list, or leaf) to its driver
// representation.
func ToBSON(v any) any { return toBSON(v) }
