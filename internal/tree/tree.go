// Package tree provides the ordered value tree that configuration documents are
// parsed into. A tree is a tagged union of scalars, lists and insertion-ordered
// maps. Trees are never mutated after construction; Merge returns a new tree and
// may share unchanged subtrees with its inputs.
package tree

import (
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one node of a configuration tree: *Scalar, *List or *Map.
type Value interface {
	Kind() Kind
	String() string
}

// ScalarKind is the resolved YAML type of a scalar.
type ScalarKind int

const (
	ScalarString ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarFloat
	ScalarNull
)

// Scalar is a leaf value. The raw text is kept as written in the source.
type Scalar struct {
	raw  string
	kind ScalarKind
}

// NewScalar creates a scalar of the given kind.
func NewScalar(raw string, kind ScalarKind) *Scalar {
	return &Scalar{raw: raw, kind: kind}
}

// String creates a string scalar.
func String(s string) *Scalar { return &Scalar{raw: s, kind: ScalarString} }

// Bool creates a boolean scalar.
func Bool(b bool) *Scalar { return &Scalar{raw: strconv.FormatBool(b), kind: ScalarBool} }

// Int creates an integer scalar.
func Int(i int64) *Scalar { return &Scalar{raw: strconv.FormatInt(i, 10), kind: ScalarInt} }

// Null creates a null scalar.
func Null() *Scalar { return &Scalar{raw: "null", kind: ScalarNull} }

func (s *Scalar) Kind() Kind { return KindScalar }

// ScalarKind returns the resolved type of the scalar.
func (s *Scalar) ScalarKind() ScalarKind { return s.kind }

// Raw returns the scalar text exactly as parsed.
func (s *Scalar) Raw() string { return s.raw }

// IsNull reports whether the scalar is an explicit null (`~`, `null` or empty).
func (s *Scalar) IsNull() bool { return s.kind == ScalarNull }

// Text returns the value when the scalar is a string.
func (s *Scalar) Text() (string, bool) {
	if s.kind != ScalarString {
		return "", false
	}
	return s.raw, true
}

// AsBool returns the value when the scalar is a boolean.
func (s *Scalar) AsBool() (bool, bool) {
	if s.kind != ScalarBool {
		return false, false
	}
	b, err := strconv.ParseBool(strings.ToLower(s.raw))
	if err != nil {
		return false, false
	}
	return b, true
}

// String returns the canonical text form used for placeholder substitution.
// Booleans and integers are normalized (True -> true, 0x10 -> 16).
func (s *Scalar) String() string {
	switch s.kind {
	case ScalarBool:
		if b, ok := s.AsBool(); ok {
			return strconv.FormatBool(b)
		}
	case ScalarInt:
		if i, err := strconv.ParseInt(strings.ReplaceAll(s.raw, "_", ""), 0, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
	}
	return s.raw
}

// List is an ordered sequence of values.
type List struct {
	items []Value
}

// NewList creates a list holding items in order.
func NewList(items ...Value) *List {
	cp := make([]Value, len(items))
	copy(cp, items)
	return &List{items: cp}
}

func (l *List) Kind() Kind { return KindList }

// Len returns the number of items.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the i-th item.
func (l *List) At(i int) Value { return l.items[i] }

// Items returns a copy of the items.
func (l *List) Items() []Value {
	if l == nil {
		return nil
	}
	cp := make([]Value, len(l.items))
	copy(cp, l.items)
	return cp
}

func (l *List) String() string {
	parts := make([]string, 0, l.Len())
	for _, item := range l.items {
		parts = append(parts, item.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Entry is a key/value pair used to build a Map.
type Entry struct {
	Key   string
	Value Value
}

// Map is a mapping with unique keys that remembers insertion order.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap creates a map from entries. A repeated key replaces the earlier
// value but keeps the position of its first occurrence.
func NewMap(entries ...Entry) *Map {
	m := &Map{vals: make(map[string]Value, len(entries))}
	for _, e := range entries {
		m.set(e.Key, e.Value)
	}
	return m
}

// Empty returns a map with no entries.
func Empty() *Map { return NewMap() }

// set is only called on maps under construction and never on a map that has
// been handed to a caller.
func (m *Map) set(key string, v Value) {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *Map) Kind() Kind { return KindMap }

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	cp := make([]string, len(m.keys))
	copy(cp, m.keys)
	return cp
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *Map) String() string {
	parts := make([]string, 0, m.Len())
	for _, k := range m.keys {
		parts = append(parts, k+"="+m.vals[k].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
