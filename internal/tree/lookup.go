package tree

import "strings"

// Outcome describes the result of a dotted-path lookup.
type Outcome int

const (
	// Found means the path resolved to a non-null value.
	Found Outcome = iota
	// Absent means a key along the path is missing or the final value is null.
	Absent
	// TypeMismatch means an intermediate segment is not a map.
	TypeMismatch
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Absent:
		return "absent"
	case TypeMismatch:
		return "type-mismatch"
	default:
		return "unknown"
	}
}

// Lookup resolves a dotted path such as "spring.redis.host" against root.
// It never panics: missing keys yield Absent and descending into a scalar or
// list yields TypeMismatch.
func Lookup(root Value, dotted string) (Value, Outcome) {
	if root == nil || dotted == "" {
		return nil, Absent
	}

	current := root
	for _, segment := range strings.Split(dotted, ".") {
		m, ok := current.(*Map)
		if !ok {
			return nil, TypeMismatch
		}
		next, exists := m.Get(segment)
		if !exists || next == nil {
			return nil, Absent
		}
		current = next
	}

	if s, ok := current.(*Scalar); ok && s.IsNull() {
		return nil, Absent
	}
	return current, Found
}

// Has reports whether dotted resolves to a non-null value.
func Has(root Value, dotted string) bool {
	_, outcome := Lookup(root, dotted)
	return outcome == Found
}

// LookupString returns the value at dotted when it is a string scalar.
func LookupString(root Value, dotted string) (string, bool) {
	v, outcome := Lookup(root, dotted)
	if outcome != Found {
		return "", false
	}
	s, ok := v.(*Scalar)
	if !ok {
		return "", false
	}
	return s.Text()
}

// LookupList returns the value at dotted when it is a list.
func LookupList(root Value, dotted string) (*List, bool) {
	v, outcome := Lookup(root, dotted)
	if outcome != Found {
		return nil, false
	}
	l, ok := v.(*List)
	return l, ok
}

// LookupMap returns the value at dotted when it is a map.
func LookupMap(root Value, dotted string) (*Map, bool) {
	v, outcome := Lookup(root, dotted)
	if outcome != Found {
		return nil, false
	}
	m, ok := v.(*Map)
	return m, ok
}

// StringList converts a list of scalars into strings, skipping nested
// values and nulls.
func StringList(l *List) []string {
	out := make([]string, 0, l.Len())
	for _, item := range l.Items() {
		s, ok := item.(*Scalar)
		if !ok || s.IsNull() {
			continue
		}
		out = append(out, s.String())
	}
	return out
}
