package tree

import "strconv"

// LeafFunc receives the dotted key of a leaf and the leaf itself.
// List elements are keyed as "parent[i]".
type LeafFunc func(key string, leaf *Scalar)

// Walk visits every non-null scalar reachable from root in document order.
func Walk(root Value, fn LeafFunc) {
	walk(root, "", fn)
}

func walk(v Value, key string, fn LeafFunc) {
	switch node := v.(type) {
	case *Map:
		for _, k := range node.keys {
			child := k
			if key != "" {
				child = key + "." + k
			}
			walk(node.vals[k], child, fn)
		}
	case *List:
		for i, item := range node.items {
			walk(item, key+"["+strconv.Itoa(i)+"]", fn)
		}
	case *Scalar:
		if node.IsNull() {
			return
		}
		fn(key, node)
	}
}
