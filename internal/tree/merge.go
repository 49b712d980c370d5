package tree

// Merge deep-merges overlay onto base and returns the result. Neither input is
// modified.
//
// Maps merge key by key: keys of base keep their order, keys only present in
// overlay are appended in overlay order. For any other combination the
// overlay value wins, so lists are replaced wholesale and never concatenated.
func Merge(base, overlay Value) Value {
	if overlay == nil {
		return base
	}
	if base == nil {
		return overlay
	}

	bm, baseIsMap := base.(*Map)
	om, overlayIsMap := overlay.(*Map)
	if !baseIsMap || !overlayIsMap {
		return overlay
	}

	out := &Map{vals: make(map[string]Value, bm.Len()+om.Len())}
	for _, k := range bm.keys {
		if ov, ok := om.vals[k]; ok {
			out.set(k, Merge(bm.vals[k], ov))
			continue
		}
		out.set(k, bm.vals[k])
	}
	for _, k := range om.keys {
		if _, ok := bm.vals[k]; ok {
			continue
		}
		out.set(k, om.vals[k])
	}
	return out
}

// MergeAll folds docs left to right with Merge, starting from an empty map.
func MergeAll(docs ...Value) *Map {
	var acc Value = Empty()
	for _, d := range docs {
		acc = Merge(acc, d)
	}
	if m, ok := acc.(*Map); ok {
		return m
	}
	return Empty()
}
