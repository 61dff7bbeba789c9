package contextstore

// Lookup resolves path against data. Missing keys, out-of-range indexes and
// traversal through scalars all report false; Lookup never panics.
func Lookup(data map[string]interface{}, path string) (interface{}, bool) {
	segs, ok := parsePath(path)
	if !ok {
		return nil, false
	}
	var cur interface{} = data
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]interface{}:
			v, exists := c[seg.mapKey()]
			if !exists {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, isIdx := seg.sliceIndex()
			if !isIdx || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Get is Lookup without the presence flag; missing paths yield nil.
func Get(data map[string]interface{}, path string) interface{} {
	v, _ := Lookup(data, path)
	return v
}

// Set returns a new root with value stored at path. Containers along the
// path are copied, never modified, so the previous root stays valid and
// distinct from the result. Missing intermediates are created: bracket
// indexes create slices, everything else creates maps. An unreadable path
// returns data unchanged.
func Set(data map[string]interface{}, path string, value interface{}) map[string]interface{} {
	segs, ok := parsePath(path)
	if !ok {
		return data
	}
	return setIn(data, segs, value).(map[string]interface{})
}

func setIn(cur interface{}, segs []segment, value interface{}) interface{} {
	if len(segs) == 0 {
		return value
	}
	seg, rest := segs[0], segs[1:]

	switch c := cur.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(c)+1)
		for k, v := range c {
			out[k] = v
		}
		key := seg.mapKey()
		out[key] = setIn(c[key], rest, value)
		return out
	case []interface{}:
		if idx, isIdx := seg.sliceIndex(); isIdx {
			n := len(c)
			if idx >= n {
				n = idx + 1
			}
			out := make([]interface{}, n)
			copy(out, c)
			var child interface{}
			if idx < len(c) {
				child = c[idx]
			}
			out[idx] = setIn(child, rest, value)
			return out
		}
	}

	if seg.isIndex {
		out := make([]interface{}, seg.index+1)
		out[seg.index] = setIn(nil, rest, value)
		return out
	}
	return map[string]interface{}{seg.key: setIn(nil, rest, value)}
}
