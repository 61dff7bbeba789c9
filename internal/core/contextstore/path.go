// Package contextstore provides the path-addressable working data used while
// a scenario runs, and the {{path}} template mini-language over it.
//
// Paths use dots for keys and brackets for indexes: "customer.orders[0].id".
// A bare numeric segment ("items.0") addresses a slice element when the
// container is a slice and a key otherwise.
package contextstore

import (
	"strconv"
	"strings"
)

// maxIndex bounds slice growth from a single Set.
const maxIndex = 1 << 16

type segment struct {
	key     string
	index   int
	isIndex bool
}

func (s segment) mapKey() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

func (s segment) sliceIndex() (int, bool) {
	if s.isIndex {
		return s.index, true
	}
	if n, err := strconv.Atoi(s.key); err == nil && n <= maxIndex && isDigits(s.key) {
		return n, true
	}
	return 0, false
}

// parsePath splits a path into segments. It reports false for paths it
// cannot read (empty segments, unclosed brackets).
func parsePath(path string) ([]segment, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	var segs []segment
	i := 0
	for i < len(path) {
		switch path[i] {
		case '.':
			i++
			if i >= len(path) || path[i] == '.' {
				return nil, false
			}
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, false
			}
			inner := strings.TrimSpace(path[i+1 : i+end])
			i += end + 1
			if seg, ok := bracketSegment(inner); ok {
				segs = append(segs, seg)
				continue
			}
			return nil, false
		default:
			j := i
			for j < len(path) && path[j] != '.' && path[j] != '[' {
				j++
			}
			segs = append(segs, segment{key: path[i:j]})
			i = j
		}
	}
	return segs, len(segs) > 0
}

func bracketSegment(inner string) (segment, bool) {
	if inner == "" {
		return segment{}, false
	}
	if isDigits(inner) {
		n, err := strconv.Atoi(inner)
		if err != nil || n > maxIndex {
			return segment{}, false
		}
		return segment{index: n, isIndex: true}, true
	}
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		return segment{key: inner[1 : len(inner)-1]}, true
	}
	return segment{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
