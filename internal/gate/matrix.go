package gate

import (
	"sort"
	"strings"
)

// Tuple is one concrete assignment of matrix dimension values,
// e.g. {platform: linux, toolchain: stable}.
type Tuple map[string]string

// Key returns a canonical representation of the tuple, independent of
// generation order. Tuples compare equal iff their keys are equal.
func (t Tuple) Key() string {
	if len(t) == 0 {
		return ""
	}
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+t[name])
	}
	return strings.Join(parts, ",")
}

// Clone returns a copy of the tuple.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Expand returns the full cross-product of the matrix dimensions, unioned
// with the explicit includes. Duplicate tuples collapse to one entry. The
// result is a pure function of the matrix value; iteration order follows
// dimension order with includes appended, but callers must treat the result
// as a set.
//
// A nil matrix expands to a single empty tuple, so every job yields at
// least one run.
func (m *Matrix) Expand() []Tuple {
	if m == nil || (len(m.Dimensions) == 0 && len(m.Include) == 0) {
		return []Tuple{{}}
	}

	grid := []Tuple{{}}
	for _, dim := range m.Dimensions {
		next := make([]Tuple, 0, len(grid)*len(dim.Values))
		for _, base := range grid {
			for _, v := range dim.Values {
				t := base.Clone()
				t[dim.Name] = v
				next = append(next, t)
			}
		}
		grid = next
	}

	seen := make(map[string]struct{}, len(grid)+len(m.Include))
	out := make([]Tuple, 0, len(grid)+len(m.Include))
	for _, t := range grid {
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}
	for _, t := range m.Include {
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t.Clone())
	}
	return out
}
