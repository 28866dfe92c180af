package docstore

import (
	"reflect"
	"strings"
)

// Document is a single schema-less record within a collection. Values are
// whatever a JSON round-trip produces: string, float64, bool, nil, nested
// map[string]any, or []any. Call sites perform their own localized type
// assertions; the store never interprets fields beyond the identity and
// timestamp ones it maintains.
type Document map[string]any

// Filter is an equality-based predicate mapping field paths to expected
// values. Keys may use dotted paths ("profile.phone") to reach nested
// fields. An empty or nil filter matches every document.
type Filter map[string]any

// ID returns the document's primary identifier, or "" if unset.
func (d Document) ID() string {
	s, _ := d["_id"].(string)
	return s
}

// Lookup resolves a dotted field path. The second return is false when any
// intermediate step is missing or not a map; that is "no value", not an
// error.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if dm, isDoc := cur.(Document); isDoc {
				m = map[string]any(dm)
			} else {
				return nil, false
			}
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Matches reports whether every filter field resolves to a value equal to
// the expected one. A field whose path does not resolve never matches.
func (d Document) Matches(f Filter) bool {
	for path, want := range f {
		got, ok := d.Lookup(path)
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can keep or mutate results without
// aliasing the store's in-memory state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Document:
		return map[string]any(t.Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// valuesEqual compares a stored value against an expected one. Numbers
// compare by value regardless of Go type: stored values are float64 after a
// JSON round-trip while in-process callers pass untyped ints.
func valuesEqual(got, want any) bool {
	gf, gok := asFloat(got)
	wf, wok := asFloat(want)
	if gok && wok {
		return gf == wf
	}
	return reflect.DeepEqual(got, want)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}
