// Package config loads and resolves pipeline configuration documents.
// A document is a nested YAML tree whose string leaves may reference other
// paths of the same tree with ${path} or ${path:default}. Resolution replaces
// every reference with the referenced, already resolved value, rejects
// circular references, and enforces mandatory settings marked with "???".
package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// MandatoryMarker marks a setting that must be provided before the
// configuration can be used.
const MandatoryMarker = "???"

// UnsetValue is the type of Unset.
type UnsetValue struct{}

// String renders the sentinel for logs and error messages.
func (UnsetValue) String() string { return "<unset>" }

// Unset is returned by Lookup for paths that hold no value. It is distinct
// from an explicit YAML null (nil) and from false.
var Unset = UnsetValue{}

// IsUnset reports whether v is the Unset sentinel.
func IsUnset(v any) bool {
	_, ok := v.(UnsetValue)
	return ok
}

// Document is a configuration tree: nested map[string]any and []any values
// with scalar leaves, as decoded from YAML.
type Document map[string]any

// Lookup returns the value at a dotted path. Numeric segments index into
// lists. Missing paths return Unset.
func (d Document) Lookup(path string) any {
	var cur any = map[string]any(d)
	for _, seg := range splitPath(path) {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return Unset
			}
			cur = v
		case Document:
			v, ok := node[seg]
			if !ok {
				return Unset
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return Unset
			}
			cur = node[idx]
		default:
			return Unset
		}
	}
	return cur
}

// Set stores value at a dotted path, creating intermediate maps as needed.
// Numeric segments address existing list elements.
func (d Document) Set(path string, value any) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var cur any = map[string]any(d)
	for i, seg := range segs {
		last := i == len(segs)-1
		switch node := cur.(type) {
		case map[string]any:
			if last {
				node[seg] = value
				return nil
			}
			next, ok := node[seg]
			if !ok || !isContainer(next) {
				next = map[string]any{}
				node[seg] = next
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("%w: %q: index %q out of range", ErrInvalidPath, path, seg)
			}
			if last {
				node[idx] = value
				return nil
			}
			if !isContainer(node[idx]) {
				node[idx] = map[string]any{}
			}
			cur = node[idx]
		}
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document(deepCopy(map[string]any(d)).(map[string]any))
}

// Merge returns a deep copy of base with override applied on top. Maps are
// merged key by key; every other value, lists included, is replaced.
func Merge(base, override Document) Document {
	out := base.Clone()
	mergeInto(out, override.Clone())
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}

// Leaves walks the document and calls fn for every non-container value with
// its dotted path. Map keys are visited in sorted order.
func (d Document) Leaves(fn func(path string, value any)) {
	walk("", map[string]any(d), fn)
}

func walk(prefix string, v any, fn func(string, any)) {
	switch node := v.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(node)) {
			walk(joinPath(prefix, k), node[k], fn)
		}
	case []any:
		for i, e := range node {
			walk(joinPath(prefix, strconv.Itoa(i)), e, fn)
		}
	default:
		fn(prefix, v)
	}
}

func deepCopy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, e := range node {
			out[k] = deepCopy(e)
		}
		return out
	case Document:
		return deepCopy(map[string]any(node))
	case []any:
		out := make([]any, len(node))
		for i, e := range node {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func joinPath(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// isUnder reports whether path equals prefix or lies beneath it.
func isUnder(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+".")
}
