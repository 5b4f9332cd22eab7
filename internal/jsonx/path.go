// Package jsonx manipulates decoded JSON documents (map[string]any trees) by
// dotted field path, e.g. "meeting.notes".
package jsonx

import (
	"errors"
	"strings"
)

var ErrNotAnObject = errors.New("path crosses a non-object value")

// Clone returns a deep copy of a decoded JSON value. Maps and slices are
// copied recursively; scalars are shared.
func Clone(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// CloneObject is Clone for the common top-level object case.
func CloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Clone(m).(map[string]any)
}

func split(path string) []string {
	return strings.Split(path, ".")
}

// Lookup returns the value at path and whether the key exists.
func Lookup(m map[string]any, path string) (any, bool) {
	parts := split(path)
	cur := m
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Set stores v at path, creating intermediate objects as needed.
func Set(m map[string]any, path string, v any) error {
	parts := split(path)
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok || next == nil {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return ErrNotAnObject
		}
		cur = child
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

// Delete removes the key at path. Missing paths are ignored; emptied parent
// objects are left in place.
func Delete(m map[string]any, path string) {
	parts := split(path)
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}
