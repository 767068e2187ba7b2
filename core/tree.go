package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const FallbackBodyKey = "body"

// ParseBody decodes a JSON response body. Bodies that are not JSON are split into
// key:value lines on the first colon so extraction still has a mapping to read.
func ParseBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]any{}
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err == nil && !decoder.More() {
		return tree
	}
	return parseKeyValueBody(string(trimmed))
}

func parseKeyValueBody(body string) map[string]any {
	out := map[string]any{}
	var loose []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			loose = append(loose, line)
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	if len(loose) > 0 {
		out[FallbackBodyKey] = strings.Join(loose, "\n")
	}
	return out
}

// Dig walks nested mappings and arrays. Path elements are strings for mapping
// keys and ints for array indexes.
func Dig(tree any, path ...any) (any, bool) {
	current := tree
	for _, element := range path {
		switch key := element.(type) {
		case string:
			values, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			next, exists := values[key]
			if !exists {
				return nil, false
			}
			current = next
		case int:
			items, ok := current.([]any)
			if !ok || key < 0 || key >= len(items) {
				return nil, false
			}
			current = items[key]
		default:
			return nil, false
		}
	}
	return current, true
}

// Present reports whether the path resolves to a non-null value.
func Present(tree any, path ...any) bool {
	value, ok := Dig(tree, path...)
	return ok && value != nil
}

// String renders the value at path as text. Missing and null values yield "".
func String(tree any, path ...any) string {
	value, ok := Dig(tree, path...)
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		if typed {
			return "true"
		}
		return "false"
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

// FirstString returns the first non-empty string among the candidate paths.
func FirstString(tree any, paths ...[]any) string {
	for _, path := range paths {
		if value := String(tree, path...); value != "" {
			return value
		}
	}
	return ""
}

func Bool(tree any, path ...any) bool {
	value, ok := Dig(tree, path...)
	if !ok {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	default:
		return false
	}
}

func Slice(tree any, path ...any) []any {
	value, ok := Dig(tree, path...)
	if !ok {
		return nil
	}
	items, _ := value.([]any)
	return items
}

func Mapping(tree any, path ...any) map[string]any {
	value, ok := Dig(tree, path...)
	if !ok {
		return nil
	}
	values, _ := value.(map[string]any)
	return values
}
