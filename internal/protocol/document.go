// Package protocol holds the generation engine: validation, correction, media
// enrichment and auditing of generated protocol documents. Nothing here does I/O
// except through the Generator interface.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrMalformedResponse means the generator's output could not be decoded into a
// JSON object at all.
var ErrMalformedResponse = errors.New("generator returned a malformed document")

// Document is the provisional, loosely-typed tree decoded from a completion.
// Nothing about its shape is trusted until Validate says so.
type Document map[string]any

// UserContext carries the free-form intake answers forwarded to prompts and audits.
type UserContext map[string]any

// ParseDocument strips markdown code fences and decodes a single JSON object.
func ParseDocument(raw string) (Document, error) {
	var doc map[string]any
	if err := decodeObject(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}
	return Document(doc), nil
}

// decodeObject unmarshals the JSON object carried by a completion into v.
func decodeObject(raw string, v any) error {
	body := stripCodeFences(raw)
	if body == "" {
		return fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	err := json.Unmarshal([]byte(body), v)
	if err == nil {
		return nil
	}
	// Some completions wrap the object in prose; fall back to the outermost braces.
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// stripCodeFences removes ```json ... ``` wrapping, with or without a language tag.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline == -1 {
		return strings.TrimSpace(strings.Trim(trimmed, "`"))
	}
	content := trimmed[firstNewline+1:]
	if lastFence := strings.LastIndex(content, "```"); lastFence >= 0 {
		content = content[:lastFence]
	}
	return strings.TrimSpace(content)
}

// JSON renders the document compactly. Marshal errors cannot occur for trees
// produced by encoding/json or bson, so they are reported as an empty object.
func (d Document) JSON() string {
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Title returns the top-level title, if any.
func (d Document) Title() string {
	return stringField(d, "title")
}

var (
	mapType   = reflect.TypeOf(map[string]any(nil))
	sliceType = reflect.TypeOf([]any(nil))
)

// --- tolerant accessors ---
// Every accessor accepts anything and reports absence instead of panicking, so that
// partial or oddly-typed trees simply fail criteria.

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	case nil:
		return nil, false
	}
	// Named map types (bson.M and friends) convert without copying, so callers can
	// still mutate the underlying tree.
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || !rv.Type().ConvertibleTo(mapType) {
		return nil, false
	}
	return rv.Convert(mapType).Interface().(map[string]any), true
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || !rv.Type().ConvertibleTo(sliceType) {
		return nil, false
	}
	return rv.Convert(sliceType).Interface().([]any), true
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asText(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	}
	if n, ok := asNumber(v); ok {
		return strings.TrimSpace(fmt.Sprintf("%v", n))
	}
	return ""
}

func mapField(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	return asMap(m[key])
}

func sliceField(m map[string]any, key string) ([]any, bool) {
	if m == nil {
		return nil, false
	}
	return asSlice(m[key])
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// textField accepts strings and numbers ("8-10" and 10 are both valid reps).
func textField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return asText(m[key])
}

func numberField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	return asNumber(m[key])
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// objects returns the map elements of a slice field, skipping anything else.
// The second value reports whether every element was an object.
func objects(m map[string]any, key string) ([]map[string]any, bool) {
	items, ok := sliceField(m, key)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(items))
	all := true
	for _, it := range items {
		obj, ok := asMap(it)
		if !ok {
			all = false
			continue
		}
		out = append(out, obj)
	}
	return out, all
}
