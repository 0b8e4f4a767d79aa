// Package sanitize turns raw model output into a single-line template string.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload keys used by the generation pipeline.
const (
	TemplateKey = "template"
	JSONKey     = "json"
)

// fenceMarkers are removed in this order. The bare fence must come last so the
// language-tagged forms are removed whole.
var fenceMarkers = []string{"```html", "```jinja", "```json", "```"}

// Sanitize unwraps result[payloadKey] when result is a map holding that key,
// converts the value to a string and strips code-fence markers and newlines.
// A nil result or payload yields "".
//
// Markers are removed as literal substrings, not parsed as fenced blocks, so
// triple backticks inside legitimate content are stripped too.
//
// The output never contains a fence marker or a newline, and Sanitize is
// idempotent on its own output.
func Sanitize(result any, payloadKey string) string {
	if m, ok := result.(map[string]any); ok && payloadKey != "" {
		if v, ok := m[payloadKey]; ok {
			result = v
		}
	}

	s := stringify(result)
	for {
		next := clean(s)
		if next == s {
			return s
		}
		s = next
	}
}

// Envelope decodes text as a JSON object when payloadKey is its only key, so
// model replies like {"template": "..."} are unwrapped by Sanitize. Objects
// with other keys are payloads in their own right and, like any other text,
// are returned unchanged.
func Envelope(text, payloadKey string) any {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return text
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return text
	}
	if _, ok := m[payloadKey]; !ok || len(m) != 1 {
		return text
	}
	return m
}

func clean(s string) string {
	for _, marker := range fenceMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}

// stringify renders v as text. Strings pass through and nil (a missing or null
// payload) is the empty string rather than "null", so an absent template never
// surfaces as literal text. Everything else is JSON encoded.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
