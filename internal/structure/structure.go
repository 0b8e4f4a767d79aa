// Package structure summarizes the shape of a JSON document as a flat list of
// field paths and types. The summary grounds generation prompts in the data
// the template will be rendered against.
package structure

import (
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
)

// RootLabel names the document root when a scalar or array sits at the top level.
const RootLabel = "$"

// Descriptor is the ordered list of shape lines produced by Analyze.
type Descriptor []string

// String joins the descriptor lines with newlines.
func (d Descriptor) String() string {
	return strings.Join(d, "\n")
}

// Analyze walks raw JSON depth-first and returns its structure descriptor.
// Object keys are visited in document order. Only the first element of an
// array is inspected; siblings are assumed to share its shape.
//
// Analyze never fails: malformed or empty input yields an empty descriptor.
func Analyze(data []byte) Descriptor {
	value, kind, _, err := jsonparser.Get(data)
	if err != nil {
		return Descriptor{}
	}
	a := &analyzer{lines: Descriptor{}}
	a.walk(value, kind, "")
	return a.lines
}

type analyzer struct {
	lines Descriptor
}

func (a *analyzer) walk(value []byte, kind jsonparser.ValueType, path string) {
	switch kind {
	case jsonparser.Object:
		// ObjectEach hands over keys already unescaped.
		_ = jsonparser.ObjectEach(value, func(key, v []byte, k jsonparser.ValueType, _ int) error {
			a.walk(v, k, childPath(path, string(key)))
			return nil
		})
	case jsonparser.Array:
		a.array(value, label(path))
	default:
		name := typeName(kind)
		if name == "" {
			return
		}
		a.lines = append(a.lines, fmt.Sprintf("%s: %s", label(path), name))
	}
}

func (a *analyzer) array(value []byte, path string) {
	var (
		count     int
		first     []byte
		firstKind jsonparser.ValueType
	)
	_, _ = jsonparser.ArrayEach(value, func(v []byte, k jsonparser.ValueType, _ int, err error) {
		if err != nil {
			return
		}
		if count == 0 {
			first, firstKind = v, k
		}
		count++
	})
	if count == 0 {
		return
	}

	if firstKind == jsonparser.Object || firstKind == jsonparser.Array {
		a.lines = append(a.lines, fmt.Sprintf("%s is an array of object with %d items", path, count))
		a.walk(first, firstKind, path+"[0]")
		return
	}
	a.lines = append(a.lines, fmt.Sprintf("%s is an array of %s with %d items", path, typeName(firstKind), count))
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func label(path string) string {
	if path == "" {
		return RootLabel
	}
	return path
}

func typeName(kind jsonparser.ValueType) string {
	switch kind {
	case jsonparser.String:
		return "string"
	case jsonparser.Number:
		return "number"
	case jsonparser.Boolean:
		return "boolean"
	case jsonparser.Null:
		return "null"
	default:
		return ""
	}
}
