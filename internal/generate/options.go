package generate

import "strings"

// DetailLevel controls how many passes are applied to a generated template.
type DetailLevel string

const (
	DetailLow    DetailLevel = "low"
	DetailMedium DetailLevel = "medium"
	DetailHigh   DetailLevel = "high"
)

// ParseDetailLevel normalizes s. Unknown or empty values map to DetailHigh.
func ParseDetailLevel(s string) DetailLevel {
	switch DetailLevel(strings.ToLower(strings.TrimSpace(s))) {
	case DetailLow:
		return DetailLow
	case DetailMedium:
		return DetailMedium
	default:
		return DetailHigh
	}
}

// Validates reports whether the level runs the validation pass.
func (d DetailLevel) Validates() bool {
	return d == DetailMedium || d == DetailHigh
}

// Mode says whether a template is created from scratch or an existing one modified.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeModify Mode = "modify"
)

// Options is the single description of a pipeline run. It replaces separate
// creator, modifier and dummy-data flows.
type Options struct {
	Mode      Mode
	Detail    DetailLevel
	DummyData bool
}

// Passes is the number of generator calls a run with these options makes.
func (o Options) Passes() int {
	n := 1
	if o.Detail.Validates() {
		n++
	}
	if o.DummyData {
		n++
	}
	return n
}
