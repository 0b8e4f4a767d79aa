package generate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/templatesmith/internal/llm"
)

// scriptedGenerator replies with canned outputs in order and records prompts.
type scriptedGenerator struct {
	replies []string
	errs    []error
	prompts []llm.Prompt
}

func (g *scriptedGenerator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	i := len(g.prompts)
	g.prompts = append(g.prompts, p)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i+1)
}

func newTestPipeline(t *testing.T, gen llm.Generator, cfg Config) *Pipeline {
	t.Helper()
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	return NewPipeline(gen, prompts, cfg, nil)
}

var defaultCfg = Config{RequireSampleJSON: true, DummyData: true}

func TestRun_LowDetailSingleCall(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"```html\n<p>{{ name }}</p>\n```"}}
	p := newTestPipeline(t, gen, defaultCfg)

	res, err := p.Run(context.Background(), Request{
		UserPrompt:  "a greeting card",
		Variables:   []string{"name"},
		SampleJSON:  json.RawMessage(`{"name": "x"}`),
		DetailLevel: "low",
	})
	require.NoError(t, err)

	assert.Equal(t, "<p>{{ name }}</p>", res.Template)
	assert.Equal(t, DetailLow, res.Options.Detail)
	assert.Equal(t, ModeCreate, res.Options.Mode)
	assert.False(t, res.Options.DummyData)
	assert.Nil(t, res.DummyJSON)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0].User, "a greeting card")
	assert.Contains(t, gen.prompts[0].User, "[name]")
	assert.Contains(t, gen.prompts[0].User, "name: string")
}

func TestRun_HighDetailValidatesAndSynthesizes(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"<div>{{ title }}</div>",
		"```jinja\n<div>\n  {{ title }}\n</div>\n```",
		"```json\n{\"title\": \"Quarterly report\", \"items\": [{\"id\": 7}]}\n```",
	}}
	p := newTestPipeline(t, gen, defaultCfg)

	res, err := p.Run(context.Background(), Request{
		UserPrompt: "report",
		Variables:  []string{"title", "items"},
		SampleJSON: json.RawMessage(`{"title": "t", "items": [{"id": 1}]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, DetailHigh, res.Options.Detail)
	assert.Equal(t, "<div>  {{ title }}</div>", res.Template)
	require.Len(t, gen.prompts, 3)
	assert.Contains(t, gen.prompts[1].User, "<div>{{ title }}</div>", "validation pass sees the draft")
	assert.Contains(t, gen.prompts[2].User, "items[0].id: number")

	raw, ok := res.DummyJSON.(json.RawMessage)
	require.True(t, ok, "DummyJSON = %T, want json.RawMessage", res.DummyJSON)
	assert.JSONEq(t, `{"title": "Quarterly report", "items": [{"id": 7}]}`, string(raw))
}

func TestRun_DummyDataKeepsSchemaJSONField(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`{"template": "<p>{{ name }}</p>"}`,
		"<p>{{ name }}</p>",
		`{"json": {"a": 2}, "name": "Alice"}`,
	}}
	p := newTestPipeline(t, gen, defaultCfg)

	res, err := p.Run(context.Background(), Request{
		UserPrompt: "x",
		Variables:  []string{"json", "name"},
		SampleJSON: json.RawMessage(`{"json": {"a": 1}, "name": "x"}`),
	})
	require.NoError(t, err)

	raw, ok := res.DummyJSON.(json.RawMessage)
	require.True(t, ok, "DummyJSON = %T, want json.RawMessage", res.DummyJSON)
	assert.JSONEq(t, `{"json": {"a": 2}, "name": "Alice"}`, string(raw))
	assert.Equal(t, "<p>{{ name }}</p>", res.Template)
}

func TestRun_DummyDataFallsBackToString(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"<p/>", "<p/>", "sorry, here is some data: {oops"}}
	p := newTestPipeline(t, gen, defaultCfg)

	res, err := p.Run(context.Background(), Request{
		UserPrompt:  "x",
		Variables:   []string{"a"},
		SampleJSON:  json.RawMessage(`{"a": 1}`),
		DetailLevel: "medium",
	})
	require.NoError(t, err)
	assert.Equal(t, "sorry, here is some data: {oops", res.DummyJSON)
}

func TestRun_DummyDataDisabled(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"<p/>", "<p/>"}}
	p := newTestPipeline(t, gen, Config{RequireSampleJSON: true})

	res, err := p.Run(context.Background(), Request{
		Variables:   []string{"a"},
		SampleJSON:  json.RawMessage(`{"a": 1}`),
		DetailLevel: "high",
	})
	require.NoError(t, err)
	assert.Nil(t, res.DummyJSON)
	assert.Len(t, gen.prompts, 2)
}

func TestRun_ModifyDecodesExistingTemplate(t *testing.T) {
	existing := "<h1>{{ heading }}</h1>\n<p>héllo</p>"
	gen := &scriptedGenerator{replies: []string{`{"template": "<h1 class=\"big\">{{ heading }}</h1>"}`}}
	p := newTestPipeline(t, gen, defaultCfg)

	res, err := p.Run(context.Background(), Request{
		UserPrompt:       "make the heading big",
		Variables:        []string{"heading"},
		ExistingTemplate: base64.StdEncoding.EncodeToString([]byte(existing)),
		SampleJSON:       json.RawMessage(`{"heading": "h"}`),
		DetailLevel:      "LOW",
	})
	require.NoError(t, err)

	assert.Equal(t, ModeModify, res.Options.Mode)
	assert.Equal(t, `<h1 class="big">{{ heading }}</h1>`, res.Template)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0].User, existing)
}

func TestRun_InvalidEncoding(t *testing.T) {
	gen := &scriptedGenerator{}
	p := newTestPipeline(t, gen, defaultCfg)

	_, err := p.Run(context.Background(), Request{
		ExistingTemplate: "not base64!!",
		SampleJSON:       json.RawMessage(`{"a": 1}`),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Equal(t, KindInvalidEncoding, KindOf(err))
	assert.Empty(t, gen.prompts)
}

func TestRun_MissingSampleJSON(t *testing.T) {
	for _, sample := range []string{"", "null", "{}", "[]"} {
		t.Run(sample, func(t *testing.T) {
			gen := &scriptedGenerator{}
			p := newTestPipeline(t, gen, defaultCfg)

			_, err := p.Run(context.Background(), Request{Variables: []string{"a"}, SampleJSON: json.RawMessage(sample)})
			assert.ErrorIs(t, err, ErrMissingInput)
			assert.Empty(t, gen.prompts)
		})
	}
}

func TestRun_SampleJSONOptional(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"<p/>", "<p/>"}}
	p := newTestPipeline(t, gen, Config{DummyData: true})

	res, err := p.Run(context.Background(), Request{UserPrompt: "x", Variables: []string{"a"}})
	require.NoError(t, err)
	assert.False(t, res.Options.DummyData, "no dummy data without a sample")
	assert.NotContains(t, gen.prompts[0].User, "JSON structure:")
}

func TestRun_GenerationFailure(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"<p/>"}, errs: []error{nil, errors.New("provider exploded")}}
	p := newTestPipeline(t, gen, defaultCfg)

	_, err := p.Run(context.Background(), Request{SampleJSON: json.RawMessage(`{"a": 1}`), DetailLevel: "medium"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailure)
	assert.Contains(t, err.Error(), "provider exploded")
	assert.Contains(t, err.Error(), "validate pass")
}

func TestRun_Timeout(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{fmt.Errorf("fake: %w", llm.ErrTimeout)}}
	p := newTestPipeline(t, gen, defaultCfg)

	_, err := p.Run(context.Background(), Request{SampleJSON: json.RawMessage(`{"a": 1}`)})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrGenerationFailure)
}

func TestRun_BudgetExpiresAcrossPasses(t *testing.T) {
	// The draft returns at once; the validation pass outlives what is left.
	calls := 0
	gen := llm.GeneratorFunc(func(ctx context.Context, p llm.Prompt) (string, error) {
		calls++
		if calls == 1 {
			return "<p/>", nil
		}
		select {
		case <-time.After(5 * time.Second):
			return "<p/>", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	cfg := defaultCfg
	cfg.Timeout = 50 * time.Millisecond
	p := newTestPipeline(t, gen, cfg)

	start := time.Now()
	_, err := p.Run(context.Background(), Request{SampleJSON: json.RawMessage(`{"a": 1}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_WithoutGenerator(t *testing.T) {
	p := newTestPipeline(t, nil, defaultCfg)

	_, err := p.Run(context.Background(), Request{ExistingTemplate: "%%%", SampleJSON: json.RawMessage(`{"a": 1}`)})
	assert.ErrorIs(t, err, ErrInvalidEncoding, "input errors win over availability")

	_, err = p.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = p.Run(context.Background(), Request{SampleJSON: json.RawMessage(`{"a": 1}`)})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDecodeTemplate_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"<p>{{ x }}</p>",
		"multi\nline\r\ntemplate",
		"unicode: 日本語 ✓ émoji 🎉",
		strings.Repeat("{% for i in items %}{{ i }}{% endfor %}", 100),
	}
	for _, in := range inputs {
		got, err := DecodeTemplate(base64.StdEncoding.EncodeToString([]byte(in)))
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestDecodeTemplate_Invalid(t *testing.T) {
	for _, in := range []string{"%%%", "abc", "aGVsbG8", base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})} {
		_, err := DecodeTemplate(in)
		assert.ErrorIs(t, err, ErrInvalidEncoding, "input %q", in)
	}
}

func TestDecodePreview(t *testing.T) {
	n, preview, err := DecodePreview(base64.StdEncoding.EncodeToString([]byte("short")))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "short", preview)

	long := strings.Repeat("é", 600)
	n, preview, err = DecodePreview(base64.StdEncoding.EncodeToString([]byte(long)))
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Equal(t, PreviewLength+3, utf8.RuneCountInString(preview))
}
