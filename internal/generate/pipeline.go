// Package generate runs the template generation pipeline: decode the existing
// template, summarize the sample JSON, draft, optionally validate, sanitize and
// optionally synthesize dummy data. Every step is sequential and any failure
// aborts the run.
package generate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/joestump/templatesmith/internal/llm"
	"github.com/joestump/templatesmith/internal/sanitize"
	"github.com/joestump/templatesmith/internal/structure"
)

// PreviewLength is the number of characters DecodePreview keeps.
const PreviewLength = 500

// Request carries the caller's inputs for one run.
type Request struct {
	UserPrompt       string
	Variables        []string
	ExistingTemplate string // base64; empty means create a new template
	SampleJSON       json.RawMessage
	DetailLevel      string
}

// Result is the outcome of a successful run.
type Result struct {
	Template  string
	Options   Options
	Variables []string
	// DummyJSON is a json.RawMessage when the synthesized data parsed as JSON,
	// the sanitized text otherwise, and nil when no data was requested.
	DummyJSON any
}

// Config toggles the optional parts of the pipeline.
type Config struct {
	RequireSampleJSON bool
	DummyData         bool
	// Timeout bounds a whole run across every pass and retry. Zero means no
	// budget beyond the caller's context.
	Timeout time.Duration
}

// ErrUnavailable is returned by Run for valid requests when the pipeline has
// no generator.
var ErrUnavailable = errors.New("template generation is not configured")

// Pipeline sequences the generator calls for a request.
type Pipeline struct {
	gen     llm.Generator
	prompts *Prompts
	cfg     Config
	logger  *zap.Logger
}

// NewPipeline creates a Pipeline. gen is usually an *llm.Retrying. A nil gen
// gives a pipeline that still validates requests but cannot generate.
func NewPipeline(gen llm.Generator, prompts *Prompts, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{gen: gen, prompts: prompts, cfg: cfg, logger: logger}
}

// Plan validates req and resolves the options a run would use, without
// calling the generator. It returns the decoded existing template.
func (p *Pipeline) Plan(req Request) (Options, string, error) {
	opts := Options{Mode: ModeCreate, Detail: ParseDetailLevel(req.DetailLevel)}

	var existing string
	if req.ExistingTemplate != "" {
		decoded, err := DecodeTemplate(req.ExistingTemplate)
		if err != nil {
			return opts, "", err
		}
		existing = decoded
		opts.Mode = ModeModify
	}

	hasSample := !isEmptyJSON(req.SampleJSON)
	if p.cfg.RequireSampleJSON && !hasSample {
		return opts, "", missingInput("Sample JSON data is required.")
	}
	opts.DummyData = p.cfg.DummyData && hasSample && opts.Detail.Validates()

	return opts, existing, nil
}

// Run executes the pipeline for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	opts, existing, err := p.Plan(req)
	if err != nil {
		return nil, err
	}
	if p.gen == nil {
		return nil, ErrUnavailable
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	data := PromptData{
		UserPrompt:       req.UserPrompt,
		Variables:        req.Variables,
		ExistingTemplate: existing,
		DetailLevel:      opts.Detail,
	}
	if !isEmptyJSON(req.SampleJSON) {
		data.SampleJSON = string(req.SampleJSON)
		data.Structure = structure.Analyze(req.SampleJSON).String()
	}

	log := p.logger.With(
		zap.String("mode", string(opts.Mode)),
		zap.String("detail_level", string(opts.Detail)),
		zap.Bool("dummy_data", opts.DummyData),
	)

	draftPass := PassCreate
	if opts.Mode == ModeModify {
		draftPass = PassModify
	}
	text, err := p.call(ctx, log, draftPass, data)
	if err != nil {
		return nil, err
	}

	if opts.Detail.Validates() {
		data.Draft = text
		text, err = p.call(ctx, log, PassValidate, data)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{
		Template:  sanitize.Sanitize(sanitize.Envelope(text, sanitize.TemplateKey), sanitize.TemplateKey),
		Options:   opts,
		Variables: req.Variables,
	}

	if opts.DummyData {
		raw, err := p.call(ctx, log, PassDummy, data)
		if err != nil {
			return nil, err
		}
		res.DummyJSON = parseDummy(sanitize.Sanitize(sanitize.Envelope(raw, sanitize.JSONKey), sanitize.JSONKey))
	}

	return res, nil
}

func (p *Pipeline) call(ctx context.Context, log *zap.Logger, pass Pass, data PromptData) (string, error) {
	prompt, err := p.prompts.Render(pass, data)
	if err != nil {
		return "", generationFailure(fmt.Sprintf("%s prompt", pass), err)
	}

	start := time.Now()
	out, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		log.Error("generation pass failed", zap.String("pass", string(pass)), zap.Error(err))
		if errors.Is(err, llm.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", timeout(fmt.Sprintf("%s pass", pass), err)
		}
		return "", generationFailure(fmt.Sprintf("%s pass", pass), err)
	}
	log.Debug("generation pass complete",
		zap.String("pass", string(pass)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("chars", len(out)),
	)
	return out, nil
}

// DecodeTemplate decodes a standard base64 template that must hold UTF-8 text.
func DecodeTemplate(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", invalidEncoding(err)
	}
	if !utf8.Valid(b) {
		return "", invalidEncoding(errors.New("decoded template is not valid UTF-8"))
	}
	return string(b), nil
}

// DecodePreview decodes encoded and returns its length in characters and the
// first PreviewLength characters, with "..." appended when truncated.
func DecodePreview(encoded string) (int, string, error) {
	decoded, err := DecodeTemplate(encoded)
	if err != nil {
		return 0, "", err
	}
	runes := []rune(decoded)
	if len(runes) <= PreviewLength {
		return len(runes), decoded, nil
	}
	return len(runes), string(runes[:PreviewLength]) + "...", nil
}

// isEmptyJSON treats absent, null, false, zero, "" and empty containers as no sample.
func isEmptyJSON(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func parseDummy(text string) any {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	return text
}
