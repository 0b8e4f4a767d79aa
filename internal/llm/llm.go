// Package llm hides the text-generation providers behind a single Generator
// capability so the template pipeline can be driven by a fake in tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/joestump/templatesmith/internal/config"
)

var (
	// ErrTimeout is returned when a provider call exceeds its per-call deadline.
	ErrTimeout = errors.New("llm call timed out")

	// ErrEmptyResponse is returned when a provider answers without any text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Prompt is one instruction sent to a provider: a system role and a user turn.
type Prompt struct {
	System string
	User   string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p Prompt) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// New creates a Generator based on the config. Returns nil when the provider is
// unset, meaning generation is disabled. The returned generator makes a single
// attempt per call; wrap it with NewRetrying for timeouts and retries.
func New(cfg *config.Config) (Generator, error) {
	switch cfg.LLM.Provider {
	case "":
		return nil, nil
	case "anthropic":
		return newAnthropicGenerator(cfg), nil
	case "openai", "openai-compatible":
		return newOpenAIGenerator(cfg), nil
	case "gemini":
		return newGeminiGenerator(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.LLM.Provider)
	}
}

// Retryable reports whether err is worth another attempt. Client errors other
// than request timeout and rate limiting are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	code, ok := statusCode(err)
	if !ok {
		return true
	}
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400 && code < 500:
		return false
	default:
		return true
	}
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	if code, ok := openAIStatusCode(err); ok {
		return code, true
	}
	return geminiStatusCode(err)
}
