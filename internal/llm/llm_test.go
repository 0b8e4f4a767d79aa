package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joestump/templatesmith/internal/config"
)

func testConfig(provider, baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Provider = provider
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.Model = "test-model"
	cfg.LLM.MaxTokens = 128
	return cfg
}

func TestNew(t *testing.T) {
	gen, err := New(testConfig("", ""))
	if err != nil || gen != nil {
		t.Errorf("New(\"\") = %v, %v; want nil, nil", gen, err)
	}

	if _, err := New(testConfig("cohere", "")); err == nil {
		t.Error("New(cohere) = nil error, want unsupported provider")
	}

	for _, p := range []string{"anthropic", "openai", "openai-compatible"} {
		gen, err := New(testConfig(p, ""))
		if err != nil || gen == nil {
			t.Errorf("New(%q) = %v, %v; want generator", p, gen, err)
		}
	}

	cfg := testConfig("gemini", "")
	cfg.LLM.APIKey = ""
	if _, err := New(cfg); err == nil {
		t.Error("New(gemini) without key = nil error, want error")
	}
}

func TestAnthropic_Generate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"<p>"},{"type":"text","text":"{{ x }}</p>"}]}`))
	}))
	defer srv.Close()

	gen := newAnthropicGenerator(testConfig("anthropic", srv.URL))
	out, err := gen.Generate(context.Background(), Prompt{System: "sys", User: "make it"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "<p>{{ x }}</p>" {
		t.Errorf("out = %q", out)
	}
	if got.System != "sys" || got.Model != "test-model" || got.MaxTokens != 128 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "make it" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestAnthropic_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, 529)
	}))
	defer srv.Close()

	gen := newAnthropicGenerator(testConfig("anthropic", srv.URL))
	_, err := gen.Generate(context.Background(), Prompt{User: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 529 {
		t.Fatalf("err = %v, want StatusError 529", err)
	}
	if !Retryable(err) {
		t.Error("529 should be retryable")
	}
}

func TestAnthropic_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	gen := newAnthropicGenerator(testConfig("anthropic", srv.URL))
	_, err := gen.Generate(context.Background(), Prompt{User: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "<h1>{{ title }}</h1>"}}]
		}`))
	}))
	defer srv.Close()

	gen := newOpenAIGenerator(testConfig("openai", srv.URL+"/v1"))
	out, err := gen.Generate(context.Background(), Prompt{System: "sys", User: "make it"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "<h1>{{ title }}</h1>" {
		t.Errorf("out = %q", out)
	}
	if got["model"] != "test-model" {
		t.Errorf("model = %v", got["model"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("len(messages) = %d, want 2", len(msgs))
	}
}

func TestOpenAI_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	gen := newOpenAIGenerator(testConfig("openai", srv.URL+"/v1"))
	_, err := gen.Generate(context.Background(), Prompt{User: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if code, ok := statusCode(err); !ok || code != http.StatusBadRequest {
		t.Errorf("statusCode = %d, %v; want 400, true", code, ok)
	}
	if Retryable(err) {
		t.Error("400 should not be retryable")
	}
}

func TestGemini_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Errorf("path = %q, want .../models/test-model:generateContent", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("x-goog-api-key = %q", r.Header.Get("x-goog-api-key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "<ul>"}, {"text": "</ul>"}]}}]}`))
	}))
	defer srv.Close()

	gen, err := newGeminiGenerator(context.Background(), testConfig("gemini", srv.URL))
	if err != nil {
		t.Fatalf("newGeminiGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), Prompt{System: "sys", User: "make a list"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "<ul></ul>" {
		t.Errorf("out = %q, want <ul></ul>", out)
	}

	body, _ := json.Marshal(got)
	for _, want := range []string{"make a list", `"systemInstruction"`, `"maxOutputTokens":128`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("request body %s missing %s", body, want)
		}
	}
}

func TestGemini_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	gen, err := newGeminiGenerator(context.Background(), testConfig("gemini", srv.URL))
	if err != nil {
		t.Fatalf("newGeminiGenerator: %v", err)
	}
	_, err = gen.Generate(context.Background(), Prompt{User: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestGemini_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "bad model", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	gen, err := newGeminiGenerator(context.Background(), testConfig("gemini", srv.URL))
	if err != nil {
		t.Fatalf("newGeminiGenerator: %v", err)
	}
	_, err = gen.Generate(context.Background(), Prompt{User: "x"})
	if code, ok := statusCode(err); !ok || code != http.StatusBadRequest {
		t.Errorf("statusCode = %d, %v; want 400, true (err = %v)", code, ok, err)
	}
	if Retryable(err) {
		t.Error("400 should not be retryable")
	}
}
