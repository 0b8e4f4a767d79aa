package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joestump/templatesmith/internal/api"
	"github.com/joestump/templatesmith/internal/generate"
	"github.com/joestump/templatesmith/internal/llm"
	"github.com/joestump/templatesmith/internal/store"
	"github.com/joestump/templatesmith/internal/testutil"
)

// fakeGenerator replies with canned outputs in order.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.calls > len(f.replies) {
		return "", fmt.Errorf("unexpected call %d", f.calls)
	}
	return f.replies[f.calls-1], nil
}

// testEnv holds the router and the history store behind it.
type testEnv struct {
	Router  http.Handler
	Gen     *fakeGenerator
	History *store.GenerationStore
}

// newTestEnv wires the API router with a fake generator and an in-memory
// SQLite history store.
func newTestEnv(t *testing.T, replies ...string) *testEnv {
	t.Helper()
	gen := &fakeGenerator{replies: replies}
	env := newTestEnvWith(t, gen, generate.Config{RequireSampleJSON: true, DummyData: true})
	env.Gen = gen
	return env
}

// newTestEnvWith is newTestEnv for a caller-supplied generator and pipeline config.
func newTestEnvWith(t *testing.T, gen llm.Generator, cfg generate.Config) *testEnv {
	t.Helper()
	prompts, err := generate.LoadPrompts("")
	require.NoError(t, err)

	hist := store.NewGenerationStore(testutil.NewTestDB(t))
	router := api.NewAPIRouter(api.Deps{
		Pipeline:   generate.NewPipeline(gen, prompts, cfg, nil),
		History:    hist,
		Provider:   "openai",
		Credential: true,
	})
	return &testEnv{Router: router, History: hist}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), "body: %s", rec.Body.String())
	return m
}
