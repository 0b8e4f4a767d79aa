package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/joestump/templatesmith/internal/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

type geminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func newGeminiGenerator(ctx context.Context, cfg *config.Config) (*geminiGenerator, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.LLM.Model
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.LLM.BaseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(cfg.LLM.BaseURL, "/") + "/"
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiGenerator{client: client, model: model, maxTokens: cfg.LLM.MaxTokens}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	genCfg := &genai.GenerateContentConfig{}
	if g.maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.maxTokens)
	}
	if p.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text, nil
}

func geminiStatusCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}
