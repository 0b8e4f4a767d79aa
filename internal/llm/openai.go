package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/joestump/templatesmith/internal/config"
)

const defaultOpenAIModel = "gpt-4o-mini"

type openaiGenerator struct {
	client    openai.Client
	model     string
	maxTokens int
}

// newOpenAIGenerator also serves OpenAI-compatible servers; their base URL must
// include the API version path, e.g. http://localhost:11434/v1.
func newOpenAIGenerator(cfg *config.Config) *openaiGenerator {
	model := cfg.LLM.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.LLM.APIKey),
		// Retries are owned by the Retrying wrapper.
		option.WithMaxRetries(0),
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.LLM.BaseURL, "/")+"/"))
	}
	return &openaiGenerator{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: cfg.LLM.MaxTokens,
	}
}

func (o *openaiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: messages,
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIStatusCode(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
