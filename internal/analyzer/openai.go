package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsinsight/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultMaxTokens int64 = 1000

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	// Referer and Title are sent as attribution headers, which OpenRouter uses
	// to identify the calling app.
	Referer string
	Title   string
}

// OpenAIAnalyzer talks to any OpenAI-compatible chat completions endpoint.
type OpenAIAnalyzer struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("model is empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAIAnalyzer{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (a *OpenAIAnalyzer) Model() string {
	return a.model
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, input Input) (domain.Analysis, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(input)),
		},
		MaxTokens: openai.Int(a.maxTokens),
	})
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("do request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return domain.FallbackAnalysis(ReasonEmptyReply), nil
	}

	return ParseReply(resp.Choices[0].Message.Content), nil
}
