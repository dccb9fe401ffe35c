package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// contentGenerator is the part of llms.Model this package uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OpenAI calls chat completions through langchaingo.
type OpenAI struct {
	model       contentGenerator
	maxTokens   int
	temperature float64
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(s Settings) (*OpenAI, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai API key required")
	}
	opts := []openai.Option{openai.WithToken(s.APIKey)}
	if s.Model != "" {
		opts = append(opts, openai.WithModel(s.Model))
	}
	if s.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(s.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return newOpenAIWith(m, s), nil
}

func newOpenAIWith(m contentGenerator, s Settings) *OpenAI {
	maxTokens := s.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAI{model: m, maxTokens: maxTokens, temperature: s.Temperature}
}

// Call sends the system and user messages and returns the first choice.
func (o *OpenAI) Call(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}
	resp, err := o.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(o.maxTokens),
		llms.WithTemperature(o.temperature),
	)
	if err != nil {
		if isTransport(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("chat completion request failed: %w", err)
		}
		return "", &ProviderError{Backend: "openai", Message: err.Error()}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
