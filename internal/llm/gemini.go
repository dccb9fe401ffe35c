package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	models      geminiModels
	model       string
	maxTokens   int32
	temperature float32
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	if s.APIKey == "" {
		return nil, errors.New("gemini API key required")
	}
	cc := &genai.ClientConfig{APIKey: s.APIKey, Backend: genai.BackendGeminiAPI}
	if s.BaseURL != "" {
		cc.HTTPOptions.BaseURL = s.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return newGeminiWith(client.Models, s), nil
}

func newGeminiWith(models geminiModels, s Settings) *Gemini {
	g := &Gemini{
		models:      models,
		model:       s.Model,
		maxTokens:   int32(s.MaxTokens),
		temperature: float32(s.Temperature),
	}
	if g.model == "" {
		g.model = defaultGeminiModel
	}
	if g.maxTokens == 0 {
		g.maxTokens = defaultMaxTokens
	}
	return g
}

// Call sends user content with system as the system instruction.
func (g *Gemini) Call(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   g.maxTokens,
		Temperature:       genai.Ptr(g.temperature),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(user), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Backend: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", fmt.Errorf("generate content request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
