package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/fyrsmithlabs/memoforge/internal/config"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
)

func TestAnthropic_Call(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"contenu\":\"ok\"}"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	c, err := NewAnthropic(Settings{APIKey: "test-key", BaseURL: srv.URL, Temperature: 0.5})
	require.NoError(t, err)

	out, err := c.Call(context.Background(), "system prompt", "topic")
	require.NoError(t, err)
	assert.Equal(t, `{"contenu":"ok"}`, out)
	assert.Equal(t, "system prompt", got.System)
	assert.Equal(t, defaultAnthropicModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "topic", got.Messages[0].Content)
}

func TestAnthropic_ErrorsClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   memoerr.Code
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error","message":"slow down"}}`, memoerr.CodeProvider},
		{"server error", http.StatusInternalServerError, `oops`, memoerr.CodeProvider},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, memoerr.CodeProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewAnthropic(Settings{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = c.Call(context.Background(), "s", "u")
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.want, memoerr.CodeOf(err))
		})
	}
}

func TestAnthropic_TransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewAnthropic(Settings{APIKey: "k", BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, memoerr.CodeNetwork, memoerr.CodeOf(err))
}

func TestAnthropic_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c, err := NewAnthropic(Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic(Settings{})
	assert.Error(t, err)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages)
	resp, _ := args.Get(0).(*llms.ContentResponse)
	return resp, args.Error(1)
}

func TestOpenAI_Call(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(msgs []llms.MessageContent) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == schema.ChatMessageTypeSystem &&
			msgs[1].Role == schema.ChatMessageTypeHuman
	})).Return(&llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "réponse"}}}, nil)

	c := newOpenAIWith(gen, Settings{})
	out, err := c.Call(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, "réponse", out)
	gen.AssertExpectations(t)
}

func TestOpenAI_Errors(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, errors.New("insufficient_quota")).Once()
	gen.On("GenerateContent", mock.Anything, mock.Anything).Return(&llms.ContentResponse{}, nil).Once()

	c := newOpenAIWith(gen, Settings{})

	_, err := c.Call(context.Background(), "s", "u")
	assert.Equal(t, memoerr.CodeProvider, memoerr.CodeOf(err))

	_, err = c.Call(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type fakeGeminiModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	config *genai.GenerateContentConfig
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.config = cfg
	return f.resp, f.err
}

func TestGemini_Call(t *testing.T) {
	fake := &fakeGeminiModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(`{"contenu":"ok"}`, genai.RoleModel)}},
	}}
	g := newGeminiWith(fake, Settings{MaxTokens: 256})

	out, err := g.Call(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"contenu":"ok"}`, out)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "system", fake.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(256), fake.config.MaxOutputTokens)
}

func TestGemini_APIError(t *testing.T) {
	fake := &fakeGeminiModels{err: genai.APIError{Code: 429, Message: "quota exhausted"}}
	g := newGeminiWith(fake, Settings{})

	_, err := g.Call(context.Background(), "s", "u")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 429, pe.StatusCode)
	assert.Equal(t, memoerr.CodeProvider, memoerr.CodeOf(err))
}

func TestGemini_NoCandidates(t *testing.T) {
	g := newGeminiWith(&fakeGeminiModels{resp: &genai.GenerateContentResponse{}}, Settings{})
	_, err := g.Call(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestStatic(t *testing.T) {
	s := NewStatic(Rule{Match: "Progression", Reply: "plan"}, Rule{Match: "accroche", Reply: "hook"})

	out, err := s.Call(context.Background(), "Génère la progression", "")
	require.NoError(t, err)
	assert.Equal(t, "plan", out)

	_, err = s.Call(context.Background(), "rien", "")
	assert.Equal(t, memoerr.CodeProvider, memoerr.CodeOf(err))
}

func TestWithRateLimit(t *testing.T) {
	calls := 0
	base := ClientFunc(func(context.Context, string, string) (string, error) {
		calls++
		return "ok", nil
	})

	limited := WithRateLimit(base, rate.NewLimiter(rate.Every(time.Hour), 1))
	_, err := limited.Call(context.Background(), "s", "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Call(ctx, "s", "u")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNew_StaticProvider(t *testing.T) {
	tl := logging.NewTestLogger()
	cfg := config.LLMConfig{Provider: "static", RateLimit: 0, Burst: 1}

	c, err := New(context.Background(), cfg, tl.Logger, WithStatic(NewStatic(Rule{Match: "x", Reply: "y"})))
	require.NoError(t, err)

	out, err := c.Call(context.Background(), "x", "secret topic")
	require.NoError(t, err)
	assert.Equal(t, "y", out)
	tl.AssertLogged(t, logging.TraceLevel, "model call")
	tl.AssertNoSubstring(t, "secret topic")

	_, err = New(context.Background(), config.LLMConfig{Provider: "static", Burst: 1}, nil)
	assert.Error(t, err)
	_, err = New(context.Background(), config.LLMConfig{Provider: "nope", Burst: 1}, nil)
	assert.Error(t, err)
}
