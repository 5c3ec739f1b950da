package llmservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"tax-rag/internal/config"
	"tax-rag/internal/models"
)

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
	deadline bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	if f.reply == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestLangchainClient_CompleteJSONMode(t *testing.T) {
	fake := &fakeModel{reply: `{"query":"tarif pajak","num_results":2}`}
	client := NewLangchainClientWithModel(fake, time.Minute)

	got, err := client.Complete(context.Background(), "role", "question", true)
	require.NoError(t, err)

	assert.Equal(t, `{"query":"tarif pajak","num_results":2}`, got)
	assert.True(t, fake.options.JSONMode)
	assert.True(t, fake.deadline)
	require.Len(t, fake.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, "role", textOf(t, fake.messages[0]))
	assert.Equal(t, schema.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, "question", textOf(t, fake.messages[1]))
}

func TestLangchainClient_CompleteFreeText(t *testing.T) {
	fake := &fakeModel{reply: "Tarif pajak adalah 10%."}
	client := NewLangchainClientWithModel(fake, 0)

	got, err := client.Complete(context.Background(), "role", "question", false)
	require.NoError(t, err)
	assert.Equal(t, "Tarif pajak adalah 10%.", got)
	assert.False(t, fake.options.JSONMode)
	assert.False(t, fake.deadline)
}

func TestLangchainClient_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewLangchainClientWithModel(&fakeModel{err: boom}, 0).Complete(context.Background(), "r", "q", false)
	assert.ErrorIs(t, err, boom)

	_, err = NewLangchainClientWithModel(&fakeModel{}, 0).Complete(context.Background(), "r", "q", false)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLangchainClient_ChatMapsRoles(t *testing.T) {
	fake := &fakeModel{reply: "Halo"}
	client := NewLangchainClientWithModel(fake, 0)

	_, err := client.Chat(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: models.AssistantRole},
		{Role: models.RoleUser, Content: "hai"},
		{Role: models.RoleAssistant, Content: "halo"},
		{Role: models.RoleUser, Content: "apa kabar"},
	})
	require.NoError(t, err)

	require.Len(t, fake.messages, 4)
	assert.Equal(t, schema.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, fake.messages[2].Role)
	assert.Equal(t, "apa kabar", textOf(t, fake.messages[3]))
}

func newChatServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
}

func TestOpenAIClient_CompleteJSONMode(t *testing.T) {
	var captured map[string]any
	srv := newChatServer(t, `{"query":"pajak","num_results":3}`, &captured)
	defer srv.Close()

	client := NewOpenAIClient(config.LLMConfig{Key: "sk-test", BaseURL: srv.URL, Model: "gpt-3.5-turbo", Timeout: 5 * time.Second})

	got, err := client.Complete(context.Background(), "role", "question", true)
	require.NoError(t, err)
	assert.Equal(t, `{"query":"pajak","num_results":3}`, got)

	assert.Equal(t, "gpt-3.5-turbo", captured["model"])
	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "question", messages[1].(map[string]any)["content"])
}

func TestOpenAIClient_ChatWithoutResponseFormat(t *testing.T) {
	var captured map[string]any
	srv := newChatServer(t, "Baik", &captured)
	defer srv.Close()

	client := NewOpenAIClient(config.LLMConfig{Key: "sk-test", BaseURL: srv.URL, Model: "gpt-3.5-turbo"})

	got, err := client.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "apa kabar"}})
	require.NoError(t, err)
	assert.Equal(t, "Baik", got)
	assert.NotContains(t, captured, "response_format")
}

func TestNew(t *testing.T) {
	m, err := New(config.LLMConfig{Provider: config.ProviderOpenAI, Key: "sk"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, m)

	m, err = New(config.LLMConfig{Provider: config.ProviderLangchain, Key: "sk", Model: "gpt-3.5-turbo"})
	require.NoError(t, err)
	assert.IsType(t, &LangchainClient{}, m)

	_, err = New(config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}
