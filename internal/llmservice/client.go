package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"tax-rag/internal/config"
	"tax-rag/internal/models"
)

// ChatModel is the completion surface the pipeline needs from an LLM
type ChatModel interface {
	// Complete sends a system role and one user message. jsonMode asks the
	// provider for a JSON object response.
	Complete(ctx context.Context, systemRole, userMessage string, jsonMode bool) (string, error)
	// Chat sends a whole conversation and returns the assistant reply
	Chat(ctx context.Context, messages []models.Message) (string, error)
}

var ErrEmptyResponse = errors.New("llm returned no choices")

// New builds the ChatModel for cfg.Provider
func New(cfg config.LLMConfig) (ChatModel, error) {
	switch cfg.Provider {
	case config.ProviderLangchain, "":
		return NewLangchainClient(cfg)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// LangchainClient talks to any OpenAI compatible endpoint through langchaingo
type LangchainClient struct {
	llm     llms.Model
	timeout time.Duration
}

func NewLangchainClient(cfg config.LLMConfig) (*LangchainClient, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init langchain openai client: %w", err)
	}
	return NewLangchainClientWithModel(llm, cfg.Timeout), nil
}

// NewLangchainClientWithModel wraps an existing llms.Model
func NewLangchainClientWithModel(llm llms.Model, timeout time.Duration) *LangchainClient {
	return &LangchainClient{llm: llm, timeout: timeout}
}

func (c *LangchainClient) Complete(ctx context.Context, systemRole, userMessage string, jsonMode bool) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemRole),
		llms.TextParts(schema.ChatMessageTypeHuman, userMessage),
	}

	var opts []llms.CallOption
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}
	return c.generate(ctx, messages, opts...)
}

func (c *LangchainClient) Chat(ctx context.Context, messages []models.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}
	return c.generate(ctx, content)
}

func (c *LangchainClient) generate(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	log.Debug().Int("messages", len(messages)).Msg("Generating content")
	res, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}

func chatMessageType(role string) schema.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return schema.ChatMessageTypeSystem
	case models.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
