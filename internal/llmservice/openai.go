package llmservice

import (
	"context"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"tax-rag/internal/config"
	"tax-rag/internal/models"
)

// OpenAIClient uses the go-openai SDK directly
type OpenAIClient struct {
	client  *goopenai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	clientCfg := goopenai.DefaultConfig(cfg.Key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:  goopenai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, systemRole, userMessage string, jsonMode bool) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemRole},
			{Role: goopenai.ChatMessageRoleUser, Content: userMessage},
		},
	}
	if jsonMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return c.create(ctx, req)
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []models.Message) (string, error) {
	req := goopenai.ChatCompletionRequest{Model: c.model}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return c.create(ctx, req)
}

func (c *OpenAIClient) create(ctx context.Context, req goopenai.ChatCompletionRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
