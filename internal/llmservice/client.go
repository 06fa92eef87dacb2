package llmservice

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"sitechat-rag/internal/config"
)

// Client is a reusable chat-completion client over an OpenAI-compatible
// API. It is constructed once at startup and shared by the responders.
type Client struct {
	llm *openai.LLM
}

func New(cfg *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

// GenerateContent runs one system+user completion and returns the trimmed
// first choice.
func (c *Client) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}
