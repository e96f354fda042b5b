package openai

import (
	"context"
	"fmt"

	oai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

// Client synthesizes templates through the OpenAI chat completions API.
type Client struct {
	client *oai.Client
	model  string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithConfig(oai.DefaultConfig(apiKey), model)
}

// NewClientWithConfig allows a custom base URL, used against test servers.
func NewClientWithConfig(cfg oai.ClientConfig, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: oai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: c.model,
		Messages: []oai.ChatCompletionMessage{
			{
				Role:    oai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    oai.ChatMessageRoleUser,
				Content: user,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response content")
	}
	return resp.Choices[0].Message.Content, nil
}
