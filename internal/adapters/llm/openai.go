package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cyberscope/cyberscope/internal/core/ports"
)

const defaultModel = "gpt-4o-mini"

// OpenAIClient implements ports.ModelClient on top of the OpenAI chat
// completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key. Returns nil when
// the key is empty so callers can treat the model backend as disabled.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	if apiKey == "" {
		return nil
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
}

// Complete sends the prompt as a single user message and requests a JSON
// object response.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (ports.ModelResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return ports.ModelResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return ports.ModelResponse{}, errors.New("completion returned no choices")
	}
	return ports.ModelResponse{
		Content:     resp.Choices[0].Message.Content,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}
