package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// OpenAIAdapter implements ports.LLMService with the chat completions API.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates an OpenAI adapter. baseURL may point at any
// OpenAI-compatible endpoint; empty means api.openai.com.
func NewOpenAIAdapter(apiKey, baseURL, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Name returns "openai:<model>".
func (a *OpenAIAdapter) Name() string {
	return "openai:" + a.model
}

// Generate sends one chat completion request.
func (a *OpenAIAdapter) Generate(ctx context.Context, creq entities.CompletionRequest) (string, error) {
	var messages []openai.ChatCompletionMessage
	if creq.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: creq.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: creq.Prompt})

	req := openai.ChatCompletionRequest{
		Model:               a.model,
		Messages:            messages,
		Temperature:         creq.Temperature,
		MaxCompletionTokens: creq.MaxTokens,
	}
	if creq.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
