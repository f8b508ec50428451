package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// GeminiAdapter implements ports.LLMService with the Gemini API.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates a Gemini adapter. baseURL is only set in tests.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

// Name returns "gemini:<model>".
func (a *GeminiAdapter) Name() string {
	return "gemini:" + a.model
}

// Generate sends one GenerateContent request.
func (a *GeminiAdapter) Generate(ctx context.Context, creq entities.CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(creq.Temperature),
		MaxOutputTokens: int32(creq.MaxTokens),
	}
	if creq.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(creq.System, genai.RoleUser)
	}
	if creq.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(creq.Prompt, genai.RoleUser)}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("Gemini returned no text")
	}
	return text, nil
}
