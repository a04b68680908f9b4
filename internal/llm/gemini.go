package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider generates text via the Google Gemini API.
type GeminiProvider struct {
	Model  string
	apiKey string
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider reading the key from apiKeyEnv.
func NewGeminiProvider(model, apiKeyEnv string) (*GeminiProvider, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return &GeminiProvider{Model: model}, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiProvider{Model: model, apiKey: apiKey, client: client}, nil
}

// IsConfigured checks if the API key is set.
func (g *GeminiProvider) IsConfigured() bool {
	return g.apiKey != "" && g.client != nil
}

// Generate sends a prompt to Gemini and returns the response text.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !g.IsConfigured() {
		return "", fmt.Errorf("gemini API key not configured")
	}

	model := g.client.GenerativeModel(g.Model)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty Gemini response")
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", fmt.Errorf("no text part in Gemini response")
	}
	return out, nil
}

// Close releases the underlying client.
func (g *GeminiProvider) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
