package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	geminiMaxOutputTokens = 1000
)

// geminiGenerator uses the genai SDK. A client is built per call because the
// credential comes with the request.
type geminiGenerator struct {
	baseURL string
	hc      *http.Client
}

func (g *geminiGenerator) Provider() feedback.Provider { return feedback.ProviderGemini }

func (g *geminiGenerator) DefaultModel() string { return DefaultGeminiModel }

func (g *geminiGenerator) Generate(ctx context.Context, prompt, model, apiKey string) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.hc,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: geminiMaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w: %w", shared.ErrExternalService, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", shared.ErrProviderEmpty
	}
	return text, nil
}
