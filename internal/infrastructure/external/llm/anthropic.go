package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicModel   = "claude-3-haiku-20240307"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 1000
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// anthropicGenerator calls the Messages API.
type anthropicGenerator struct {
	baseURL string
	hc      *http.Client
}

func (g *anthropicGenerator) Provider() feedback.Provider { return feedback.ProviderAnthropic }

func (g *anthropicGenerator) DefaultModel() string { return DefaultAnthropicModel }

func (g *anthropicGenerator) Generate(ctx context.Context, prompt, model, apiKey string) (string, error) {
	req := anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, g.hc, "anthropic", strings.TrimRight(g.baseURL, "/")+"/v1/messages", headers, req, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" || c.Type == "" {
			b.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", shared.ErrProviderEmpty
	}
	return text, nil
}
