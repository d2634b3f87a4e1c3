package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

const (
	DefaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"
	DefaultHuggingFaceModel   = "distilgpt2"
)

// HuggingFaceModels maps the selectable model names to Inference API ids.
var HuggingFaceModels = map[string]string{
	"GPT-2":       "gpt2",
	"DistilGPT-2": "distilgpt2",
	"BLOOM-560m":  "bigscience/bloom-560m",
}

type huggingFaceRequest struct {
	Inputs string `json:"inputs"`
}

type huggingFaceResponse []struct {
	GeneratedText string `json:"generated_text"`
}

type huggingFaceGenerator struct {
	baseURL string
	hc      *http.Client
}

func (g *huggingFaceGenerator) Provider() feedback.Provider { return feedback.ProviderHuggingFace }

func (g *huggingFaceGenerator) DefaultModel() string { return DefaultHuggingFaceModel }

func (g *huggingFaceGenerator) Generate(ctx context.Context, prompt, model, apiKey string) (string, error) {
	if id, ok := HuggingFaceModels[model]; ok {
		model = id
	}
	url := strings.TrimRight(g.baseURL, "/") + "/models/" + model
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var resp huggingFaceResponse
	if err := postJSON(ctx, g.hc, "huggingface", url, headers, huggingFaceRequest{Inputs: prompt}, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", shared.ErrProviderEmpty
	}
	text := strings.TrimSpace(resp[0].GeneratedText)
	if text == "" {
		return "", shared.ErrProviderEmpty
	}
	return text, nil
}
