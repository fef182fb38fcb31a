package reasoning

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini calls the Gemini API through the genai SDK. Credentials come from
// the environment (GOOGLE_API_KEY or Vertex AI settings).
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a client for model. A zero timeout leaves calls bounded
// only by ctx.
func NewGemini(ctx context.Context, model string, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, []*genai.Part{{Text: prompt}})
}

func (g *Gemini) GenerateWithDocument(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return g.generate(ctx, []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
	})
}

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return resp.Text(), nil
}
