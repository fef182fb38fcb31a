// Package reasoning wraps the hosted language models used for schema
// inference, tax-form field recovery and document conversion.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/config"
)

// TextModel answers a plain-text prompt.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentModel additionally accepts an attached document.
type DocumentModel interface {
	TextModel
	GenerateWithDocument(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
}

// ErrNotConfigured is returned by New when the backend is "none".
var ErrNotConfigured = errors.New("reasoning backend not configured")

// New builds the configured backend.
func New(ctx context.Context, cfg config.ReasoningConfig) (TextModel, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		return NewGemini(ctx, cfg.GeminiModel, cfg.CallTimeout)
	case config.BackendOpenAI:
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.CallTimeout), nil
	case config.BackendNone, "":
		return nil, ErrNotConfigured
	}
	return nil, fmt.Errorf("reasoning.New: unknown backend %q", cfg.Backend)
}

// CleanJSON strips Markdown code fences that models wrap around JSON.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractObject returns the text between the first '{' and the last '}'.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
