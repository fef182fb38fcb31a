package reasoning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/domain"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```", "[1]"},
		{`  {"a":1}  `, `{"a":1}`},
	}
	for _, tt := range tests {
		if got := CleanJSON(tt.in); got != tt.want {
			t.Errorf("CleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractObject(t *testing.T) {
	got, ok := ExtractObject(`Sure! Here it is: {"file_type": "holdings", "schema": {}} Hope this helps.`)
	if !ok || got != `{"file_type": "holdings", "schema": {}}` {
		t.Errorf("ExtractObject() = %q, %v", got, ok)
	}
	if _, ok := ExtractObject("no json"); ok {
		t.Error("expected no object")
	}
	if _, ok := ExtractObject("} backwards {"); ok {
		t.Error("expected no object for reversed braces")
	}
}

func TestNew_None(t *testing.T) {
	_, err := New(context.Background(), config.ReasoningConfig{Backend: config.BackendNone})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := New(context.Background(), config.ReasoningConfig{Backend: "mystery"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &openai.APIError{HTTPStatusCode: 503}), true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.IsTransient(classifyOpenAIError(tt.err)); got != tt.transient {
				t.Errorf("transient = %v, want %v", got, tt.transient)
			}
		})
	}
}
