// Package convert turns documents into text through a remote reasoning
// service, retrying connection-level failures.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/reasoning"
	"github.com/dvloznov/finance-ingest/internal/retry"
)

const prompt = `Convert this document to plain text. Keep every table row on its own line with columns separated by two spaces.
Keep dates, amounts and signs exactly as printed. Do not summarise, translate or add commentary.`

// ErrEmptyDocument is returned for zero-length input.
var ErrEmptyDocument = errors.New("empty document")

// Converter sends PDFs to a document model.
type Converter struct {
	Model  reasoning.DocumentModel
	Policy retry.Policy
}

func New(model reasoning.DocumentModel, policy retry.Policy) *Converter {
	return &Converter{Model: model, Policy: policy}
}

// ExtractText converts a PDF. It satisfies the text extractor interfaces of
// the PDF parser and the tax-form tiers.
func (c *Converter) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	return c.Convert(ctx, "application/pdf", pdf)
}

// Convert converts data of the given MIME type.
func (c *Converter) Convert(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	if c.Model == nil {
		return "", reasoning.ErrNotConfigured
	}

	var text string
	err := retry.Do(ctx, "convert", c.Policy, func(ctx context.Context) error {
		out, err := c.Model.GenerateWithDocument(ctx, prompt, mimeType, data)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Convert: %w", err)
	}

	text = strings.TrimSpace(reasoning.CleanJSON(text))
	log := logger.FromContext(ctx)
	log.Debug().Int("bytes", len(data)).Int("chars", len(text)).Msg("document converted")
	return text, nil
}

// TextExtractor is anything that reads text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// Chain tries extractors in order and returns the first non-blank text.
// Errors are reported only when every extractor failed or came back empty.
type Chain []TextExtractor

func (c Chain) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	var errs []error
	for _, e := range c {
		if e == nil {
			continue
		}
		text, err := e.ExtractText(ctx, pdf)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("text extractor failed, trying next")
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("Chain: no extractor produced text: %w", errors.Join(errs...))
	}
	return "", nil
}
