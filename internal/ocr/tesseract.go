// Package ocr rasterizes PDF pages with pdftoppm and reads them with tesseract.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/pdftext"
)

// Tesseract implements OCR over scanned PDFs.
type Tesseract struct {
	PdftoppmPath  string
	TesseractPath string
	DPI           int
	Run           pdftext.Runner
}

// NewTesseract returns an OCR adapter using the given binaries.
func NewTesseract(pdftoppmPath, tesseractPath string) *Tesseract {
	return &Tesseract{
		PdftoppmPath:  pdftoppmPath,
		TesseractPath: tesseractPath,
		DPI:           300,
		Run:           pdftext.ExecRunner,
	}
}

// ExtractText renders every page to PNG and concatenates the recognized text
// in page order.
func (t *Tesseract) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	dir, err := os.MkdirTemp("", "finingest-ocr-")
	if err != nil {
		return "", fmt.Errorf("ocr: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return "", fmt.Errorf("ocr: writing input: %w", err)
	}

	run := t.Run
	if run == nil {
		run = pdftext.ExecRunner
	}
	dpi := t.DPI
	if dpi == 0 {
		dpi = 300
	}

	prefix := filepath.Join(dir, "page")
	if _, err := run(ctx, t.PdftoppmPath, "-r", fmt.Sprint(dpi), "-png", input, prefix); err != nil {
		return "", fmt.Errorf("ocr: rasterizing: %w", err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return "", fmt.Errorf("ocr: listing pages: %w", err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("ocr: no pages rendered")
	}
	sort.Strings(pages)

	var sb strings.Builder
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := run(ctx, t.TesseractPath, page, "stdout")
		if err != nil {
			return "", fmt.Errorf("ocr: %s: %w", filepath.Base(page), err)
		}
		sb.Write(out)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
