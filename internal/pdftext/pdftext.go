// Package pdftext extracts text from PDFs with poppler's pdftotext.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}

// Poppler shells out to pdftotext. Layout keeps the physical column layout,
// which tax forms and statements with side-by-side boxes need.
type Poppler struct {
	Path   string
	Layout bool
	Run    Runner
}

// NewPoppler returns a raw-text extractor using the binary at path.
func NewPoppler(path string, layout bool) *Poppler {
	if path == "" {
		path = "pdftotext"
	}
	return &Poppler{Path: path, Layout: layout, Run: ExecRunner}
}

// ExtractText writes the PDF to a temp file and returns pdftotext's output.
func (p *Poppler) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	f, err := os.CreateTemp("", "finingest-*.pdf")
	if err != nil {
		return "", fmt.Errorf("ExtractText: temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(pdf); err != nil {
		f.Close()
		return "", fmt.Errorf("ExtractText: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ExtractText: closing temp file: %w", err)
	}

	args := []string{}
	if p.Layout {
		args = append(args, "-layout")
	}
	args = append(args, f.Name(), "-")

	run := p.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, p.Path, args...)
	if err != nil {
		return "", fmt.Errorf("ExtractText: %w", err)
	}
	return string(out), nil
}
