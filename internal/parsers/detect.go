package parsers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// previewSize bounds how much of a CSV file the detector inspects.
const previewSize = 1000

// Detect classifies a file by extension and, for CSV, by the header tokens in
// the first previewSize bytes.
func Detect(filename string, content []byte) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ofx", ".qfx":
		return KindOFX, nil
	case ".pdf":
		return KindPDF, nil
	case ".csv", ".txt":
		return detectCSV(content), nil
	}
	return KindUnknown, fmt.Errorf("detect %q: extension %q: %w", filename, ext, domain.ErrUnsupportedFormat)
}

func detectCSV(content []byte) Kind {
	preview := StripBOM(content)
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	text := string(preview)
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(text, "Chase") || strings.Contains(text, "Transaction Date,Post Date") ||
		strings.Contains(text, "Details,Posting Date"):
		if strings.Contains(text, "Transaction Date") {
			return KindChaseCredit
		}
		return KindChaseBank
	case strings.Contains(text, "Fidelity") || strings.Contains(text, "Symbol,Description,Quantity") ||
		strings.Contains(text, "Run Date,Action"):
		return KindFidelity
	case strings.Contains(text, "Discover") || strings.Contains(text, "Trans. Date,Post Date"):
		return KindDiscover
	}

	header := lower
	if nl := strings.IndexByte(header, '\n'); nl >= 0 {
		header = header[:nl]
	}

	hasSymbol := strings.Contains(header, "symbol") || strings.Contains(header, "ticker")
	hasQuantity := strings.Contains(header, "quantity") || strings.Contains(header, "shares") ||
		strings.Contains(header, "qty")
	if hasSymbol && hasQuantity {
		return KindInferredCSV
	}

	hasDate := strings.Contains(header, "date")
	hasAmount := strings.Contains(header, "amount") || strings.Contains(header, "debit") ||
		strings.Contains(header, "credit") || strings.Contains(header, "withdrawal") ||
		strings.Contains(header, "deposit")
	if hasDate && hasAmount {
		return KindGenericBank
	}
	return KindInferredCSV
}
