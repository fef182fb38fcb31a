package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

// table is a CSV file keyed by normalized header names.
type table struct {
	header []string
	index  map[string]int
	rows   [][]string
	// headerLine is the 1-based record number of the header, so row numbers
	// in logs match what a user sees in a spreadsheet.
	headerLine int
}

// normHeader lowercases a column name and removes unit suffixes like " ($)".
func normHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "($)", "")
	h = strings.ReplaceAll(h, "(%)", "")
	return strings.Join(strings.Fields(h), " ")
}

// readTable parses CSV content. The header is the first record that contains
// every column in required (compared with normHeader); earlier preamble lines
// are ignored. With no required columns, the first record is the header.
func readTable(content []byte, required ...string) (*table, error) {
	r := csv.NewReader(bytes.NewReader(StripBOM(content)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	t := &table{}
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readTable: record %d: %w", line+1, err)
		}
		line++

		if t.header == nil {
			if isHeader(rec, required) {
				t.header = rec
				t.headerLine = line
				t.index = make(map[string]int, len(rec))
				for i, h := range rec {
					key := normHeader(h)
					if _, dup := t.index[key]; !dup {
						t.index[key] = i
					}
				}
			}
			continue
		}
		if blankRecord(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}

	if t.header == nil {
		return nil, fmt.Errorf("readTable: no header row with columns %v", required)
	}
	return t, nil
}

func isHeader(rec []string, required []string) bool {
	if len(required) == 0 {
		return !blankRecord(rec)
	}
	have := make(map[string]bool, len(rec))
	for _, h := range rec {
		have[normHeader(h)] = true
	}
	for _, r := range required {
		if !have[normHeader(r)] {
			return false
		}
	}
	return true
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// has reports whether any of the named columns exists.
func (t *table) has(names ...string) bool {
	_, ok := t.column(names...)
	return ok
}

func (t *table) column(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.index[normHeader(n)]; ok {
			return i, true
		}
	}
	return 0, false
}

// get returns the trimmed value of the first named column present in row.
func (t *table) get(row []string, names ...string) string {
	i, ok := t.column(names...)
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// raw maps header names to the row's values.
func (t *table) raw(row []string) map[string]string {
	m := make(map[string]string, len(t.header))
	for i, h := range t.header {
		if i < len(row) {
			m[strings.TrimSpace(h)] = row[i]
		}
	}
	return m
}

// rowNumber converts a data row index into a 1-based file record number.
func (t *table) rowNumber(i int) int {
	return t.headerLine + i + 1
}
