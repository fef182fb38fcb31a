package schemainfer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Table is a CSV file split into its header and data rows.
type Table struct {
	Headers []string
	Rows    [][]string
	index   map[string]int
}

// ReadTable parses CSV content; the first non-blank record is the header.
func ReadTable(content []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadTable: %w", err)
	}

	t := &Table{index: map[string]int{}}
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if t.Headers == nil {
			for i, h := range rec {
				h = strings.TrimSpace(h)
				t.Headers = append(t.Headers, h)
				if _, dup := t.index[strings.ToLower(h)]; !dup {
					t.index[strings.ToLower(h)] = i
				}
			}
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if t.Headers == nil {
		return nil, fmt.Errorf("ReadTable: empty file")
	}
	return t, nil
}

// Has reports whether a column exists (case-insensitive).
func (t *Table) Has(column string) bool {
	_, ok := t.index[strings.ToLower(strings.TrimSpace(column))]
	return ok && column != ""
}

// Value returns the trimmed cell for column, or "" when absent.
func (t *Table) Value(row []string, column string) string {
	if column == "" {
		return ""
	}
	i, ok := t.index[strings.ToLower(strings.TrimSpace(column))]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// First returns the first of columns that exists.
func (t *Table) First(columns ...string) string {
	for _, c := range columns {
		if t.Has(c) {
			return c
		}
	}
	return ""
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
