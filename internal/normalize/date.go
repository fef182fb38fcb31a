package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseableDate is matched by every DateError.
var ErrUnparseableDate = errors.New("unparseable date")

// DateError reports a date string that matched none of the known formats.
type DateError struct {
	Input string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnparseableDate, e.Input)
}

func (e *DateError) Is(target error) bool { return target == ErrUnparseableDate }

// dateLayouts is tried in order. US month-first layouts come before the
// day-first fallback, so "03/04/2024" is March 4th.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
	"01-02-2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 02 2006",
	"02-Jan-2006",
	"20060102",
}

// ParseDate tries each known layout and fails only when all of them do.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && strings.IndexByte(s, 'T') == 10 {
		s = s[:10]
	}
	if len(s) > 8 && isDigits(s[:8]) && (len(s) == 14 || strings.ContainsAny(s, ".[")) {
		s = s[:8]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateError{Input: s}
}

// Named layouts as declared by an inferred column mapping.
var namedLayouts = map[string]string{
	"MM/DD/YYYY": "01/02/2006",
	"YYYY-MM-DD": "2006-01-02",
	"MM-DD-YYYY": "01-02-2006",
	"DD/MM/YYYY": "02/01/2006",
}

// ParseDateLayout parses s with a named format such as "YYYY-MM-DD". Unknown
// names default to MM/DD/YYYY. When the declared layout does not match, the
// general ParseDate rules are tried before giving up.
func ParseDateLayout(s, name string) (time.Time, error) {
	layout, ok := namedLayouts[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		layout = namedLayouts["MM/DD/YYYY"]
	}
	if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
		return t, nil
	}
	return ParseDate(s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
