package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$1,234.56", "1234.56"},
		{"(50.00)", "-50"},
		{"($1,000.10)", "-1000.1"},
		{"", "0"},
		{"   ", "0"},
		{"-12.5", "-12.5"},
		{"+$3.00", "3"},
		{"1 000", "1000"},
		{"N/A", "0"},
		{"--", "0"},
		{"$", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseAmount(tt.in)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	if got := ParsePercent("(3.10%)"); !got.Equal(decimal.RequireFromString("-3.1")) {
		t.Errorf("ParsePercent = %s", got)
	}
}

func TestOptionalAmount(t *testing.T) {
	if OptionalAmount("") != nil || OptionalAmount("--") != nil {
		t.Error("expected nil for blank input")
	}
	if got := OptionalAmount("0.00"); got == nil || !got.IsZero() {
		t.Errorf("OptionalAmount(0.00) = %v", got)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	tests := []string{
		"03/04/2024",
		"3/4/2024",
		"03/04/24",
		"2024-03-04",
		"03-04-2024",
		"2024/03/04",
		"Mar 4, 2024",
		"March 4, 2024",
		"20240304",
		"20240304120000",
		"20240304120000.000[-5:EST]",
		"2024-03-04T10:00:00Z",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", in, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
			}
		})
	}
}

func TestParseDate_DayFirstFallback(t *testing.T) {
	got, err := ParseDate("25/12/2023")
	if err != nil {
		t.Fatalf("ParseDate error = %v", err)
	}
	if got.Month() != time.December || got.Day() != 25 {
		t.Errorf("ParseDate(25/12/2023) = %v", got)
	}
}

func TestParseDate_Error(t *testing.T) {
	_, err := ParseDate("yesterday")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnparseableDate) {
		t.Errorf("expected ErrUnparseableDate, got %v", err)
	}
	var de *DateError
	if !errors.As(err, &de) || de.Input != "yesterday" {
		t.Errorf("expected DateError with input, got %v", err)
	}
}

func TestParseDateLayout(t *testing.T) {
	tests := []struct {
		in, layout string
		want       time.Time
	}{
		{"04/03/2024", "DD/MM/YYYY", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2024-03-04", "YYYY-MM-DD", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"03/04/2024", "", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2024-03-04", "MM/DD/YYYY", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in+"_"+tt.layout, func(t *testing.T) {
			got, err := ParseDateLayout(tt.in, tt.layout)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
