package pii

import (
	"reflect"
	"strings"
	"testing"
)

func TestMaskSSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123-45-6789", "***-**-6789"},
		{"123456789", "*****6789"},
		{"123 45 6789", "*****6789"},
		{"12-345", SSNRedacted},
		{"", SSNRedacted},
		{"invalid", SSNRedacted},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MaskSSN(tt.in); got != tt.want {
				t.Errorf("MaskSSN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHashTIN(t *testing.T) {
	h := HashTIN("123-45-6789")
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h))
	}
	if h == "123-45-6789" || strings.Contains(h, "123456789") {
		t.Error("hash must not contain the plaintext")
	}
	if h != HashTIN("123456789") {
		t.Error("formatting must not change the hash")
	}
	if h != HashTIN("123-45-6789") {
		t.Error("hash must be deterministic")
	}
	if HashTIN("") != "" || HashTIN("  ") != "" {
		t.Error("empty input must hash to empty string")
	}
	if MaskEIN("12-3456789") != HashTIN("123456789") {
		t.Error("MaskEIN must hash the digits")
	}
}

func TestMaskForReasoning(t *testing.T) {
	in := map[string]any{
		"employee_ssn":            "123-45-6789",
		"employer_ein":            "12-3456789",
		"employee_name":           "Jane Doe",
		"employer_name":           "Acme Corp",
		"employee_address":        "1 Main St",
		"wages_tips_compensation": "75000.00",
	}
	out := MaskForReasoning(in)

	if out["employee_ssn"] != "***-**-6789" {
		t.Errorf("employee_ssn = %v", out["employee_ssn"])
	}
	if _, ok := out["employer_ein"]; ok {
		t.Error("plaintext EIN must be removed")
	}
	if out["employer_ein_hash"] != HashTIN("12-3456789") {
		t.Errorf("employer_ein_hash = %v", out["employer_ein_hash"])
	}
	if out["employee_name"] != EmployeeName || out["employee_address"] != AddressRedacted {
		t.Errorf("name/address not masked: %v", out)
	}
	if out["employer_name"] != "Acme Corp" {
		t.Error("employer name should be kept")
	}
	if out["wages_tips_compensation"] != "75000.00" {
		t.Error("amounts must never be masked")
	}
	if in["employee_ssn"] != "123-45-6789" {
		t.Error("input map must not be modified")
	}
}

func TestPrepareForStorage(t *testing.T) {
	out := PrepareForStorage(map[string]any{
		"employee_ssn":  "123-45-6789",
		"payer_tin":     "98-7654321",
		"employee_name": "Jane Doe",
		"rents":         "1200.00",
	})

	for _, k := range []string{"employee_ssn", "payer_tin", "employee_name"} {
		if _, ok := out[k]; ok {
			t.Errorf("plaintext %s must be removed", k)
		}
	}
	if out["employee_ssn_masked"] != "***-**-6789" {
		t.Errorf("employee_ssn_masked = %v", out["employee_ssn_masked"])
	}
	if out["employee_ssn_hash"] != HashTIN("123456789") || out["payer_tin_hash"] != HashTIN("987654321") {
		t.Errorf("hashes = %v", out)
	}
	if out["employee_name_masked"] != EmployeeName || out["rents"] != "1200.00" {
		t.Errorf("unexpected output %v", out)
	}
}

func TestRoundConfidence(t *testing.T) {
	tests := map[float64]float64{
		0.8749: 0.87,
		0.875:  0.88,
		-0.2:   0,
		1.7:    1,
		1:      1,
	}
	for in, want := range tests {
		if got := RoundConfidence(in); got != want {
			t.Errorf("RoundConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestValidateConfidence(t *testing.T) {
	ok, failed := ValidateConfidence(map[string]float64{"wages": 0.95, "federal_tax": 0.80, "ssn": 0.5}, 0.85)
	if ok {
		t.Error("expected failure")
	}
	if !reflect.DeepEqual(failed, []string{"federal_tax", "ssn"}) {
		t.Errorf("failed = %v", failed)
	}
	if ok, failed := ValidateConfidence(map[string]float64{"wages": 0.9}, 0.85); !ok || len(failed) != 0 {
		t.Errorf("expected pass, got %v %v", ok, failed)
	}
}
