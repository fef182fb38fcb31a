// Package pii masks and hashes taxpayer identifiers before tax-form fields
// leave the process or reach storage. Financial amounts are never touched.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
)

const (
	SSNRedacted     = "[SSN_REDACTED]"
	NameRedacted    = "[NAME_REDACTED]"
	EmployeeName    = "[EMPLOYEE_NAME]"
	AddressRedacted = "[ADDRESS_REDACTED]"
)

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskSSN keeps the last four digits: "123-45-6789" becomes "***-**-6789"
// and "123456789" becomes "*****6789". Anything that is not nine digits is
// fully redacted.
func MaskSSN(ssn string) string {
	d := digits(ssn)
	if len(d) != 9 {
		return SSNRedacted
	}
	if strings.Contains(ssn, "-") {
		return "***-**-" + d[5:]
	}
	return "*****" + d[5:]
}

// HashTIN returns the hex SHA-256 of the identifier's digits, or "" for
// empty input. Formatting differences hash identically.
func HashTIN(tin string) string {
	if strings.TrimSpace(tin) == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(digits(tin)))
	return hex.EncodeToString(sum[:])
}

// MaskEIN never exposes any part of an EIN.
func MaskEIN(ein string) string {
	return HashTIN(ein)
}

// MaskName replaces a person's name.
func MaskName(name, replacement string) string {
	if replacement == "" {
		return NameRedacted
	}
	return replacement
}

// MaskAddress replaces a street address.
func MaskAddress(address string) string {
	return AddressRedacted
}

var (
	ssnFields     = []string{"employee_ssn", "recipient_ssn"}
	tinFields     = []string{"employer_ein", "payer_tin", "recipient_tin"}
	addressFields = []string{"employee_address", "employer_address", "payer_address", "recipient_address"}
)

// MaskForReasoning prepares fields for an external reasoning service. SSNs
// keep their last four digits, EINs/TINs are replaced by *_hash fields, the
// employee name and all addresses are replaced. Employer and payer names stay
// since they carry context. The input map is not modified.
func MaskForReasoning(fields map[string]any) map[string]any {
	out := copyFields(fields)
	for _, f := range ssnFields {
		if v, ok := out[f]; ok {
			out[f] = MaskSSN(str(v))
		}
	}
	for _, f := range tinFields {
		if v, ok := out[f]; ok {
			out[f+"_hash"] = HashTIN(str(v))
			delete(out, f)
		}
	}
	if _, ok := out["employee_name"]; ok {
		out["employee_name"] = EmployeeName
	}
	if _, ok := out["recipient_name"]; ok {
		out["recipient_name"] = NameRedacted
	}
	for _, f := range addressFields {
		if v, ok := out[f]; ok {
			out[f] = MaskAddress(str(v))
		}
	}
	return out
}

// PrepareForStorage replaces every identifier with a one-way hash and, for
// SSNs, a last-four display mask. The plaintext keys are removed.
func PrepareForStorage(fields map[string]any) map[string]any {
	out := copyFields(fields)
	for _, f := range ssnFields {
		if v, ok := out[f]; ok {
			out[f+"_hash"] = HashTIN(str(v))
			out[f+"_masked"] = MaskSSN(str(v))
			delete(out, f)
		}
	}
	for _, f := range tinFields {
		if v, ok := out[f]; ok {
			out[f+"_hash"] = HashTIN(str(v))
			delete(out, f)
		}
	}
	if _, ok := out["employee_name"]; ok {
		out["employee_name_masked"] = EmployeeName
		delete(out, "employee_name")
	}
	return out
}

// RoundConfidence clamps c to [0, 1] at two decimal places.
func RoundConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return math.Round(c*100) / 100
}

// ValidateConfidence reports whether every score meets threshold, plus the
// sorted names of those that do not.
func ValidateConfidence(scores map[string]float64, threshold float64) (bool, []string) {
	var failed []string
	for field, s := range scores {
		if s < threshold {
			failed = append(failed, field)
		}
	}
	sort.Strings(failed)
	return len(failed) == 0, failed
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
