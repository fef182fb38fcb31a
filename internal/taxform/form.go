// Package taxform extracts W-2 and 1099 box values from PDFs by escalating
// through progressively more expensive extraction tiers until the mean field
// confidence reaches a threshold.
package taxform

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type FormType string

const (
	FormUnknown  FormType = ""
	FormW2       FormType = "W2"
	Form1099MISC FormType = "1099-MISC"
	Form1099INT  FormType = "1099-INT"
	Form1099DIV  FormType = "1099-DIV"
	Form1099B    FormType = "1099-B"
)

// ParseFormType accepts the canonical names plus the common hyphenated
// spelling "W-2".
func ParseFormType(s string) FormType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "W2", "W-2":
		return FormW2
	case "1099-MISC", "1099MISC":
		return Form1099MISC
	case "1099-INT", "1099INT":
		return Form1099INT
	case "1099-DIV", "1099DIV":
		return Form1099DIV
	case "1099-B", "1099B":
		return Form1099B
	}
	return FormUnknown
}

var formMarkers = []struct {
	form FormType
	re   *regexp.Regexp
}{
	{Form1099MISC, regexp.MustCompile(`(?i)\b1099\s*-?\s*misc\b|miscellaneous\s+(?:income|information)`)},
	{Form1099INT, regexp.MustCompile(`(?i)\b1099\s*-?\s*int\b|interest\s+income\b.*\bpayer`)},
	{Form1099DIV, regexp.MustCompile(`(?i)\b1099\s*-?\s*div\b|dividends\s+and\s+distributions`)},
	{Form1099B, regexp.MustCompile(`(?i)\b1099\s*-?\s*b\b|proceeds\s+from\s+broker`)},
	{FormW2, regexp.MustCompile(`(?i)\bform\s+w\s*-?\s*2\b|\bw-2\b|wage\s+and\s+tax\s+statement`)},
}

// DetectFormType classifies extracted text. 1099 variants are checked before
// W-2 since brokerage composites often mention both.
func DetectFormType(text string) FormType {
	for _, m := range formMarkers {
		if m.re.MatchString(text) {
			return m.form
		}
	}
	return FormUnknown
}

type FieldKind int

const (
	KindMoney FieldKind = iota
	KindText
	KindBool
	KindCodes
)

// FieldSpec describes one box of a form.
type FieldSpec struct {
	Name string
	Kind FieldKind
	// Label matches the box caption. Money fields take the first amount that
	// follows it on the same line; bool fields look for a mark after it.
	Label *regexp.Regexp
	// PII fields are identifiers or personal details that are masked before
	// leaving the process and never accepted back from a reasoning model.
	PII bool
}

// Box12Code is one W-2 box 12 entry.
type Box12Code struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

func money(name, label string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindMoney, Label: regexp.MustCompile(`(?i)(?:` + label + `)`)}
}

func checkbox(name, label string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindBool, Label: regexp.MustCompile(`(?im)(?:` + label + `)[ \t:\[\(]*[xX✓✔☒]`)}
}

func presence(name, label string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindBool, Label: regexp.MustCompile(`(?i)` + label)}
}

func text(name, label string, pii bool) FieldSpec {
	return FieldSpec{Name: name, Kind: KindText, Label: regexp.MustCompile(`(?im)(?:` + label + `)\s*:\s*([^\n]+?)\s*$`), PII: pii}
}

var (
	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	einPattern = regexp.MustCompile(`\b\d{2}-\d{7}\b`)
)

func identifier(name string, re *regexp.Regexp) FieldSpec {
	return FieldSpec{Name: name, Kind: KindText, Label: re, PII: true}
}

var schemas = map[FormType][]FieldSpec{
	FormW2: {
		identifier("employee_ssn", ssnPattern),
		identifier("employer_ein", einPattern),
		text("employer_name", `employer(?:'s)?\s+name`, false),
		text("employee_name", `employee(?:'s)?\s+name`, true),
		text("employee_address", `employee(?:'s)?\s+address`, true),
		text("employer_address", `employer(?:'s)?\s+address`, true),
		money("wages_tips_compensation", `wages,?\s+tips|box\s*1\b`),
		money("federal_income_tax_withheld", `federal\s+income\s+tax\s+withheld|box\s*2\b`),
		money("social_security_wages", `social\s+security\s+wages|box\s*3\b`),
		money("social_security_tax_withheld", `social\s+security\s+tax\s+withheld|box\s*4\b`),
		money("medicare_wages", `medicare\s+wages|box\s*5\b`),
		money("medicare_tax_withheld", `medicare\s+tax\s+withheld|box\s*6\b`),
		money("social_security_tips", `social\s+security\s+tips|box\s*7\b`),
		money("allocated_tips", `allocated\s+tips|box\s*8\b`),
		money("dependent_care_benefits", `dependent\s+care\s+benefits|box\s*10\b`),
		money("nonqualified_plans", `nonqualified\s+plans|box\s*11\b`),
		{Name: "box_12_codes", Kind: KindCodes},
		checkbox("statutory_employee", `statutory\s+employee`),
		checkbox("retirement_plan", `retirement\s+plan`),
		checkbox("third_party_sick_pay", `third[\s-]party\s+sick\s+pay`),
		{Name: "state_code", Kind: KindText, Label: regexp.MustCompile(`(?m)\b(?:State|STATE)\s*:\s*([A-Z]{2})\b`)},
		money("state_wages", `state\s+wages|box\s*16\b`),
		money("state_income_tax", `state\s+income\s+tax|box\s*17\b`),
		money("local_wages", `local\s+wages|box\s*18\b`),
		money("local_income_tax", `local\s+income\s+tax|box\s*19\b`),
		text("locality_name", `locality\s+name`, false),
	},
	Form1099MISC: {
		identifier("payer_tin", einPattern),
		identifier("recipient_tin", ssnPattern),
		text("payer_name", `payer(?:'s)?\s+name`, false),
		text("payer_address", `payer(?:'s)?\s+address`, true),
		money("rents", `rents|box\s*1\b`),
		money("royalties", `royalties|box\s*2\b`),
		money("other_income", `other\s+income|box\s*3\b`),
		money("federal_income_tax_withheld", `federal\s+income\s+tax\s+withheld|box\s*4\b`),
		money("fishing_boat_proceeds", `fishing\s+boat\s+proceeds|box\s*5\b`),
		money("medical_health_payments", `medical\s+and\s+health\s+care\s+payments|box\s*6\b`),
		money("crop_insurance_proceeds", `crop\s+insurance\s+proceeds|box\s*9\b`),
		money("gross_proceeds_attorney", `gross\s+proceeds\s+paid\s+to\s+an\s+attorney|box\s*10\b`),
		money("section_409a_deferrals", `section\s+409a\s+deferrals|box\s*12\b`),
		money("state_tax_withheld", `state\s+tax\s+withheld|box\s*16\b`),
		money("state_income", `state\s+income|box\s*18\b`),
	},
	Form1099INT: {
		identifier("payer_tin", einPattern),
		identifier("recipient_tin", ssnPattern),
		text("payer_name", `payer(?:'s)?\s+name`, false),
		money("interest_income", `interest\s+income|box\s*1\b`),
		money("early_withdrawal_penalty", `early\s+withdrawal\s+penalty|box\s*2\b`),
		money("interest_us_savings_bonds", `interest\s+on\s+u\.?s\.?\s+savings\s+bonds|box\s*3\b`),
		money("federal_income_tax_withheld", `federal\s+income\s+tax\s+withheld|box\s*4\b`),
		money("investment_expenses", `investment\s+expenses|box\s*5\b`),
		money("foreign_tax_paid", `foreign\s+tax\s+paid|box\s*6\b`),
		money("tax_exempt_interest", `tax[\s-]exempt\s+interest|box\s*8\b`),
		money("specified_private_activity_bond_interest", `private\s+activity\s+bond\s+interest|box\s*9\b`),
		money("market_discount", `market\s+discount|box\s*10\b`),
		money("bond_premium", `bond\s+premium|box\s*11\b`),
	},
	Form1099DIV: {
		identifier("payer_tin", einPattern),
		identifier("recipient_tin", ssnPattern),
		text("payer_name", `payer(?:'s)?\s+name`, false),
		money("total_ordinary_dividends", `total\s+ordinary\s+dividends|box\s*1a\b`),
		money("qualified_dividends", `qualified\s+dividends|box\s*1b\b`),
		money("total_capital_gain_distributions", `total\s+capital\s+gain|box\s*2a\b`),
		money("nondividend_distributions", `nondividend\s+distributions|box\s*3\b`),
		money("federal_income_tax_withheld", `federal\s+income\s+tax\s+withheld|box\s*4\b`),
		money("section_199a_dividends", `section\s+199a\s+dividends|box\s*5\b`),
		money("foreign_tax_paid", `foreign\s+tax\s+paid|box\s*7\b`),
		money("exempt_interest_dividends", `exempt[\s-]interest\s+dividends|box\s*12\b`),
	},
	Form1099B: {
		identifier("payer_tin", einPattern),
		identifier("recipient_tin", ssnPattern),
		text("payer_name", `payer(?:'s)?\s+name`, false),
		money("proceeds", `proceeds|box\s*1d\b`),
		money("cost_basis", `cost\s+or\s+other\s+basis|cost\s+basis|box\s*1e\b`),
		money("wash_sale_loss_disallowed", `wash\s+sale\s+loss\s+disallowed|box\s*1g\b`),
		money("federal_income_tax_withheld", `federal\s+income\s+tax\s+withheld|box\s*4\b`),
		presence("short_term", `short[\s-]?term`),
		presence("long_term", `long[\s-]?term`),
	},
}

// Fields returns the box schema of a form, or nil for an unknown form.
func Fields(form FormType) []FieldSpec {
	return schemas[form]
}

func lookupField(form FormType, name string) (FieldSpec, bool) {
	for _, f := range schemas[form] {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
