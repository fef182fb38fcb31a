package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type keywordRule struct {
	re   *regexp.Regexp
	kind TransactionKind
}

// wordRule matches any of words as whole words, optionally pluralized, so
// "fee" matches "FEES" but not "COFFEE".
func wordRule(kind TransactionKind, words ...string) keywordRule {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return keywordRule{
		re:   regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)s?\b`),
		kind: kind,
	}
}

// Order matters: the first matching rule wins.
var keywordRules = []keywordRule{
	wordRule(KindDividend, "dividend"),
	wordRule(KindFee, "fee", "service charge"),
	wordRule(KindInterest, "interest"),
	wordRule(KindWithdrawal, "withdrawal", "atm", "cash"),
	wordRule(KindDeposit, "deposit"),
	wordRule(KindTransfer, "transfer", "xfer"),
	wordRule(KindPayment, "payment", "autopay"),
}

// ClassifyByKeywords guesses a kind from the description, falling back to the
// amount sign.
func ClassifyByKeywords(description string, amount decimal.Decimal) TransactionKind {
	desc := strings.ToLower(description)
	for _, r := range keywordRules {
		if r.re.MatchString(desc) {
			return r.kind
		}
	}
	return KindBySign(amount)
}

// KindBySign returns debit for outflows and credit otherwise.
func KindBySign(amount decimal.Decimal) TransactionKind {
	if amount.IsNegative() {
		return KindDebit
	}
	return KindCredit
}

// AccountTypeFromName infers a retirement or brokerage account type from an
// account label such as "ROTH IRA" or "Company 401(k)".
func AccountTypeFromName(name string) AccountType {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "ROTH"):
		return AccountRothIRA
	case strings.Contains(upper, "IRA"):
		return AccountTraditionalIRA
	case strings.Contains(upper, "401"):
		return Account401k
	default:
		return AccountBrokerage
	}
}

// AssetTypeForSymbol applies the ticker-length heuristic: five characters or
// fewer is treated as a stock, longer symbols as mutual funds.
func AssetTypeForSymbol(symbol string) AssetType {
	if len(symbol) <= 5 {
		return AssetStock
	}
	return AssetMutualFund
}
