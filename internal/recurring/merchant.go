package recurring

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Group classifies well-known recurring merchants.
type Group string

const (
	GroupStreaming Group = "streaming"
	GroupSoftware  Group = "software"
	GroupFitness   Group = "fitness"
	GroupDelivery  Group = "delivery"
	GroupNews      Group = "news"
	GroupGaming    Group = "gaming"
	GroupCloud     Group = "cloud"
)

type synonym struct {
	name     string
	group    Group
	patterns []string
}

// Checked in order; the first pattern contained in the cleaned merchant
// wins. Gaming precedes software so "microsoft xbox" is not Microsoft 365.
var synonyms = []synonym{
	{"netflix", GroupStreaming, []string{"netflix"}},
	{"spotify", GroupStreaming, []string{"spotify"}},
	{"amazon prime", GroupStreaming, []string{"amzn prime", "amazon prime", "prime video"}},
	{"hulu", GroupStreaming, []string{"hulu"}},
	{"disney plus", GroupStreaming, []string{"disney", "disneyplus", "disney plus"}},
	{"hbo max", GroupStreaming, []string{"hbo", "hbomax"}},
	{"apple music", GroupStreaming, []string{"apple com bill", "apple music"}},
	{"apple tv", GroupStreaming, []string{"apple tv"}},
	{"youtube premium", GroupStreaming, []string{"youtube premium", "google youtube"}},
	{"paramount plus", GroupStreaming, []string{"paramount"}},
	{"peacock", GroupStreaming, []string{"peacock"}},
	{"discovery plus", GroupStreaming, []string{"discovery"}},

	{"playstation plus", GroupGaming, []string{"playstation", "ps plus"}},
	{"xbox game pass", GroupGaming, []string{"xbox", "microsoft xbox"}},
	{"nintendo online", GroupGaming, []string{"nintendo"}},

	{"adobe", GroupSoftware, []string{"adobe"}},
	{"microsoft 365", GroupSoftware, []string{"microsoft", "msft", "office 365"}},
	{"google workspace", GroupSoftware, []string{"google workspace", "google apps"}},
	{"dropbox", GroupSoftware, []string{"dropbox"}},
	{"evernote", GroupSoftware, []string{"evernote"}},
	{"notion", GroupSoftware, []string{"notion"}},
	{"slack", GroupSoftware, []string{"slack"}},
	{"zoom", GroupSoftware, []string{"zoom"}},
	{"github", GroupSoftware, []string{"github"}},
	{"chatgpt", GroupSoftware, []string{"openai", "chat gpt"}},
	{"claude", GroupSoftware, []string{"anthropic"}},

	{"planet fitness", GroupFitness, []string{"planet fit", "planet fitness"}},
	{"la fitness", GroupFitness, []string{"la fitness"}},
	{"equinox", GroupFitness, []string{"equinox"}},
	{"peloton", GroupFitness, []string{"peloton"}},
	{"calm", GroupFitness, []string{"calm"}},
	{"headspace", GroupFitness, []string{"headspace"}},

	{"doordash", GroupDelivery, []string{"doordash", "door dash"}},
	{"uber eats", GroupDelivery, []string{"uber eats"}},
	{"grubhub", GroupDelivery, []string{"grubhub"}},
	{"instacart", GroupDelivery, []string{"instacart"}},
	{"hellofresh", GroupDelivery, []string{"hellofresh", "hello fresh"}},
	{"blue apron", GroupDelivery, []string{"blue apron"}},

	{"new york times", GroupNews, []string{"nytimes", "ny times", "new york times"}},
	{"washington post", GroupNews, []string{"wash post", "washington post"}},
	{"wall street journal", GroupNews, []string{"wsj", "wall street"}},

	{"icloud", GroupCloud, []string{"icloud", "apple icloud"}},
	{"google one", GroupCloud, []string{"google one", "google storage"}},
	{"onedrive", GroupCloud, []string{"onedrive"}},
}

// Payment processor markers stripped from the front of a description.
var processorPrefixes = []string{"sq *", "paypal *", "venmo *", "tst* ", "pos ", "recurring ", "subscription "}

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	bareNumber = regexp.MustCompile(`\b\d+\b`)
	spaces     = regexp.MustCompile(`\s+`)
)

// NormalizeMerchant reduces a raw description to a comparable merchant
// name: "NETFLIX.COM*123456" becomes "netflix", "SQ *DOORDASH" becomes
// "doordash". Empty input yields "unknown".
func NormalizeMerchant(raw string) string {
	name, _ := normalize(raw)
	return name
}

// MerchantGroup returns the group of a known merchant, or "".
func MerchantGroup(raw string) Group {
	_, g := normalize(raw)
	return g
}

func normalize(raw string) (string, Group) {
	m := strings.ToLower(strings.TrimSpace(raw))
	if m == "" {
		return "unknown", ""
	}
	for _, p := range processorPrefixes {
		m = strings.TrimPrefix(m, p)
	}
	m = nonAlnum.ReplaceAllString(m, " ")
	m = bareNumber.ReplaceAllString(m, "")
	m = strings.TrimSpace(spaces.ReplaceAllString(m, " "))

	for _, s := range synonyms {
		for _, p := range s.patterns {
			if strings.Contains(m, p) {
				return s.name, s.group
			}
		}
	}
	if m == "" {
		return "unknown", ""
	}
	return m, ""
}

// GroupKey is the grouping key of a charge: normalized merchant plus the
// amount rounded to whole dollars, e.g. "netflix_16".
func GroupKey(description string, amount decimal.Decimal) string {
	return NormalizeMerchant(description) + "_" + amount.Abs().Round(0).String()
}
