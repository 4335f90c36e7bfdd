package crawler

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency codes emitted by NormalizePrice
const (
	CurrencyXOF = "XOF"
	CurrencyBDT = "BDT"
	CurrencyGHS = "GHS"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// Price is a parsed amount and its currency. Both are nil or both are set.
type Price struct {
	Amount   *float64
	Currency *string
}

type pricePattern struct {
	re       *regexp.Regexp
	currency string
	strip    string
}

const (
	// separators allowed between digit groups of West African and South Asian prices
	groupSeparators = ",. \t\n\r\f\v\u00a0"
	// dollar and euro amounts only group with commas
	commaSeparator = ","
)

// pricePatterns are evaluated in order and the first match wins. For every
// currency the grouped-digits form comes before the plain form.
var pricePatterns = []pricePattern{
	{regexp.MustCompile(`(?i)(\d{1,3}(?:[,.\s\x{00A0}]\d{3})+)\s*(?:FCFA|CFA|F\s*CFA|XOF)`), CurrencyXOF, groupSeparators},
	{regexp.MustCompile(`(?i)(\d+)\s*(?:FCFA|CFA|F\s*CFA|XOF)`), CurrencyXOF, ""},
	{regexp.MustCompile(`(?i)(\d{1,3}(?:[,.\s\x{00A0}]\d{3})+)\s*(?:Taka|BDT|৳)`), CurrencyBDT, groupSeparators},
	{regexp.MustCompile(`(?i)(\d+)\s*(?:Taka|BDT|৳)`), CurrencyBDT, ""},
	{regexp.MustCompile(`(?i)(\d{1,3}(?:[,.\s\x{00A0}]\d{3})+)\s*(?:Cedi|GHS|GH₵)`), CurrencyGHS, groupSeparators},
	{regexp.MustCompile(`(?i)(\d+)\s*(?:Cedi|GHS|GH₵)`), CurrencyGHS, ""},
	{regexp.MustCompile(`(?i)\$\s*(\d{1,3}(?:,\d{3})+)`), CurrencyUSD, commaSeparator},
	{regexp.MustCompile(`(?i)\$\s*(\d+)`), CurrencyUSD, ""},
	{regexp.MustCompile(`(?i)€\s*(\d{1,3}(?:,\d{3})+)`), CurrencyEUR, commaSeparator},
	{regexp.MustCompile(`(?i)€\s*(\d+)`), CurrencyEUR, ""},
}

// inlinePriceRegex matches amounts embedded in free text so they can be
// removed from descriptions
var inlinePriceRegex = regexp.MustCompile(`\d+[\s,.]?\d*\s*(?:FCFA|CFA|Taka|BDT|Cedi|GHS|USD|EUR|\$|€)`)

// NormalizePrice parses the first recognizable price in text. Text without a
// supported currency yields an empty Price.
func NormalizePrice(text string) Price {
	if text == "" {
		return Price{}
	}

	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		digits := m[1]
		if p.strip != "" {
			digits = strings.Map(func(r rune) rune {
				if strings.ContainsRune(p.strip, r) {
					return -1
				}
				return r
			}, digits)
		}

		amount, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		currency := p.currency
		return Price{Amount: &amount, Currency: &currency}
	}

	return Price{}
}

// StripInlinePrices removes amount-with-currency substrings from text
func StripInlinePrices(text string) string {
	return strings.TrimSpace(inlinePriceRegex.ReplaceAllString(text, ""))
}
