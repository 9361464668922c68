// Package capture implements the price capture and normalization engine:
// DOM and network-JSON extraction of raw price observations, normalization
// into canonical observations, and the per-session orchestration policy.
package capture

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
	"github.com/gsindri/kaupa-skil-sub003/pkg/units"
)

// currencySymbols maps symbols to ISO-4217 codes. Scan order is table order,
// not position of occurrence in the text, so a collision resolves to
// whichever entry is listed first. Keep this an ordered slice: the priority
// is part of the contract.
var currencySymbols = []struct {
	Symbol string
	Code   string
}{
	{"€", "EUR"},
	{"£", "GBP"},
	{"$", "USD"},
	{"kr", "ISK"},
	{"ISK", "ISK"},
}

var (
	priceRunRe = regexp.MustCompile(`[\d.,]+`)
	isoCodeRe  = regexp.MustCompile(`\b[A-Z]{3}\b`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// packPatterns are tried in declaration order; the first match wins.
// No kg/g or l/ml conversion happens here.
var packPatterns = []struct {
	Re   *regexp.Regexp
	Unit units.Unit
}{
	{regexp.MustCompile(`(?i)case of\s*(\d+)`), units.UnitCase},
	{regexp.MustCompile(`(?i)(\d+)\s*x`), units.UnitUnit},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*kg`), units.UnitKg},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*g`), units.UnitG},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*ml`), units.UnitMl},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*l`), units.UnitL},
}

// NormalizeDecimal strips all whitespace and replaces the first comma with
// a period. Comma is assumed to be a decimal separator, never a thousands
// separator: "1 234,56" becomes "1234.56", while "1.234,56" stays broken.
func NormalizeDecimal(s string) string {
	s = spaceRe.ReplaceAllString(s, "")
	return strings.Replace(s, ",", ".", 1)
}

// ParsePrice extracts the first run of digits/dots/commas from text and
// parses it as a float. No match or an unparseable run yields NaN; callers
// must check with math.IsNaN.
func ParsePrice(text string) float64 {
	run := priceRunRe.FindString(text)
	if run == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(NormalizeDecimal(run), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ParseCurrency resolves a currency code with fixed priority: the explicit
// currency text when present, then the first symbol-table entry found by
// substring search, then the first bare 3-uppercase-letter token.
// Returns "" when nothing matches.
func ParseCurrency(priceText, currencyText string) string {
	if c := strings.TrimSpace(currencyText); c != "" {
		return strings.ToUpper(c)
	}
	for _, entry := range currencySymbols {
		if strings.Contains(priceText, entry.Symbol) {
			return entry.Code
		}
	}
	if code := isoCodeRe.FindString(priceText); code != "" {
		return code
	}
	return ""
}

// ParsePack matches the pack text against the fixed pattern priority list:
// "case of N", "N x", "N kg", "N g", "N ml", "N l".
func ParsePack(text string) (units.Unit, float64, bool) {
	for _, p := range packPatterns {
		m := p.Re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		size, err := strconv.ParseFloat(NormalizeDecimal(m[1]), 64)
		if err != nil {
			continue
		}
		return p.Unit, size, true
	}
	return "", 0, false
}

// InferVATFlag scans the combined price and pack text case-insensitively.
// "incl" co-occurring with vat/tax wins over "excl"; conflicting cues
// resolve to incl because that branch is checked first.
func InferVATFlag(text string) api.VATFlag {
	t := strings.ToLower(text)
	hasTax := strings.Contains(t, "vat") || strings.Contains(t, "tax")
	switch {
	case hasTax && strings.Contains(t, "incl"):
		return api.VATIncl
	case hasTax && strings.Contains(t, "excl"):
		return api.VATExcl
	}
	return api.VATUnknown
}

// Normalize transforms a raw observation into its canonical form. It never
// fails: malformed input yields NaN/empty fields instead of an error.
// PricePerUnit is a straight division by pack size rounded to 2 decimals,
// deliberately not unit-aware (an l price over an ml pack size is the
// caller's problem, see pkg/units.ToBase).
func Normalize(raw api.RawPriceObservation, source api.Source, url string) api.NormalizedPriceObservation {
	obs := api.NormalizedPriceObservation{
		URL:          url,
		Source:       source,
		PriceDisplay: ParsePrice(raw.PriceText),
		Currency:     ParseCurrency(raw.PriceText, raw.CurrencyText),
		Pack:         raw.PackText,
		VATFlag:      InferVATFlag(raw.PriceText + " " + raw.PackText),
		CapturedAt:   time.Now().UTC(),
	}

	if unit, size, ok := ParsePack(raw.PackText); ok {
		obs.Unit = unit
		obs.PackSize = size
		if size > 0 {
			ppu := math.Round(obs.PriceDisplay/size*100) / 100
			obs.PricePerUnit = &ppu
		}
	}

	return obs
}
