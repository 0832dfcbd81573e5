// Package core holds the pure decision logic of the ledger: extracting
// amounts and categories from chat text, resolving report periods and
// aggregating transactions into reports.
//
// This file contains the amount extractor.
package core

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// amountFormat couples a numeric pattern with the normalizer that turns a
// match into a canonical decimal string ("50000.25").
type amountFormat struct {
	pattern   *regexp.Regexp
	normalize func(string) string
}

// Grouped forms come before the plain number, otherwise "50 000" would be
// read as 50.
var amountFormats = []amountFormat{
	// 50 000, 1 000 000, 50 000,25
	{regexp.MustCompile(`\d{1,3}(?:\s\d{3})+(?:[.,]\d{1,2})?`), normalizeSpaceGrouped},
	// 50,000 or 50,000.25
	{regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?`), normalizeCommaGrouped},
	// 50.000 or 50.000,25
	{regexp.MustCompile(`\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?`), normalizeDotGrouped},
	// 300, 300.5, 300,5
	{regexp.MustCompile(`\d+(?:[.,]\d{1,2})?`), normalizePlain},
}

var whitespace = regexp.MustCompile(`\s`)

// ExtractAmount returns the first positive amount found in text.
//
// Formats are tried in priority order and only the leftmost match of each
// format is considered. A match that parses to zero falls through to the
// next format.
//
// Examples:
//
//	ExtractAmount("кофе 30000")       -> 30000, true
//	ExtractAmount("50 000 такси")     -> 50000, true
//	ExtractAmount("50,000.25 salary") -> 50000.25, true
//	ExtractAmount("no numbers here")  -> 0, false
func ExtractAmount(text string) (decimal.Decimal, bool) {
	normalized := strings.TrimSpace(strings.Map(toASCIISpace, text))

	for _, f := range amountFormats {
		m := f.pattern.FindString(normalized)
		if m == "" {
			continue
		}
		v, err := decimal.NewFromString(f.normalize(m))
		if err != nil || !v.IsPositive() {
			continue
		}
		return v, true
	}
	return decimal.Zero, false
}

// toASCIISpace folds Unicode space separators (NBSP, thin and narrow
// no-break spaces) into ' ', which is all the patterns' \s matches.
func toASCIISpace(r rune) rune {
	if unicode.Is(unicode.Zs, r) {
		return ' '
	}
	return r
}

func normalizeSpaceGrouped(s string) string {
	return strings.Replace(whitespace.ReplaceAllString(s, ""), ",", ".", 1)
}

func normalizeCommaGrouped(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

func normalizeDotGrouped(s string) string {
	return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
}

func normalizePlain(s string) string {
	return strings.Replace(s, ",", ".", 1)
}
