// Package extract pulls candidate ticker symbols out of free-text
// messages and filters them against the known catalogs.
package extract

import (
	"errors"
	"regexp"

	"tickerpulse/internal/catalog"
)

// ErrNoValidTickers is returned when none of the extracted symbols match
// a catalog entry. The owning message is excluded from further processing.
var ErrNoValidTickers = errors.New("no valid tickers in message")

// tickerPattern matches a dollar-sign-prefixed alphanumeric token.
var tickerPattern = regexp.MustCompile(`\$([A-Za-z0-9]+)`)

// Tickers returns every $-prefixed symbol in text, left to right,
// case preserved, without the leading dollar sign.
func Tickers(text string) []string {
	matches := tickerPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(matches))
	for _, m := range matches {
		symbols = append(symbols, m[1])
	}
	return symbols
}

// FilterValid keeps the raw symbols that exist in either catalog,
// matching case-insensitively. Order and duplicates are preserved.
// Returns ErrNoValidTickers when the result would be empty.
func FilterValid(raw []string, catalogs *catalog.Catalog) ([]string, error) {
	var valid []string
	for _, sym := range raw {
		if catalogs.Contains(sym) {
			valid = append(valid, sym)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoValidTickers
	}
	return valid, nil
}
