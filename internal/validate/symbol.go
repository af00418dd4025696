// Package validate holds the pure validation rules applied before any
// network or file I/O: ticker syntax, date-range sanity, and the price
// anomaly audit.
package validate

import (
	"regexp"
	"strings"
)

// Tickers are 1-5 letters with an optional ".X" share-class suffix
// (e.g. BRK.A) and an optional "-X" suffix.
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?(-[A-Z])?$`)

// Symbol reports whether s is a well-formed ticker after folding to
// upper case. No side effects.
func Symbol(s string) bool {
	return symbolPattern.MatchString(strings.ToUpper(s))
}
