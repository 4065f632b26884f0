package market

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidSymbol is returned for symbols that fail validation.
var ErrInvalidSymbol = errors.New("invalid symbol")

var symbolRe = regexp.MustCompile(`^[A-Z.^]{1,10}$`)

// NormalizeSymbol trims and upper-cases s and validates it. Index symbols
// such as ^NSEI are accepted.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if !symbolRe.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return sym, nil
}

// NormalizeSymbols normalizes every symbol and drops duplicates, keeping
// first-seen order. The first invalid symbol aborts.
func NormalizeSymbols(symbols []string) ([]string, error) {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym, err := NormalizeSymbol(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, sym) {
			out = append(out, sym)
		}
	}
	return out, nil
}
