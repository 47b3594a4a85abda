// Package quote defines the stock quote lookup boundary. Implementations
// include an HTTP client for an external quote API, a Redis read-through
// cache, and a static in-memory table (for testing and development).
package quote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/atmx/brokerage/internal/model"
)

var (
	// ErrUnknownSymbol is returned when the provider has no quote for a symbol.
	ErrUnknownSymbol = errors.New("quote: unknown symbol")

	// ErrInvalidSymbol is returned when a symbol fails format validation
	// before any lookup is attempted.
	ErrInvalidSymbol = errors.New("quote: invalid symbol format")
)

// symbolRegex matches exchange-style tickers: 1-6 letters, optional
// .suffix for share classes (e.g. BRK.B).
var symbolRegex = regexp.MustCompile(`^[A-Z]{1,6}(\.[A-Z])?$`)

// Provider resolves ticker symbols to current quotes.
type Provider interface {
	// Lookup returns the current quote for a symbol, or ErrUnknownSymbol.
	Lookup(ctx context.Context, symbol string) (*model.Quote, error)
}

// Normalize upper-cases and validates a user-submitted symbol.
func Normalize(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}
