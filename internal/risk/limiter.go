// Package risk enforces position limits on simulated accounts.
//
// The simulator grants everyone the same starting cash, so limits exist to
// keep a single account from concentrating the whole balance into one
// symbol (and to keep leaderboards meaningful). Limits apply to buys only;
// selling down a position is always allowed.
package risk

import (
	"errors"
)

var (
	// ErrPerSymbolLimitExceeded is returned when a buy would push a single
	// symbol's position beyond the per-symbol maximum.
	ErrPerSymbolLimitExceeded = errors.New("risk: per-symbol position limit exceeded")

	// ErrTotalExposureExceeded is returned when a buy would push the total
	// share count across all positions beyond the portfolio maximum.
	ErrTotalExposureExceeded = errors.New("risk: total exposure limit exceeded")
)

// PositionLimiter enforces per-symbol and whole-portfolio share limits.
// A zero limit means unlimited.
type PositionLimiter struct {
	// MaxPerSymbol is the maximum net position in any single symbol.
	MaxPerSymbol int64

	// MaxTotal is the maximum aggregate share count across all positions.
	MaxTotal int64
}

// NewPositionLimiter creates a limiter with the given per-symbol and
// portfolio-wide share limits. Zero disables the corresponding check.
func NewPositionLimiter(maxPerSymbol, maxTotal int64) *PositionLimiter {
	return &PositionLimiter{
		MaxPerSymbol: maxPerSymbol,
		MaxTotal:     maxTotal,
	}
}

// CheckLimit validates whether buying `delta` shares of `symbol` respects
// position limits, given the user's current positions.
func (l *PositionLimiter) CheckLimit(symbol string, delta int64, positions map[string]int64) error {
	newPosition := positions[symbol] + delta
	if l.MaxPerSymbol > 0 && newPosition > l.MaxPerSymbol {
		return ErrPerSymbolLimitExceeded
	}

	if l.MaxTotal > 0 {
		total := delta
		for _, shares := range positions {
			total += shares
		}
		if total > l.MaxTotal {
			return ErrTotalExposureExceeded
		}
	}

	return nil
}
