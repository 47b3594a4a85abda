package risk_test

import (
	"errors"
	"testing"

	"github.com/atmx/brokerage/internal/risk"
)

func TestCheckLimit_PerSymbol(t *testing.T) {
	l := risk.NewPositionLimiter(100, 0)

	held := map[string]int64{"AAPL": 90}

	if err := l.CheckLimit("AAPL", 10, held); err != nil {
		t.Errorf("buy to exactly the limit should pass, got %v", err)
	}
	if err := l.CheckLimit("AAPL", 11, held); !errors.Is(err, risk.ErrPerSymbolLimitExceeded) {
		t.Errorf("expected per-symbol limit error, got %v", err)
	}
	// Other symbols are unaffected by AAPL's position.
	if err := l.CheckLimit("MSFT", 100, held); err != nil {
		t.Errorf("unrelated symbol should pass, got %v", err)
	}
}

func TestCheckLimit_TotalExposure(t *testing.T) {
	l := risk.NewPositionLimiter(0, 150)

	held := map[string]int64{"AAPL": 100, "MSFT": 40}

	if err := l.CheckLimit("GOOG", 10, held); err != nil {
		t.Errorf("buy to exactly the total limit should pass, got %v", err)
	}
	if err := l.CheckLimit("GOOG", 11, held); !errors.Is(err, risk.ErrTotalExposureExceeded) {
		t.Errorf("expected total exposure error, got %v", err)
	}
}

func TestCheckLimit_ZeroDisables(t *testing.T) {
	l := risk.NewPositionLimiter(0, 0)
	held := map[string]int64{"AAPL": 1 << 40}

	if err := l.CheckLimit("AAPL", 1<<40, held); err != nil {
		t.Errorf("zero limits should disable checks, got %v", err)
	}
}
