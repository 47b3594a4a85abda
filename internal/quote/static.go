package quote

import (
	"context"
	"fmt"
	"sync"

	"github.com/atmx/brokerage/internal/model"
)

// StaticProvider serves quotes from an in-memory table. Used for testing
// and development. Prices stay fixed until changed via Set.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{quotes: make(map[string]model.Quote)}
}

// Set installs or replaces the quote for a symbol.
func (p *StaticProvider) Set(q model.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[q.Symbol] = q
}

func (p *StaticProvider) Lookup(_ context.Context, symbol string) (*model.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	copy := q
	return &copy, nil
}
