package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/atmx/brokerage/internal/model"
)

// HTTPProvider fetches quotes from an external quote API over HTTP.
// The API is expected to answer GET {base}/quote?symbol={symbol} with
// {"symbol": ..., "name": ..., "price": ...} and 404 for unknown symbols.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given API base URL.
// Pass nil for client to use a default with a 5s timeout.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPProvider{baseURL: baseURL, client: client}
}

func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (*model.Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s", p.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("quote: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("quote: fetch %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var q model.Quote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("quote: decode %s: %w", symbol, err)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return &q, nil
}
