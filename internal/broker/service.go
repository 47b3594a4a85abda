// Package broker provides the HTTP handlers and business logic for
// buying and selling shares against a cash balance, and for querying
// quotes, portfolios, and trade history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/auth"
	"github.com/atmx/brokerage/internal/metrics"
	"github.com/atmx/brokerage/internal/model"
	"github.com/atmx/brokerage/internal/quote"
	"github.com/atmx/brokerage/internal/risk"
	"github.com/atmx/brokerage/internal/store"
)

var (
	// ErrInvalidQuantity is returned when the requested share count is not
	// a positive integer.
	ErrInvalidQuantity = errors.New("broker: quantity must be a positive whole number of shares")

	// ErrInsufficientFunds is returned when a buy costs more than the
	// user's cash balance.
	ErrInsufficientFunds = errors.New("broker: insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the user's
	// current position in the symbol.
	ErrInsufficientShares = errors.New("broker: insufficient shares")
)

// Service executes trades. Buy/sell read-modify-write sequences are
// serialized per user via a lock table, so concurrent requests for the
// same account can never overspend cash or oversell a position. Requests
// for different users proceed in parallel.
type Service struct {
	store   store.Store
	quotes  quote.Provider
	limiter *risk.PositionLimiter
	locks   userLocks
	hub     *TickerHub // optional WebSocket hub for trade broadcasts
}

// NewService creates a new trading service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, quotes quote.Provider, limiter *risk.PositionLimiter, hub *TickerHub) *Service {
	return &Service{
		store:   st,
		quotes:  quotes,
		limiter: limiter,
		hub:     hub,
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /buy and POST /sell.
type TradeRequest struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"` // always positive; the route determines direction
}

// TradeResponse is the JSON body returned from POST /buy and POST /sell.
type TradeResponse struct {
	TransactionID int64           `json:"transaction_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"` // "buy" or "sell"
	Shares        int64           `json:"shares"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"` // price * shares
	Cash          decimal.Decimal `json:"cash"`  // balance after execution
}

// --- Core operations ---
// These take the user identity explicitly so they are callable and
// testable without the HTTP layer.

// Buy purchases shares at the current quoted price. The cash debit and
// ledger append are atomic; on any failure nothing is written.
func (s *Service) Buy(ctx context.Context, userID int64, symbol string, shares int64) (*model.Transaction, error) {
	if shares < 1 {
		return nil, ErrInvalidQuantity
	}

	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	cost := q.Price.Mul(decimal.NewFromInt(shares))

	unlock := s.locks.lock(userID)
	defer unlock()

	positions, err := s.store.GetPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("buy: read positions: %w", err)
	}
	if err := s.limiter.CheckLimit(q.Symbol, shares, positions); err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		UserID:    userID,
		Symbol:    q.Symbol,
		Shares:    shares,
		Price:     q.Price,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.ApplyTrade(ctx, userID, cost.Neg(), txn); err != nil {
		if errors.Is(err, store.ErrInsufficientCash) {
			return nil, fmt.Errorf("%w: %s costs %s", ErrInsufficientFunds, q.Symbol, cost)
		}
		return nil, fmt.Errorf("buy: apply trade: %w", err)
	}
	return txn, nil
}

// Sell disposes of shares at the current quoted price. The position check,
// cash credit, and ledger append happen under the per-user lock, so an
// interleaved sell cannot oversell the same position.
func (s *Service) Sell(ctx context.Context, userID int64, symbol string, shares int64) (*model.Transaction, error) {
	if shares < 1 {
		return nil, ErrInvalidQuantity
	}

	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	proceeds := q.Price.Mul(decimal.NewFromInt(shares))

	unlock := s.locks.lock(userID)
	defer unlock()

	held, err := s.store.GetPosition(ctx, userID, q.Symbol)
	if err != nil {
		return nil, fmt.Errorf("sell: read position: %w", err)
	}
	if shares > held {
		return nil, fmt.Errorf("%w: have %d, want to sell %d", ErrInsufficientShares, held, shares)
	}

	txn := &model.Transaction{
		UserID:    userID,
		Symbol:    q.Symbol,
		Shares:    -shares,
		Price:     q.Price,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.ApplyTrade(ctx, userID, proceeds, txn); err != nil {
		return nil, fmt.Errorf("sell: apply trade: %w", err)
	}
	return txn, nil
}

// Portfolio assembles the user's holdings with current quote prices.
// Fully sold positions (net zero) do not appear.
func (s *Service) Portfolio(ctx context.Context, userID int64) (*model.Portfolio, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	held, err := s.store.GetPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("portfolio: read positions: %w", err)
	}

	symbols := make([]string, 0, len(held))
	for symbol := range held {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	total := user.Cash
	positions := make([]model.Position, 0, len(symbols))
	for _, symbol := range symbols {
		shares := held[symbol]
		p := model.Position{Symbol: symbol, Shares: shares}

		// A failed lookup leaves the position priced at zero rather than
		// failing the whole view; symbols can be delisted after purchase.
		if q, err := s.quotes.Lookup(ctx, symbol); err == nil {
			p.Name = q.Name
			p.Price = q.Price
			p.Value = q.Price.Mul(decimal.NewFromInt(shares))
			total = total.Add(p.Value)
		} else {
			slog.Warn("portfolio quote lookup failed", "symbol", symbol, "err", err)
		}
		positions = append(positions, p)
	}

	return &model.Portfolio{
		UserID:     userID,
		Positions:  positions,
		Cash:       user.Cash,
		TotalValue: total,
	}, nil
}

// --- HTTP handlers ---

// HandleBuy handles POST /api/v1/buy.
func (s *Service) HandleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, "buy", s.Buy)
}

// HandleSell handles POST /api/v1/sell.
func (s *Service) HandleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, "sell", s.Sell)
}

func (s *Service) handleTrade(
	w http.ResponseWriter,
	r *http.Request,
	side string,
	exec func(context.Context, int64, string, int64) (*model.Transaction, error),
) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	symbol, err := quote.Normalize(req.Symbol)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	txn, err := exec(r.Context(), userID, symbol, req.Shares)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeError(w, err.Error(), statusFor(err))
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to read balance", http.StatusInternalServerError)
		return
	}

	shares := txn.Shares
	if shares < 0 {
		shares = -shares
	}
	total := txn.Price.Mul(decimal.NewFromInt(shares))

	metrics.TradesTotal.WithLabelValues(side).Inc()
	metrics.TradeVolume.WithLabelValues(txn.Symbol, side).Add(float64(shares))
	slog.Info("trade executed",
		"transaction_id", txn.ID,
		"user_id", userID,
		"symbol", txn.Symbol,
		"side", side,
		"shares", shares,
		"price", txn.Price.String(),
		"cash", user.Cash.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(TickerMessage{
			Type:   "trade_executed",
			Symbol: txn.Symbol,
			Side:   side,
			Shares: shares,
			Price:  txn.Price.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeResponse{
		TransactionID: txn.ID,
		Symbol:        txn.Symbol,
		Side:          side,
		Shares:        shares,
		Price:         txn.Price,
		Total:         total,
		Cash:          user.Cash,
	})
}

// HandleQuote handles GET /api/v1/quote/{symbol}.
func (s *Service) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol, err := quote.Normalize(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q, err := s.quotes.Lookup(r.Context(), symbol)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// HandlePortfolio handles GET /api/v1/portfolio.
func (s *Service) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	portfolio, err := s.Portfolio(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(portfolio)
}

// HandleHistory handles GET /api/v1/history.
// Returns the user's full ledger in chronological order.
func (s *Service) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	txns, err := s.store.GetTransactionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

// --- Error mapping ---

// statusFor maps domain errors to HTTP status codes. Anything not
// explicitly recognized is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, quote.ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, quote.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, risk.ErrPerSymbolLimitExceeded),
		errors.Is(err, risk.ErrTotalExposureExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, quote.ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, risk.ErrPerSymbolLimitExceeded), errors.Is(err, risk.ErrTotalExposureExceeded):
		return "risk_limit"
	default:
		return "internal"
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
