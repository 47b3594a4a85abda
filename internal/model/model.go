// Package model defines the core domain types shared across the brokerage.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StartingCash is the cash balance granted to every new account.
var StartingCash = decimal.NewFromInt(10000)

// User is an account holder. Cash is a stored running total, mutated only
// by trade execution; it is never derived from the ledger because each
// transaction captures its own execution price.
type User struct {
	ID           int64           `json:"id" db:"id"`
	Username     string          `json:"username" db:"username"`
	PasswordHash string          `json:"-" db:"password_hash"`
	Cash         decimal.Decimal `json:"cash" db:"cash"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Transaction is an immutable record of a trade execution.
// Once created, these are never modified or deleted.
// Schema: {user, symbol, shares, price, timestamp}
type Transaction struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Shares    int64           `json:"shares" db:"shares"` // signed: +buy, -sell
	Price     decimal.Decimal `json:"price" db:"price"`   // price at execution
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Position is a user's net holding in one symbol, derived from the ledger.
// Only strictly positive positions are held.
type Position struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name,omitempty"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"` // current quote price
	Value  decimal.Decimal `json:"value"` // price * shares
}

// Portfolio aggregates a user's positions with cash and total account value.
type Portfolio struct {
	UserID     int64           `json:"user_id"`
	Positions  []Position      `json:"positions"`
	Cash       decimal.Decimal `json:"cash"`
	TotalValue decimal.Decimal `json:"total_value"` // cash + Σ position value
}

// Quote is a symbol's display name and price as of the lookup moment.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
