// Package store defines the persistence interface for the brokerage.
// Implementations include PostgreSQL (source of truth) and in-memory
// (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/model"
)

var (
	// ErrUserNotFound is returned when no user matches the given id/username.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrDuplicateUsername is returned when a username is already taken.
	// Matching is case-sensitive and exact.
	ErrDuplicateUsername = errors.New("store: username already taken")

	// ErrInsufficientCash is returned by ApplyTrade when the cash delta
	// would drive the user's balance negative.
	ErrInsufficientCash = errors.New("store: insufficient cash")
)

// Store is the persistence interface. Users carry a stored cash balance;
// the transactions ledger is append-only and is the source of truth for
// positions.
type Store interface {
	// --- User operations ---

	// CreateUser persists a new user, assigning its ID.
	// Returns ErrDuplicateUsername if the username is taken.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// GetUserByUsername retrieves a user by exact username.
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// --- Trade execution ---

	// ApplyTrade atomically applies cashDelta to the user's balance and
	// appends txn to the ledger, assigning txn.ID. The cash update is
	// conditional: if the resulting balance would be negative, nothing is
	// written and ErrInsufficientCash is returned.
	ApplyTrade(ctx context.Context, userID int64, cashDelta decimal.Decimal, txn *model.Transaction) error

	// --- Ledger queries ---

	// GetTransactionsByUser returns the user's full ledger in
	// chronological order.
	GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error)

	// GetPositions computes net share counts per symbol from the ledger.
	// Symbols whose net is zero or negative are excluded.
	GetPositions(ctx context.Context, userID int64) (map[string]int64, error)

	// GetPosition computes the net share count for one symbol.
	// Returns 0 for symbols the user never traded.
	GetPosition(ctx context.Context, userID int64, symbol string) (int64, error)
}
