package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Schema:
//
//	users(id BIGSERIAL PK, username TEXT UNIQUE, password_hash TEXT,
//	      cash NUMERIC, created_at TIMESTAMPTZ)
//	transactions(id BIGSERIAL PK, user_id BIGINT REFERENCES users,
//	      symbol TEXT, shares BIGINT, price NUMERIC, timestamp TIMESTAMPTZ)
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, cash, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)
		 RETURNING id`,
		u.Username, u.PasswordHash, u.Cash.String(), u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
		}
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	var cash string

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, cash::TEXT, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &cash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Cash, _ = decimal.NewFromString(cash)
	return &u, nil
}

// ApplyTrade runs the cash update and ledger append in one transaction.
// The UPDATE is conditional on cash staying non-negative, so a concurrent
// buy can never overspend even across multiple server instances.
func (s *PostgresStore) ApplyTrade(ctx context.Context, userID int64, cashDelta decimal.Decimal, txn *model.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("apply trade: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users SET cash = cash + $2::NUMERIC
		 WHERE id = $1 AND cash + $2::NUMERIC >= 0`,
		userID, cashDelta.String(),
	)
	if err != nil {
		return fmt.Errorf("apply trade: update cash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the user does not exist or the balance would go negative.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("apply trade: check user: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientCash
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (user_id, symbol, shares, price, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)
		 RETURNING id`,
		txn.UserID, txn.Symbol, txn.Shares, txn.Price.String(), txn.Timestamp,
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("apply trade: insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("apply trade: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, symbol, shares, price::TEXT, timestamp
		 FROM transactions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var price string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Shares, &price, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Price, _ = decimal.NewFromString(price)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *PostgresStore) GetPositions(ctx context.Context, userID int64) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, SUM(shares) AS shares FROM transactions
		 WHERE user_id = $1 GROUP BY symbol HAVING SUM(shares) > 0`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var shares int64
		if err := rows.Scan(&symbol, &shares); err != nil {
			return nil, err
		}
		positions[symbol] = shares
	}
	return positions, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID int64, symbol string) (int64, error) {
	var shares int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(shares), 0) FROM transactions
		 WHERE user_id = $1 AND symbol = $2`, userID, symbol).Scan(&shares)
	if err != nil {
		return 0, fmt.Errorf("get position %s: %w", symbol, err)
	}
	return shares, nil
}
