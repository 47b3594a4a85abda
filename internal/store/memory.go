package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]*model.User
	byUsername map[string]int64
	ledger     []model.Transaction
	nextUserID int64
	nextTxnID  int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[int64]*model.User),
		byUsername: make(map[string]int64),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[u.Username]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, u.Username)
	}

	s.nextUserID++
	u.ID = s.nextUserID

	// Store a copy to avoid external mutation.
	copy := *u
	s.users[u.ID] = &copy
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *s.users[id]
	return &copy, nil
}

func (s *MemoryStore) ApplyTrade(_ context.Context, userID int64, cashDelta decimal.Decimal, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	newCash := u.Cash.Add(cashDelta)
	if newCash.IsNegative() {
		return ErrInsufficientCash
	}

	u.Cash = newCash
	s.nextTxnID++
	txn.ID = s.nextTxnID
	s.ledger = append(s.ledger, *txn)
	return nil
}

func (s *MemoryStore) GetTransactionsByUser(_ context.Context, userID int64) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, t := range s.ledger {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetPositions aggregates net share counts per symbol from the ledger.
// Symbols fully sold (net <= 0) drop out of the result.
func (s *MemoryStore) GetPositions(_ context.Context, userID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	net := make(map[string]int64)
	for _, t := range s.ledger {
		if t.UserID == userID {
			net[t.Symbol] += t.Shares
		}
	}

	positions := make(map[string]int64)
	for symbol, shares := range net {
		if shares > 0 {
			positions[symbol] = shares
		}
	}
	return positions, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID int64, symbol string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var shares int64
	for _, t := range s.ledger {
		if t.UserID == userID && t.Symbol == symbol {
			shares += t.Shares
		}
	}
	return shares, nil
}
