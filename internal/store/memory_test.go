package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/model"
	"github.com/atmx/brokerage/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedUser(t *testing.T, ms *store.MemoryStore, username string, cash decimal.Decimal) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		PasswordHash: "x",
		Cash:         cash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := ms.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func txn(userID int64, symbol string, shares int64, price float64) *model.Transaction {
	return &model.Transaction{
		UserID:    userID,
		Symbol:    symbol,
		Shares:    shares,
		Price:     d(price),
		Timestamp: time.Now().UTC(),
	}
}

func TestCreateUser_AssignsIDAndRejectsDuplicates(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, "alice", d(10000))
	if u.ID == 0 {
		t.Error("expected assigned user ID")
	}

	err := ms.CreateUser(context.Background(), &model.User{Username: "alice"})
	if !errors.Is(err, store.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestApplyTrade_ConditionalDebit(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, "alice", d(100))
	ctx := context.Background()

	// Debit beyond the balance writes nothing.
	err := ms.ApplyTrade(ctx, u.ID, d(-150), txn(u.ID, "AAPL", 3, 50))
	if !errors.Is(err, store.ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	got, _ := ms.GetUser(ctx, u.ID)
	if !got.Cash.Equal(d(100)) {
		t.Errorf("cash should be unchanged, got %s", got.Cash)
	}
	txns, _ := ms.GetTransactionsByUser(ctx, u.ID)
	if len(txns) != 0 {
		t.Errorf("ledger should be empty, got %d entries", len(txns))
	}

	// Debiting the exact balance is allowed.
	entry := txn(u.ID, "AAPL", 2, 50)
	if err := ms.ApplyTrade(ctx, u.ID, d(-100), entry); err != nil {
		t.Fatalf("apply trade failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("expected assigned transaction ID")
	}
	got, _ = ms.GetUser(ctx, u.ID)
	if !got.Cash.IsZero() {
		t.Errorf("cash should be 0, got %s", got.Cash)
	}
}

func TestApplyTrade_UnknownUser(t *testing.T) {
	ms := store.NewMemoryStore()
	err := ms.ApplyTrade(context.Background(), 42, d(10), txn(42, "AAPL", -1, 10))
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetPositions_ExcludesNonPositive(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, "alice", d(10000))
	ctx := context.Background()

	ms.ApplyTrade(ctx, u.ID, d(-500), txn(u.ID, "AAPL", 10, 50))
	ms.ApplyTrade(ctx, u.ID, d(-200), txn(u.ID, "MSFT", 2, 100))
	ms.ApplyTrade(ctx, u.ID, d(600), txn(u.ID, "AAPL", -10, 60)) // fully sold

	positions, err := ms.GetPositions(ctx, u.ID)
	if err != nil {
		t.Fatalf("get positions failed: %v", err)
	}
	if _, ok := positions["AAPL"]; ok {
		t.Error("fully sold symbol should not appear")
	}
	if positions["MSFT"] != 2 {
		t.Errorf("expected MSFT position 2, got %d", positions["MSFT"])
	}

	shares, _ := ms.GetPosition(ctx, u.ID, "AAPL")
	if shares != 0 {
		t.Errorf("net AAPL position should be 0, got %d", shares)
	}
}

func TestLedgerIsolationBetweenUsers(t *testing.T) {
	ms := store.NewMemoryStore()
	alice := seedUser(t, ms, "alice", d(10000))
	bob := seedUser(t, ms, "bob", d(10000))
	ctx := context.Background()

	ms.ApplyTrade(ctx, alice.ID, d(-500), txn(alice.ID, "AAPL", 10, 50))
	ms.ApplyTrade(ctx, bob.ID, d(-100), txn(bob.ID, "MSFT", 1, 100))

	txns, _ := ms.GetTransactionsByUser(ctx, alice.ID)
	if len(txns) != 1 || txns[0].Symbol != "AAPL" {
		t.Errorf("unexpected ledger for alice: %+v", txns)
	}
	positions, _ := ms.GetPositions(ctx, bob.ID)
	if len(positions) != 1 || positions["MSFT"] != 1 {
		t.Errorf("unexpected positions for bob: %+v", positions)
	}
}
