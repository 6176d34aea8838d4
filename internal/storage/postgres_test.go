package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupIntegration(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}
	pool, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func createTestUser(t *testing.T, ctx context.Context, store *Store, suffix string) *User {
	t.Helper()
	email := fmt.Sprintf("inv_%s_%s@example.com", suffix, uuid.NewString()[:8])
	user, err := store.CreateUser(ctx, "Alice", email, "test-hash", RoleUser)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func cleanupTestUser(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID) {
	_, _ = pool.Exec(ctx, `DELETE FROM audit_logs WHERE actor_id = $1`, userID)
	_, _ = pool.Exec(ctx, `DELETE FROM investments WHERE user_id = $1`, userID)
	_, _ = pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
}

func timeNowPlusHour() time.Time {
	return time.Now().UTC().Add(time.Hour)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	pool := setupIntegration(t)
	ctx := context.Background()
	store := New(pool)

	user := createTestUser(t, ctx, store, "dup")
	defer cleanupTestUser(ctx, pool, user.ID)

	_, err := store.CreateUser(ctx, "Other", user.Email, "test-hash", RoleUser)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPairLifecycle(t *testing.T) {
	pool := setupIntegration(t)
	ctx := context.Background()
	store := New(pool)

	name := "SOL/USDT-" + uuid.NewString()[:8]
	pair, err := store.CreatePair(ctx, TradingPair{
		Name:           name,
		Price:          decimal.RequireFromString("125.32"),
		MinInvest:      decimal.NewFromInt(50),
		MaxInvest:      decimal.NewFromInt(10000),
		MinProfit:      decimal.NewFromInt(100),
		MaxProfit:      decimal.NewFromInt(200),
		WithdrawalDays: 14,
		TradeHistory: []TradeMark{
			{Value: "+3.2", Kind: "profit"},
			{Value: "-1.08", Kind: "loss"},
		},
	})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	defer func() { _, _ = pool.Exec(ctx, `DELETE FROM trading_pairs WHERE id = $1`, pair.ID) }()

	if !pair.Price.Equal(decimal.RequireFromString("125.32")) {
		t.Fatalf("price round trip = %s", pair.Price)
	}
	if len(pair.TradeHistory) != 2 {
		t.Fatalf("trade history round trip = %d marks", len(pair.TradeHistory))
	}

	fetched, err := store.GetPairByName(ctx, name)
	if err != nil {
		t.Fatalf("GetPairByName: %v", err)
	}
	if fetched.ID != pair.ID {
		t.Fatalf("expected same pair")
	}

	// Duplicate names are rejected.
	if _, err := store.CreatePair(ctx, *pair); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	pair.Price = decimal.RequireFromString("140.5")
	updated, err := store.UpdatePair(ctx, pair.ID, *pair)
	if err != nil {
		t.Fatalf("UpdatePair: %v", err)
	}
	if !updated.Price.Equal(decimal.RequireFromString("140.5")) {
		t.Fatalf("updated price = %s", updated.Price)
	}

	if err := store.DeletePair(ctx, pair.ID); err != nil {
		t.Fatalf("DeletePair: %v", err)
	}
	if err := store.DeletePair(ctx, pair.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInvestmentLifecycle(t *testing.T) {
	pool := setupIntegration(t)
	ctx := context.Background()
	store := New(pool)

	user := createTestUser(t, ctx, store, "lifecycle")
	defer cleanupTestUser(ctx, pool, user.ID)

	inv, err := store.CreateInvestment(ctx, Investment{
		UserID:         user.ID,
		Username:       user.DisplayName,
		UserEmail:      user.Email,
		PairName:       "SOL/USDT",
		Amount:         decimal.NewFromInt(500),
		ExpectedProfit: "100 - 200",
		WithdrawalDate: "2026-09-12",
		ProofRef:       "test-ref",
		Status:         StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateInvestment: %v", err)
	}
	if inv.PairID != nil {
		t.Fatalf("expected nil pair id for unresolved pair name")
	}

	// ListByOwner returns the record; an unknown owner gets an empty list.
	list, err := store.ListInvestmentsByOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListInvestmentsByOwner: %v", err)
	}
	if len(list) != 1 || list[0].ID != inv.ID {
		t.Fatalf("expected the created record, got %v", list)
	}
	empty, err := store.ListInvestmentsByOwner(ctx, uuid.New())
	if err != nil {
		t.Fatalf("ListInvestmentsByOwner empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty))
	}

	updated, err := store.UpdateInvestmentStatus(ctx, inv.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateInvestmentStatus: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("status = %q", updated.Status)
	}
	if !updated.UpdatedAt.After(inv.UpdatedAt) {
		t.Fatalf("expected updated_at to move")
	}

	withProfit, err := store.UpdateInvestmentProfit(ctx, inv.ID, "250 - 300")
	if err != nil {
		t.Fatalf("UpdateInvestmentProfit: %v", err)
	}
	if withProfit.ExpectedProfit != "250 - 300" {
		t.Fatalf("expected profit = %q", withProfit.ExpectedProfit)
	}
	if withProfit.Status != StatusCompleted {
		t.Fatalf("profit update must not touch status")
	}
}

func TestListInvestmentsPagination(t *testing.T) {
	pool := setupIntegration(t)
	ctx := context.Background()
	store := New(pool)

	user := createTestUser(t, ctx, store, "page")
	defer cleanupTestUser(ctx, pool, user.ID)

	for i := 0; i < 5; i++ {
		_, err := store.CreateInvestment(ctx, Investment{
			UserID:         user.ID,
			Username:       user.DisplayName,
			UserEmail:      user.Email,
			PairName:       "SOL/USDT",
			Amount:         decimal.NewFromInt(int64(100 + i)),
			ExpectedProfit: "10",
			WithdrawalDate: "2026-09-12",
			ProofRef:       "test-ref",
			Status:         StatusPending,
		})
		if err != nil {
			t.Fatalf("CreateInvestment %d: %v", i, err)
		}
	}

	seen := map[uuid.UUID]bool{}
	cursor := ""
	for {
		page, next, err := store.ListInvestments(ctx, InvestmentFilter{Status: StatusPending, Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("ListInvestments: %v", err)
		}
		for _, inv := range page {
			if inv.UserID != user.ID {
				continue
			}
			if seen[inv.ID] {
				t.Fatalf("duplicate record %s across pages", inv.ID)
			}
			seen[inv.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 records across pages, got %d", len(seen))
	}

	if _, _, err := store.ListInvestments(ctx, InvestmentFilter{Cursor: "not-a-cursor"}); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	pool := setupIntegration(t)
	ctx := context.Background()
	store := New(pool)

	user := createTestUser(t, ctx, store, "tokens")
	defer cleanupTestUser(ctx, pool, user.ID)

	id, err := store.CreateRefreshToken(ctx, user.ID, "hash-1", timeNowPlusHour(), "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	if _, err := store.RotateToken(ctx, id, user.ID, "hash-2", timeNowPlusHour(), "127.0.0.1", "test-agent"); err != nil {
		t.Fatalf("RotateToken: %v", err)
	}

	old, err := store.GetRefreshTokenByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetRefreshTokenByHash: %v", err)
	}
	if old.RevokedAt == nil {
		t.Fatalf("expected old token revoked")
	}

	// Rotating an already revoked token fails; the caller treats it as reuse.
	if _, err := store.RotateToken(ctx, id, user.ID, "hash-3", timeNowPlusHour(), "127.0.0.1", "test-agent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
