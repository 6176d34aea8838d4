package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	demoUserID     = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	operatorUserID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

var seedArgon2 = security.Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

func main() {
	env := getEnv("CAI_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: CAI_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "cryptoaitrade")
	user := getEnv("POSTGRES_USER", "cryptoai")
	password := getEnv("POSTGRES_PASSWORD", "cryptoai")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	fmt.Println("Seeding database...")

	if err := seedUsers(ctx, pool); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Println("✓ Users seeded")

	if err := seedPairs(ctx, pool); err != nil {
		log.Fatalf("seed trading pairs: %v", err)
	}
	fmt.Println("✓ Trading pairs seeded")

	if os.Getenv("SEED_TESTDATA") == "1" {
		if err := seedTestData(ctx, pool); err != nil {
			log.Fatalf("seed test data: %v", err)
		}
		fmt.Println("✓ Test data seeded")
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo Credentials:")
	fmt.Println("  Email: demo@example.com")
	fmt.Println("  Password: demo1234")
	fmt.Println("  Email: operator@example.com")
	fmt.Println("  Password: operator1234")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	demoHash, err := security.HashPassword("demo1234", seedArgon2)
	if err != nil {
		return err
	}
	operatorHash, err := security.HashPassword("operator1234", seedArgon2)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET password_hash = $4
	`, demoUserID, "Demo User", "demo@example.com", demoHash, "user")
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET password_hash = $4, role = $5
	`, operatorUserID, "Operator", "operator@example.com", operatorHash, "operator")
	return err
}

type seedPair struct {
	name           string
	price          string
	minInvest      string
	maxInvest      string
	minProfit      string
	maxProfit      string
	withdrawalDays int
	history        []map[string]string
}

func seedPairs(ctx context.Context, pool *pgxpool.Pool) error {
	pairs := []seedPair{
		{
			name: "SOL/USDT", price: "125.32", minInvest: "50", maxInvest: "10000",
			minProfit: "100", maxProfit: "200", withdrawalDays: 14,
			history: []map[string]string{
				{"value": "+3.2", "kind": "profit"},
				{"value": "-1.08", "kind": "loss"},
				{"value": "+2.5", "kind": "profit"},
			},
		},
		{
			name: "BTC/USDT", price: "64230.10", minInvest: "100", maxInvest: "50000",
			minProfit: "250", maxProfit: "600", withdrawalDays: 30,
			history: []map[string]string{
				{"value": "+1.7", "kind": "profit"},
				{"value": "+0.9", "kind": "profit"},
			},
		},
		{
			name: "ETH/USDT", price: "3150.44", minInvest: "75", maxInvest: "25000",
			minProfit: "150", maxProfit: "400", withdrawalDays: 21,
			history: []map[string]string{
				{"value": "-0.6", "kind": "loss"},
				{"value": "+4.1", "kind": "profit"},
			},
		},
	}

	for _, pair := range pairs {
		historyJSON, err := json.Marshal(pair.history)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO trading_pairs (name, price, min_invest, max_invest, min_profit, max_profit, withdrawal_days, trade_history)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
			ON CONFLICT (name) DO UPDATE SET price = $2, trade_history = $8::jsonb, updated_at = now()
		`, pair.name, pair.price, pair.minInvest, pair.maxInvest, pair.minProfit, pair.maxProfit, pair.withdrawalDays, historyJSON)
		if err != nil {
			return err
		}
	}
	return nil
}
