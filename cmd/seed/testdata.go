package main

import (
	"context"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/proofstore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// seedTestData plants one pending investment with a stored proof blob so the
// operator endpoints have something to act on right after a fresh seed.
func seedTestData(ctx context.Context, pool *pgxpool.Pool) error {
	sampleInvestmentID := uuid.MustParse("00000000-0000-0000-0000-000000000101")

	proofData := []byte("seed payment proof placeholder")
	ref := proofstore.Ref(proofData)

	_, err := pool.Exec(ctx, `
		INSERT INTO proof_blobs (ref, content_type, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (ref) DO NOTHING
	`, ref, "text/plain", proofData)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO investments (id, user_id, username, user_email, pair_id, pair_name, amount, expected_profit, withdrawal_date, proof_ref, status)
		SELECT $1, $2, 'Demo User', 'demo@example.com', tp.id, tp.name, 500, '100 - 200', '2026-09-12', $3, 'pending'
		FROM trading_pairs tp
		WHERE tp.name = 'SOL/USDT'
		ON CONFLICT (id) DO NOTHING
	`, sampleInvestmentID, demoUserID, ref)
	return err
}
