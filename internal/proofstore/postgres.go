package proofstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the default driver: blobs land in their own table, keyed
// by content address, separate from the transactional investment rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := Ref(data)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO proof_blobs (ref, content_type, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (ref) DO NOTHING
	`, ref, contentType, data)
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (s *PostgresStore) Get(ctx context.Context, ref string) (*Blob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ref, content_type, data
		FROM proof_blobs
		WHERE ref = $1
	`, ref)

	var blob Blob
	if err := row.Scan(&blob.Ref, &blob.ContentType, &blob.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &blob, nil
}
