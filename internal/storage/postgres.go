package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already exists")
	ErrNameTaken     = errors.New("name already exists")
	ErrInvalidCursor = errors.New("invalid cursor")
)

const pgUniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, displayName, email, passwordHash, role string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, display_name, email, password_hash, role, created_at
	`, displayName, email, passwordHash, role)

	user, err := scanUserRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`, email)
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, userID)
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUserRow(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

// --- refresh tokens ---

func (s *Store) CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_ip, created_user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, tokenHash, expiresAt, ip, userAgent)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, hash)
	var token RefreshToken
	if err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.RevokedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (s *Store) RotateToken(ctx context.Context, oldTokenID uuid.UUID, userID uuid.UUID, newHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, oldTokenID)
	if err != nil {
		return uuid.Nil, err
	}
	if cmd.RowsAffected() == 0 {
		return uuid.Nil, ErrNotFound
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_ip, created_user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, newHash, expiresAt, ip, userAgent)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) RevokeTokenByHash(ctx context.Context, hash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, hash)
	return err
}

func (s *Store) RevokeAllTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}

// --- trading pairs ---

const pairColumns = `id, name, price::text, min_invest::text, max_invest::text, min_profit::text, max_profit::text, withdrawal_days, trade_history, created_at, updated_at`

func (s *Store) CreatePair(ctx context.Context, pair TradingPair) (*TradingPair, error) {
	historyJSON, err := json.Marshal(pair.TradeHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal trade history: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO trading_pairs (name, price, min_invest, max_invest, min_profit, max_profit, withdrawal_days, trade_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING `+pairColumns+`
	`, pair.Name, pair.Price.String(), pair.MinInvest.String(), pair.MaxInvest.String(),
		pair.MinProfit.String(), pair.MaxProfit.String(), pair.WithdrawalDays, historyJSON)

	stored, err := scanPairRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return stored, nil
}

func (s *Store) ListPairs(ctx context.Context) ([]TradingPair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pairColumns+`
		FROM trading_pairs
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := make([]TradingPair, 0)
	for rows.Next() {
		pair, err := scanPairRow(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, *pair)
	}
	return pairs, rows.Err()
}

func (s *Store) GetPairByName(ctx context.Context, name string) (*TradingPair, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pairColumns+`
		FROM trading_pairs
		WHERE name = $1
	`, name)
	pair, err := scanPairRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pair, nil
}

// UpdatePair replaces every mutable field; partial updates are not a thing
// the catalog supports.
func (s *Store) UpdatePair(ctx context.Context, pairID uuid.UUID, pair TradingPair) (*TradingPair, error) {
	historyJSON, err := json.Marshal(pair.TradeHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal trade history: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE trading_pairs
		SET name = $1, price = $2, min_invest = $3, max_invest = $4, min_profit = $5, max_profit = $6,
		    withdrawal_days = $7, trade_history = $8::jsonb, updated_at = now()
		WHERE id = $9
		RETURNING `+pairColumns+`
	`, pair.Name, pair.Price.String(), pair.MinInvest.String(), pair.MaxInvest.String(),
		pair.MinProfit.String(), pair.MaxProfit.String(), pair.WithdrawalDays, historyJSON, pairID)

	stored, err := scanPairRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return stored, nil
}

func (s *Store) DeletePair(ctx context.Context, pairID uuid.UUID) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM trading_pairs WHERE id = $1`, pairID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPairRow(row pgx.Row) (*TradingPair, error) {
	var pair TradingPair
	var price, minInvest, maxInvest, minProfit, maxProfit string
	var historyBytes []byte
	if err := row.Scan(&pair.ID, &pair.Name, &price, &minInvest, &maxInvest, &minProfit, &maxProfit,
		&pair.WithdrawalDays, &historyBytes, &pair.CreatedAt, &pair.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if pair.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if pair.MinInvest, err = decimal.NewFromString(minInvest); err != nil {
		return nil, fmt.Errorf("parse min_invest: %w", err)
	}
	if pair.MaxInvest, err = decimal.NewFromString(maxInvest); err != nil {
		return nil, fmt.Errorf("parse max_invest: %w", err)
	}
	if pair.MinProfit, err = decimal.NewFromString(minProfit); err != nil {
		return nil, fmt.Errorf("parse min_profit: %w", err)
	}
	if pair.MaxProfit, err = decimal.NewFromString(maxProfit); err != nil {
		return nil, fmt.Errorf("parse max_profit: %w", err)
	}
	if len(historyBytes) > 0 {
		if err := json.Unmarshal(historyBytes, &pair.TradeHistory); err != nil {
			return nil, fmt.Errorf("unmarshal trade history: %w", err)
		}
	}
	return &pair, nil
}

// --- investments ---

const investmentColumns = `id, user_id, username, user_email, pair_id, pair_name, amount::text, expected_profit, withdrawal_date, proof_ref, status, created_at, updated_at`

func (s *Store) CreateInvestment(ctx context.Context, inv Investment) (*Investment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO investments (user_id, username, user_email, pair_id, pair_name, amount, expected_profit, withdrawal_date, proof_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+investmentColumns+`
	`, inv.UserID, inv.Username, inv.UserEmail, inv.PairID, inv.PairName, inv.Amount.String(),
		inv.ExpectedProfit, inv.WithdrawalDate, inv.ProofRef, inv.Status)

	return scanInvestmentRow(row)
}

// ListInvestmentsByOwner returns the owner's records in insertion order.
// An owner with no records gets an empty slice, not an error.
func (s *Store) ListInvestmentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Investment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+investmentColumns+`
		FROM investments
		WHERE user_id = $1
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Investment, 0)
	for rows.Next() {
		inv, err := scanInvestmentRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *inv)
	}
	return items, rows.Err()
}

func (s *Store) ListInvestments(ctx context.Context, filter InvestmentFilter) ([]Investment, string, error) {
	limit := clampLimit(filter.Limit)

	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE 1=1
	`
	args := []any{}
	idx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.Cursor != "" {
		ts, id, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
		query += fmt.Sprintf(" AND (created_at, id) > ($%d, $%d)", idx, idx+1)
		args = append(args, ts, id)
		idx += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", idx)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	items := make([]Investment, 0, limit)
	for rows.Next() {
		inv, err := scanInvestmentRow(rows)
		if err != nil {
			return nil, "", err
		}
		items = append(items, *inv)
	}
	if rows.Err() != nil {
		return nil, "", rows.Err()
	}

	var nextCursor string
	if len(items) > limit {
		last := items[limit]
		items = items[:limit]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	return items, nextCursor, nil
}

func (s *Store) GetInvestmentByID(ctx context.Context, investmentID uuid.UUID) (*Investment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+investmentColumns+`
		FROM investments
		WHERE id = $1
	`, investmentID)
	inv, err := scanInvestmentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

// UpdateInvestmentStatus touches the status column only. Transition policy
// lives in the lifecycle service; the store accepts whatever it is handed.
func (s *Store) UpdateInvestmentStatus(ctx context.Context, investmentID uuid.UUID, status string) (*Investment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE investments
		SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+investmentColumns+`
	`, status, investmentID)
	inv, err := scanInvestmentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (s *Store) UpdateInvestmentProfit(ctx context.Context, investmentID uuid.UUID, expectedProfit string) (*Investment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE investments
		SET expected_profit = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+investmentColumns+`
	`, expectedProfit, investmentID)
	inv, err := scanInvestmentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

func scanInvestmentRow(row pgx.Row) (*Investment, error) {
	var inv Investment
	var amount string
	if err := row.Scan(&inv.ID, &inv.UserID, &inv.Username, &inv.UserEmail, &inv.PairID, &inv.PairName,
		&amount, &inv.ExpectedProfit, &inv.WithdrawalDate, &inv.ProofRef, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	inv.Amount = parsed
	return &inv, nil
}

// --- audit ---

func (s *Store) InsertAudit(ctx context.Context, log AuditLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, actor_type, action, entity_type, entity_id, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
	`, log.ActorID, log.ActorType, log.Action, log.EntityType, log.EntityID, map[string]string{
		"ip":         log.IP,
		"user_agent": log.UserAgent,
	})
	return err
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func encodeCursor(ts time.Time, id uuid.UUID) string {
	payload := fmt.Sprintf("%s|%s", ts.UTC().Format(time.RFC3339Nano), id.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return ts, id, nil
}
