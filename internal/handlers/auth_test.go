package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/rate"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/security"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time { return f.now }

type fakeTokenGen struct {
	tokens []string
	idx    int
}

func (f *fakeTokenGen) New() (string, string, error) {
	if f.idx >= len(f.tokens) {
		return "", "", errors.New("no tokens")
	}
	tok := f.tokens[f.idx]
	f.idx++
	return tok, security.HashToken(tok), nil
}

type authMemStore struct {
	mu     sync.Mutex
	users  map[string]*storage.User
	tokens map[string]*storage.RefreshToken
}

func newAuthMemStore() *authMemStore {
	return &authMemStore{
		users:  map[string]*storage.User{},
		tokens: map[string]*storage.RefreshToken{},
	}
}

func (m *authMemStore) CreateUser(_ context.Context, displayName, email, passwordHash, role string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[email]; exists {
		return nil, storage.ErrEmailTaken
	}
	user := &storage.User{
		ID:           uuid.New(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[email] = user
	return user, nil
}

func (m *authMemStore) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (m *authMemStore) GetUserByID(_ context.Context, userID uuid.UUID) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *authMemStore) CreateRefreshToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.tokens[tokenHash] = &storage.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return id, nil
}

func (m *authMemStore) GetRefreshTokenByHash(_ context.Context, hash string) (*storage.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return token, nil
}

func (m *authMemStore) RotateToken(_ context.Context, oldTokenID uuid.UUID, userID uuid.UUID, newHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldToken *storage.RefreshToken
	for _, token := range m.tokens {
		if token.ID == oldTokenID {
			oldToken = token
			break
		}
	}
	if oldToken == nil {
		return uuid.Nil, storage.ErrNotFound
	}
	now := time.Now()
	oldToken.RevokedAt = &now

	id := uuid.New()
	m.tokens[newHash] = &storage.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: newHash,
		ExpiresAt: expiresAt,
	}
	return id, nil
}

func (m *authMemStore) RevokeTokenByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, ok := m.tokens[hash]; ok {
		now := time.Now()
		token.RevokedAt = &now
		return nil
	}
	return storage.ErrNotFound
}

func (m *authMemStore) RevokeAllTokens(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.UserID == userID {
			now := time.Now()
			token.RevokedAt = &now
		}
	}
	return nil
}

var testArgon2 = security.Argon2Params{Memory: 64 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func setupAuthHandler(t *testing.T, store *authMemStore, tokens []string, now time.Time) *AuthHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	limiter := rate.NewMemory(100, time.Minute)
	h := NewAuthHandler(store, logger, "test-secret", 15*time.Minute, 30*24*time.Hour, testArgon2, limiter, "test")
	h.TokenGen = &fakeTokenGen{tokens: tokens}
	h.Clock = fakeClock{now: now}
	return h
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedUser(t *testing.T, store *authMemStore, email, password, role string) *storage.User {
	t.Helper()
	hash, err := security.HashPassword(password, testArgon2)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	user, err := store.CreateUser(context.Background(), "Alice", strings.ToLower(email), hash, role)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestSignupSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	h := setupAuthHandler(t, store, []string{"refresh-1"}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/signup", signupRequest{Username: "Alice", Email: "Alice@Example.com", Password: "s3cret-pass"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var out authResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.AccessToken == "" || out.RefreshToken != "refresh-1" {
		t.Fatalf("expected tokens, got %+v", out)
	}
	if out.User.Email != "alice@example.com" {
		t.Fatalf("expected lowered email, got %q", out.User.Email)
	}
	if out.User.Role != storage.RoleUser {
		t.Fatalf("expected user role, got %q", out.User.Role)
	}

	if _, ok := store.users["alice@example.com"]; !ok {
		t.Fatalf("expected user persisted")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	seedUser(t, store, "alice@example.com", "s3cret-pass", storage.RoleUser)

	h := setupAuthHandler(t, store, []string{"refresh-1"}, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/signup", signupRequest{Username: "Alice", Email: "alice@example.com", Password: "s3cret-pass"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var out errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Code != "EMAIL_TAKEN" {
		t.Fatalf("expected EMAIL_TAKEN, got %q", out.Code)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := setupAuthHandler(t, newAuthMemStore(), nil, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/signup", signupRequest{Username: "Alice", Email: "a@b.c", Password: "short"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLoginSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	seedUser(t, store, "user@example.com", "s3cret-pass", storage.RoleUser)

	h := setupAuthHandler(t, store, []string{"refresh-1"}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/login", loginRequest{Email: "user@example.com", Password: "s3cret-pass"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out authResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.RefreshToken != "refresh-1" {
		t.Fatalf("expected refresh token, got %q", out.RefreshToken)
	}
	if out.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if out.ExpiresIn == 0 {
		t.Fatalf("expected expires_in")
	}

	if _, ok := store.tokens[security.HashToken("refresh-1")]; !ok {
		t.Fatalf("expected refresh token stored")
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	seedUser(t, store, "user@example.com", "s3cret-pass", storage.RoleUser)

	h := setupAuthHandler(t, store, []string{"refresh-1"}, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/login", loginRequest{Email: "user@example.com", Password: "wrong"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := setupAuthHandler(t, newAuthMemStore(), []string{"refresh-1"}, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/login", loginRequest{Email: "nobody@example.com", Password: "whatever"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	h := setupAuthHandler(t, store, nil, time.Now())
	h.RateLimiter = rate.NewMemory(2, time.Minute)
	router := gin.New()
	h.RegisterRoutes(router)

	for i := 0; i < 2; i++ {
		performRequest(router, http.MethodPost, "/auth/login", loginRequest{Email: "x@y.z", Password: "p"})
	}
	resp := performRequest(router, http.MethodPost, "/auth/login", loginRequest{Email: "x@y.z", Password: "p"})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
}

func TestRefreshRotationAndReuse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	user := seedUser(t, store, "user@example.com", "s3cret-pass", storage.RoleUser)
	initialHash := security.HashToken("refresh-1")
	store.tokens[initialHash] = &storage.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: initialHash,
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	h := setupAuthHandler(t, store, []string{"refresh-2"}, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: "refresh-1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out authResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.RefreshToken != "refresh-2" {
		t.Fatalf("expected rotated token, got %q", out.RefreshToken)
	}

	if store.tokens[initialHash].RevokedAt == nil {
		t.Fatalf("expected old token revoked")
	}

	// reuse detection
	resp = performRequest(router, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: "refresh-1"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on reuse, got %d", resp.Code)
	}

	if store.tokens[security.HashToken("refresh-2")].RevokedAt == nil {
		t.Fatalf("expected new token revoked after reuse detection")
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	user := seedUser(t, store, "user@example.com", "s3cret-pass", storage.RoleUser)
	hash := security.HashToken("refresh-1")
	store.tokens[hash] = &storage.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}

	h := setupAuthHandler(t, store, []string{"refresh-2"}, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: "refresh-1"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if store.tokens[hash].RevokedAt == nil {
		t.Fatalf("expected expired token revoked")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newAuthMemStore()
	hash := security.HashToken("refresh-1")
	store.tokens[hash] = &storage.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: hash,
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	h := setupAuthHandler(t, store, nil, time.Now())
	router := gin.New()
	h.RegisterRoutes(router)

	resp := performRequest(router, http.MethodPost, "/auth/logout", refreshRequest{RefreshToken: "refresh-1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	if store.tokens[hash].RevokedAt == nil {
		t.Fatalf("expected token revoked")
	}
}
