package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/rate"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/security"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type AuthStore interface {
	CreateUser(ctx context.Context, displayName, email, passwordHash, role string) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error)
	GetRefreshTokenByHash(ctx context.Context, hash string) (*storage.RefreshToken, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
	RotateToken(ctx context.Context, oldTokenID uuid.UUID, userID uuid.UUID, newHash string, expiresAt time.Time, ip string, userAgent string) (uuid.UUID, error)
	RevokeTokenByHash(ctx context.Context, hash string) error
	RevokeAllTokens(ctx context.Context, userID uuid.UUID) error
}

type AuthHandler struct {
	Store       AuthStore
	Logger      *slog.Logger
	JWTSecret   []byte
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	Argon2      security.Argon2Params
	RateLimiter rate.Limiter
	TokenGen    security.TokenGenerator
	Clock       Clock
	Issuer      string
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type authResponse struct {
	Message      string       `json:"message"`
	User         userResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewAuthHandler(store AuthStore, logger *slog.Logger, jwtSecret string, accessTTL, refreshTTL time.Duration, argon2 security.Argon2Params, limiter rate.Limiter, issuer string) *AuthHandler {
	return &AuthHandler{
		Store:       store,
		Logger:      logger,
		JWTSecret:   []byte(jwtSecret),
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
		Argon2:      argon2,
		RateLimiter: limiter,
		TokenGen:    security.DefaultTokenGenerator{},
		Clock:       systemClock{},
		Issuer:      issuer,
	}
}

func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "username, email and a password of at least 8 characters are required"})
		return
	}

	hash, err := security.HashPassword(req.Password, h.Argon2)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), req.Username, req.Email, hash, storage.RoleUser)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "EMAIL_TAKEN", Message: "email already registered"})
			return
		}
		h.Logger.Error("user insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.issueTokens(c, user, http.StatusCreated, "signup successful")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	ip := c.ClientIP()
	allowed, _, err := h.RateLimiter.Allow(c.Request.Context(), ip, h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
	} else if !allowed {
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
			return
		}
		h.Logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return
	}

	h.issueTokens(c, user, http.StatusOK, "login successful")
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	providedHash := security.HashToken(req.RefreshToken)

	token, err := h.Store.GetRefreshTokenByHash(c.Request.Context(), providedHash)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	// A revoked token coming back means the token leaked somewhere; cut the
	// whole session family.
	if token.RevokedAt != nil {
		_ = h.Store.RevokeAllTokens(c.Request.Context(), token.UserID)
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "token reuse detected"})
		return
	}

	now := h.Clock.Now()
	if token.ExpiresAt.Before(now) {
		_ = h.Store.RevokeTokenByHash(c.Request.Context(), providedHash)
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "token expired"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), token.UserID)
	if err != nil {
		h.Logger.Error("refresh user lookup failed", "error", err)
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	newToken, newHash, err := h.TokenGen.New()
	if err != nil {
		h.Logger.Error("refresh token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	if _, err := h.Store.RotateToken(c.Request.Context(), token.ID, token.UserID, newHash, now.Add(h.RefreshTTL), c.ClientIP(), c.Request.UserAgent()); err != nil {
		h.Logger.Error("token rotation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	access, err := security.NewAccessToken(user.ID.String(), rolesFor(user), h.JWTSecret, h.AccessTTL, now, h.Issuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, authResponse{
		Message:      "token refreshed",
		User:         toUserResponse(user),
		AccessToken:  access,
		RefreshToken: newToken,
		ExpiresIn:    int64(h.AccessTTL.Seconds()),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if err := h.Store.RevokeTokenByHash(c.Request.Context(), security.HashToken(req.RefreshToken)); err != nil {
		h.Logger.Error("revoke token failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *storage.User, status int, message string) {
	now := h.Clock.Now()

	access, err := security.NewAccessToken(user.ID.String(), rolesFor(user), h.JWTSecret, h.AccessTTL, now, h.Issuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	refreshToken, refreshHash, err := h.TokenGen.New()
	if err != nil {
		h.Logger.Error("refresh token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	if _, err := h.Store.CreateRefreshToken(c.Request.Context(), user.ID, refreshHash, now.Add(h.RefreshTTL), c.ClientIP(), c.Request.UserAgent()); err != nil {
		h.Logger.Error("refresh token insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(status, authResponse{
		Message:      message,
		User:         toUserResponse(user),
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(h.AccessTTL.Seconds()),
	})
}

func rolesFor(user *storage.User) []string {
	roles := []string{storage.RoleUser}
	if user.Role == storage.RoleOperator {
		roles = append(roles, storage.RoleOperator)
	}
	return roles
}

func toUserResponse(user *storage.User) userResponse {
	return userResponse{
		ID:       user.ID.String(),
		Username: user.DisplayName,
		Email:    user.Email,
		Role:     user.Role,
	}
}
