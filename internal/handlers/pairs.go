package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/validation"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log/slog"
)

type PairStore interface {
	CreatePair(ctx context.Context, pair storage.TradingPair) (*storage.TradingPair, error)
	ListPairs(ctx context.Context) ([]storage.TradingPair, error)
	UpdatePair(ctx context.Context, pairID uuid.UUID, pair storage.TradingPair) (*storage.TradingPair, error)
	DeletePair(ctx context.Context, pairID uuid.UUID) error
}

type PairHandler struct {
	Store  PairStore
	Logger *slog.Logger
}

func NewPairHandler(store PairStore, logger *slog.Logger) *PairHandler {
	return &PairHandler{Store: store, Logger: logger}
}

// RegisterRoutes keeps the catalog readable by any authenticated user while
// mutations stay behind the operator role.
func (h *PairHandler) RegisterRoutes(r *gin.Engine, secret []byte) {
	group := r.Group("/trading-pairs", auth.Middleware(secret))
	group.GET("", h.List)

	operator := group.Group("", auth.RequireOperator())
	operator.POST("", h.Create)
	operator.PUT("/:id", h.Update)
	operator.DELETE("/:id", h.Delete)
}

type tradeMarkPayload struct {
	Value string `json:"value"`
	Kind  string `json:"kind"`
}

type pairRequest struct {
	Name           string             `json:"name"`
	Price          string             `json:"price"`
	MinInvest      string             `json:"minInvest"`
	MaxInvest      string             `json:"maxInvest"`
	MinProfit      string             `json:"minProfit"`
	MaxProfit      string             `json:"maxProfit"`
	WithdrawalDays int                `json:"withdrawalDays"`
	TradeHistory   []tradeMarkPayload `json:"tradeHistory"`
}

type pairResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Price          string             `json:"price"`
	MinInvest      string             `json:"minInvest"`
	MaxInvest      string             `json:"maxInvest"`
	MinProfit      string             `json:"minProfit"`
	MaxProfit      string             `json:"maxProfit"`
	WithdrawalDays int                `json:"withdrawalDays"`
	TradeHistory   []tradeMarkPayload `json:"tradeHistory"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func toPairResponse(pair *storage.TradingPair) pairResponse {
	history := make([]tradeMarkPayload, 0, len(pair.TradeHistory))
	for _, mark := range pair.TradeHistory {
		history = append(history, tradeMarkPayload{Value: mark.Value, Kind: mark.Kind})
	}
	return pairResponse{
		ID:             pair.ID.String(),
		Name:           pair.Name,
		Price:          pair.Price.String(),
		MinInvest:      pair.MinInvest.String(),
		MaxInvest:      pair.MaxInvest.String(),
		MinProfit:      pair.MinProfit.String(),
		MaxProfit:      pair.MaxProfit.String(),
		WithdrawalDays: pair.WithdrawalDays,
		TradeHistory:   history,
		CreatedAt:      pair.CreatedAt,
		UpdatedAt:      pair.UpdatedAt,
	}
}

func (h *PairHandler) parsePair(c *gin.Context) (*storage.TradingPair, bool) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return nil, false
	}

	history := make([]validation.TradeMarkInput, 0, len(req.TradeHistory))
	for _, mark := range req.TradeHistory {
		history = append(history, validation.TradeMarkInput{Value: mark.Value, Kind: mark.Kind})
	}

	if errs := validation.ValidatePairRequest(req.Name, req.Price, req.MinInvest, req.MaxInvest, req.MinProfit, req.MaxProfit, req.WithdrawalDays, history); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, validationErrorResponse{Code: "VALIDATION_ERROR", Message: "invalid trading pair", Fields: errs})
		return nil, false
	}

	pair := &storage.TradingPair{
		Name:           strings.TrimSpace(req.Name),
		WithdrawalDays: req.WithdrawalDays,
	}
	pair.Price, _ = decimal.NewFromString(strings.TrimSpace(req.Price))
	pair.MinInvest, _ = decimal.NewFromString(strings.TrimSpace(req.MinInvest))
	pair.MaxInvest, _ = decimal.NewFromString(strings.TrimSpace(req.MaxInvest))
	pair.MinProfit, _ = decimal.NewFromString(strings.TrimSpace(req.MinProfit))
	pair.MaxProfit, _ = decimal.NewFromString(strings.TrimSpace(req.MaxProfit))
	for _, mark := range req.TradeHistory {
		pair.TradeHistory = append(pair.TradeHistory, storage.TradeMark{
			Value: strings.TrimSpace(mark.Value),
			Kind:  strings.ToLower(strings.TrimSpace(mark.Kind)),
		})
	}
	return pair, true
}

func (h *PairHandler) Create(c *gin.Context) {
	pair, ok := h.parsePair(c)
	if !ok {
		return
	}

	stored, err := h.Store.CreatePair(c.Request.Context(), *pair)
	if err != nil {
		if errors.Is(err, storage.ErrNameTaken) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "NAME_TAKEN", Message: "trading pair already exists"})
			return
		}
		h.Logger.Error("pair insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "trading pair created",
		"pair":    toPairResponse(stored),
	})
}

func (h *PairHandler) List(c *gin.Context) {
	pairs, err := h.Store.ListPairs(c.Request.Context())
	if err != nil {
		h.Logger.Error("pair list failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	out := make([]pairResponse, 0, len(pairs))
	for i := range pairs {
		out = append(out, toPairResponse(&pairs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"pairs": out})
}

func (h *PairHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "id must be a uuid"})
		return
	}

	pair, ok := h.parsePair(c)
	if !ok {
		return
	}

	stored, err := h.Store.UpdatePair(c.Request.Context(), id, *pair)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "trading pair not found"})
		case errors.Is(err, storage.ErrNameTaken):
			c.JSON(http.StatusBadRequest, errorResponse{Code: "NAME_TAKEN", Message: "trading pair already exists"})
		default:
			h.Logger.Error("pair update failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "trading pair updated",
		"pair":    toPairResponse(stored),
	})
}

func (h *PairHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "id must be a uuid"})
		return
	}

	if err := h.Store.DeletePair(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "trading pair not found"})
			return
		}
		h.Logger.Error("pair delete failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "trading pair deleted"})
}
