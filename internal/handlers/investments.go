package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/proofstore"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/service"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/validation"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log/slog"
)

type UserGetter interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
}

type InvestmentHandler struct {
	Service *service.InvestmentService
	Users   UserGetter
	Logger  *slog.Logger
}

func NewInvestmentHandler(svc *service.InvestmentService, users UserGetter, logger *slog.Logger) *InvestmentHandler {
	return &InvestmentHandler{Service: svc, Users: users, Logger: logger}
}

func (h *InvestmentHandler) RegisterRoutes(r *gin.Engine, secret []byte) {
	group := r.Group("/investments", auth.Middleware(secret))
	group.POST("", h.Submit)
	group.POST("/by-owner", h.ListByOwner)
	group.GET("/:id/proof", h.GetProof)

	operator := group.Group("", auth.RequireOperator())
	operator.GET("", h.ListAll)
	operator.POST("/:id/status", h.UpdateStatus)
	operator.POST("/:id/profit", h.UpdateProfit)
}

type submitRequest struct {
	OwnerID          string `json:"ownerId"`
	TradingPair      string `json:"tradingPair"`
	InvestmentAmount string `json:"investmentAmount"`
	ExpectedProfit   string `json:"expectedProfit"`
	WithdrawalDate   string `json:"withdrawalDate"`
	ProofFileBase64  string `json:"proofFileBase64"`
	Status           string `json:"status"`
}

type byOwnerRequest struct {
	OwnerID string `json:"ownerId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type profitRequest struct {
	ExpectedProfit string `json:"expectedProfit"`
}

type investmentResponse struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	Username         string    `json:"username"`
	UserEmail        string    `json:"userEmail"`
	TradingPair      string    `json:"tradingPair"`
	InvestmentAmount string    `json:"investmentAmount"`
	ExpectedProfit   string    `json:"expectedProfit"`
	WithdrawalDate   string    `json:"withdrawalDate"`
	ProofRef         string    `json:"proofRef"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type validationErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields"`
}

func toInvestmentResponse(inv *storage.Investment) investmentResponse {
	return investmentResponse{
		ID:               inv.ID.String(),
		OwnerID:          inv.UserID.String(),
		Username:         inv.Username,
		UserEmail:        inv.UserEmail,
		TradingPair:      inv.PairName,
		InvestmentAmount: inv.Amount.String(),
		ExpectedProfit:   inv.ExpectedProfit,
		WithdrawalDate:   inv.WithdrawalDate,
		ProofRef:         inv.ProofRef,
		Status:           inv.Status,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func capabilityFrom(c *gin.Context) (service.Capability, bool) {
	rawID, ok := c.Get(auth.ContextUserIDKey)
	if !ok {
		return service.Capability{}, false
	}
	idStr, ok := rawID.(string)
	if !ok {
		return service.Capability{}, false
	}
	actorID, err := uuid.Parse(idStr)
	if err != nil {
		return service.Capability{}, false
	}

	operator := false
	if rawRoles, ok := c.Get(auth.ContextRolesKey); ok {
		if roles, ok := rawRoles.([]string); ok {
			for _, r := range roles {
				if r == auth.RoleOperator {
					operator = true
				}
			}
		}
	}
	return service.Capability{ActorID: actorID, Operator: operator}, true
}

func (h *InvestmentHandler) Submit(c *gin.Context) {
	capability, ok := capabilityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	// Submissions land on the caller's own account. Operators may file on
	// behalf of another owner by naming them.
	ownerID := capability.ActorID
	if req.OwnerID != "" && req.OwnerID != capability.ActorID.String() {
		if !capability.Operator {
			c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "cannot submit for another owner"})
			return
		}
		parsed, err := uuid.Parse(req.OwnerID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "ownerId must be a uuid"})
			return
		}
		ownerID = parsed
	}

	owner, err := h.Users.GetUserByID(c.Request.Context(), ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "unknown owner"})
			return
		}
		h.Logger.Error("owner lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	if errs := validation.ValidateInvestmentRequest(
		ownerID.String(), owner.DisplayName, owner.Email,
		req.TradingPair, req.InvestmentAmount, req.ExpectedProfit,
		req.WithdrawalDate, req.ProofFileBase64, req.Status,
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, validationErrorResponse{Code: "VALIDATION_ERROR", Message: "invalid investment", Fields: errs})
		return
	}

	amount, err := decimal.NewFromString(req.InvestmentAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "investmentAmount must be numeric"})
		return
	}

	inv, err := h.Service.Submit(c.Request.Context(), service.SubmitInput{
		OwnerID:        ownerID,
		Username:       owner.DisplayName,
		UserEmail:      owner.Email,
		PairName:       req.TradingPair,
		Amount:         amount,
		ExpectedProfit: req.ExpectedProfit,
		WithdrawalDate: req.WithdrawalDate,
		ProofPayload:   req.ProofFileBase64,
		Status:         req.Status,
		IP:             c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		CorrelationID:  c.GetString("X-Request-ID"),
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "investment submitted",
		"investment": toInvestmentResponse(inv),
	})
}

func (h *InvestmentHandler) ListByOwner(c *gin.Context) {
	capability, ok := capabilityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	var req byOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OwnerID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "ownerId is required"})
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "ownerId must be a uuid"})
		return
	}

	items, err := h.Service.ListByOwner(c.Request.Context(), capability, ownerID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	out := make([]investmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toInvestmentResponse(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"investments": out})
}

func (h *InvestmentHandler) ListAll(c *gin.Context) {
	capability, ok := capabilityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	filter := storage.InvestmentFilter{
		Status: c.Query("status"),
		Cursor: c.Query("cursor"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "limit must be an integer"})
			return
		}
		filter.Limit = limit
	}
	if filter.Status != "" {
		canonical, err := service.CanonicalStatus(filter.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_STATUS", Message: "unknown status filter"})
			return
		}
		filter.Status = canonical
	}

	items, nextCursor, err := h.Service.ListAll(c.Request.Context(), capability, filter)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	out := make([]investmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toInvestmentResponse(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"investments": out, "nextCursor": nextCursor})
}

func (h *InvestmentHandler) GetProof(c *gin.Context) {
	capability, ok := capabilityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "id must be a uuid"})
		return
	}

	blob, err := h.Service.GetProof(c.Request.Context(), capability, id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

func (h *InvestmentHandler) UpdateStatus(c *gin.Context) {
	capability, ok := capabilityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "id must be a uuid"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "status is required"})
		return
	}

	inv, err := h.Service.UpdateStatus(c.Request.Context(), capability, id, req.Status, c.ClientIP(), c.Request.UserAgent(), c.GetString("X-Request-ID"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "status updated",
		"investment": toInvestmentResponse(inv),
	})
}

func (h *InvestmentHandler) UpdateProfit(c *gin.Context) {
	capability, ok := capabilityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "id must be a uuid"})
		return
	}

	var req profitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ExpectedProfit == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "expectedProfit is required"})
		return
	}

	inv, err := h.Service.UpdateExpectedProfit(c.Request.Context(), capability, id, req.ExpectedProfit, c.ClientIP(), c.Request.UserAgent(), c.GetString("X-Request-ID"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "expected profit updated",
		"investment": toInvestmentResponse(inv),
	})
}

func (h *InvestmentHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "operator capability required"})
	case errors.Is(err, service.ErrUnknownStatus):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_STATUS", Message: "status must be pending, completed or canceled"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "investment not found"})
	case errors.Is(err, storage.ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_CURSOR", Message: "cursor is not valid"})
	case errors.Is(err, proofstore.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Code: "PROOF_TOO_LARGE", Message: "proof exceeds the size limit"})
	case errors.Is(err, proofstore.ErrMalformed):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_PROOF", Message: "proof payload is not valid base64"})
	case errors.Is(err, proofstore.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "proof not found"})
	default:
		h.Logger.Error("investment operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
	}
}
