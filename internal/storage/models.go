package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

type User struct {
	ID           uuid.UUID
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// TradeMark is one entry of a pair's trade-history strip: a signed numeric
// string ("+3.2", "-1.08") tagged as profit or loss.
type TradeMark struct {
	Value string `json:"value"`
	Kind  string `json:"kind"`
}

type TradingPair struct {
	ID             uuid.UUID
	Name           string
	Price          decimal.Decimal
	MinInvest      decimal.Decimal
	MaxInvest      decimal.Decimal
	MinProfit      decimal.Decimal
	MaxProfit      decimal.Decimal
	WithdrawalDays int
	TradeHistory   []TradeMark
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Investment keeps the owner's name/email and the pair name as captured at
// submission time; the ids ride alongside so a later reconciliation pass can
// detect renames. PairID is nil when the pair name did not resolve.
type Investment struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Username       string
	UserEmail      string
	PairID         *uuid.UUID
	PairName       string
	Amount         decimal.Decimal
	ExpectedProfit string
	WithdrawalDate string
	ProofRef       string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type InvestmentFilter struct {
	Status string
	Limit  int
	Cursor string
}

type AuditLog struct {
	ActorID    uuid.UUID
	ActorType  string
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	IP         string
	UserAgent  string
}
