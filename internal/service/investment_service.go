package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/proofstore"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/kafka"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log/slog"
)

var ErrForbidden = errors.New("operator capability required")

// Capability says what the calling actor may do. It is built from verified
// claims at the transport boundary and checked again here, so the policy
// holds for any caller, not just HTTP.
type Capability struct {
	ActorID  uuid.UUID
	Operator bool
}

func (c Capability) canActFor(ownerID uuid.UUID) bool {
	return c.Operator || c.ActorID == ownerID
}

type InvestmentStore interface {
	GetPairByName(ctx context.Context, name string) (*storage.TradingPair, error)
	CreateInvestment(ctx context.Context, inv storage.Investment) (*storage.Investment, error)
	ListInvestmentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]storage.Investment, error)
	ListInvestments(ctx context.Context, filter storage.InvestmentFilter) ([]storage.Investment, string, error)
	GetInvestmentByID(ctx context.Context, investmentID uuid.UUID) (*storage.Investment, error)
	UpdateInvestmentStatus(ctx context.Context, investmentID uuid.UUID, status string) (*storage.Investment, error)
	UpdateInvestmentProfit(ctx context.Context, investmentID uuid.UUID, expectedProfit string) (*storage.Investment, error)
	InsertAudit(ctx context.Context, log storage.AuditLog) error
}

type Topics struct {
	InvestmentsSubmitted string
	InvestmentsUpdated   string
}

type InvestmentService struct {
	store         InvestmentStore
	proofs        proofstore.Store
	producer      kafka.Publisher
	logger        *slog.Logger
	metrics       *Metrics
	topics        Topics
	proofMaxBytes int
}

type SubmitInput struct {
	OwnerID        uuid.UUID
	Username       string
	UserEmail      string
	PairName       string
	Amount         decimal.Decimal
	ExpectedProfit string
	WithdrawalDate string
	ProofPayload   string
	Status         string
	IP             string
	UserAgent      string
	CorrelationID  string
}

func NewInvestmentService(store InvestmentStore, proofs proofstore.Store, producer kafka.Publisher, logger *slog.Logger, metrics *Metrics, topics Topics, proofMaxBytes int) *InvestmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvestmentService{
		store:         store,
		proofs:        proofs,
		producer:      producer,
		logger:        logger,
		metrics:       metrics,
		topics:        topics,
		proofMaxBytes: proofMaxBytes,
	}
}

// Submit persists a new record. The proof blob is stored content-addressed
// first; the record then only carries the reference. The pair name is kept
// verbatim and its id captured when it resolves, so historical records
// survive catalog renames the same way they always did.
func (s *InvestmentService) Submit(ctx context.Context, input SubmitInput) (*storage.Investment, error) {
	status := storage.StatusPending
	if strings.TrimSpace(input.Status) != "" {
		canonical, err := CanonicalStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = canonical
	}

	data, contentType, err := proofstore.DecodePayload(input.ProofPayload, s.proofMaxBytes)
	if err != nil {
		return nil, err
	}

	proofRef, err := s.proofs.Put(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store proof: %w", err)
	}

	var pairID *uuid.UUID
	pair, err := s.store.GetPairByName(ctx, strings.TrimSpace(input.PairName))
	switch {
	case err == nil:
		pairID = &pair.ID
	case errors.Is(err, storage.ErrNotFound):
		// Unknown pair names are accepted; the id just stays unset.
	default:
		return nil, err
	}

	inv, err := s.store.CreateInvestment(ctx, storage.Investment{
		UserID:         input.OwnerID,
		Username:       input.Username,
		UserEmail:      input.UserEmail,
		PairID:         pairID,
		PairName:       strings.TrimSpace(input.PairName),
		Amount:         input.Amount,
		ExpectedProfit: input.ExpectedProfit,
		WithdrawalDate: input.WithdrawalDate,
		ProofRef:       proofRef,
		Status:         status,
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SubmissionsTotal.Inc()
	}

	s.audit(ctx, input.OwnerID, "user", "investment.submit", &inv.ID, input.IP, input.UserAgent)
	s.publishSubmitted(ctx, inv, input.CorrelationID)

	return inv, nil
}

// ListByOwner serves the "my investments" read. An owner with no records
// gets an empty list back.
func (s *InvestmentService) ListByOwner(ctx context.Context, capability Capability, ownerID uuid.UUID) ([]storage.Investment, error) {
	if !capability.canActFor(ownerID) {
		if s.metrics != nil {
			s.metrics.RejectionsTotal.WithLabelValues("forbidden").Inc()
		}
		return nil, ErrForbidden
	}
	return s.store.ListInvestmentsByOwner(ctx, ownerID)
}

func (s *InvestmentService) ListAll(ctx context.Context, capability Capability, filter storage.InvestmentFilter) ([]storage.Investment, string, error) {
	if !capability.Operator {
		if s.metrics != nil {
			s.metrics.RejectionsTotal.WithLabelValues("forbidden").Inc()
		}
		return nil, "", ErrForbidden
	}
	return s.store.ListInvestments(ctx, filter)
}

// UpdateStatus moves a record through the lifecycle. Only pending records
// move; completed and canceled are terminal. Re-applying the current status
// is a permitted no-op.
func (s *InvestmentService) UpdateStatus(ctx context.Context, capability Capability, investmentID uuid.UUID, rawStatus, ip, userAgent, correlationID string) (*storage.Investment, error) {
	if !capability.Operator {
		if s.metrics != nil {
			s.metrics.RejectionsTotal.WithLabelValues("forbidden").Inc()
		}
		return nil, ErrForbidden
	}

	status, err := CanonicalStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetInvestmentByID(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.Status, status) {
		if s.metrics != nil {
			s.metrics.RejectionsTotal.WithLabelValues("invalid_transition").Inc()
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	updated, err := s.store.UpdateInvestmentStatus(ctx, investmentID, status)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(status).Inc()
	}

	s.audit(ctx, capability.ActorID, "operator", "investment.update_status", &updated.ID, ip, userAgent)
	s.publishStatusChanged(ctx, current.Status, updated, capability.ActorID, correlationID)

	return updated, nil
}

// UpdateExpectedProfit is orthogonal to the status machine: it may run in
// any state and never touches the status column.
func (s *InvestmentService) UpdateExpectedProfit(ctx context.Context, capability Capability, investmentID uuid.UUID, expectedProfit, ip, userAgent, correlationID string) (*storage.Investment, error) {
	if !capability.Operator {
		if s.metrics != nil {
			s.metrics.RejectionsTotal.WithLabelValues("forbidden").Inc()
		}
		return nil, ErrForbidden
	}

	updated, err := s.store.UpdateInvestmentProfit(ctx, investmentID, expectedProfit)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProfitUpdatesTotal.Inc()
	}

	s.audit(ctx, capability.ActorID, "operator", "investment.update_profit", &updated.ID, ip, userAgent)
	s.publishProfitUpdated(ctx, updated, capability.ActorID, correlationID)

	return updated, nil
}

// GetProof returns the stored payment proof for a record the caller may see.
func (s *InvestmentService) GetProof(ctx context.Context, capability Capability, investmentID uuid.UUID) (*proofstore.Blob, error) {
	inv, err := s.store.GetInvestmentByID(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if !capability.canActFor(inv.UserID) {
		return nil, ErrForbidden
	}
	return s.proofs.Get(ctx, inv.ProofRef)
}

func (s *InvestmentService) audit(ctx context.Context, actorID uuid.UUID, actorType, action string, entityID *uuid.UUID, ip, userAgent string) {
	err := s.store.InsertAudit(ctx, storage.AuditLog{
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		EntityType: "investment",
		EntityID:   entityID,
		IP:         ip,
		UserAgent:  userAgent,
	})
	if err != nil {
		s.logger.Error("audit log failed", "action", action, "error", err)
	}
}

func (s *InvestmentService) publishSubmitted(ctx context.Context, inv *storage.Investment, correlationID string) {
	if s.producer == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventInvestmentSubmitted, 1, correlationID)
	if err != nil {
		s.logger.Error("build event envelope failed", "error", err)
		return
	}
	event := kafka.InvestmentSubmittedEvent{
		Envelope:     env,
		InvestmentID: inv.ID.String(),
		OwnerID:      inv.UserID.String(),
		PairName:     inv.PairName,
		Amount:       inv.Amount.String(),
		Status:       inv.Status,
	}
	if _, _, err := s.producer.PublishJSON(ctx, s.topics.InvestmentsSubmitted, inv.ID.String(), event); err != nil {
		s.logger.Error("publish submitted event failed", "investment_id", inv.ID, "error", err)
	}
}

func (s *InvestmentService) publishStatusChanged(ctx context.Context, oldStatus string, inv *storage.Investment, actorID uuid.UUID, correlationID string) {
	if s.producer == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventInvestmentStatusChanged, 1, correlationID)
	if err != nil {
		s.logger.Error("build event envelope failed", "error", err)
		return
	}
	event := kafka.InvestmentStatusChangedEvent{
		Envelope:     env,
		InvestmentID: inv.ID.String(),
		OldStatus:    oldStatus,
		NewStatus:    inv.Status,
		ActorID:      actorID.String(),
	}
	if _, _, err := s.producer.PublishJSON(ctx, s.topics.InvestmentsUpdated, inv.ID.String(), event); err != nil {
		s.logger.Error("publish status event failed", "investment_id", inv.ID, "error", err)
	}
}

func (s *InvestmentService) publishProfitUpdated(ctx context.Context, inv *storage.Investment, actorID uuid.UUID, correlationID string) {
	if s.producer == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventInvestmentProfitUpdated, 1, correlationID)
	if err != nil {
		s.logger.Error("build event envelope failed", "error", err)
		return
	}
	event := kafka.InvestmentProfitUpdatedEvent{
		Envelope:       env,
		InvestmentID:   inv.ID.String(),
		ExpectedProfit: inv.ExpectedProfit,
		ActorID:        actorID.String(),
	}
	if _, _, err := s.producer.PublishJSON(ctx, s.topics.InvestmentsUpdated, inv.ID.String(), event); err != nil {
		s.logger.Error("publish profit event failed", "investment_id", inv.ID, "error", err)
	}
}
