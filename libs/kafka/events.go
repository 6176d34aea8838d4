package kafka

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventInvestmentSubmitted     = "investment.submitted"
	EventInvestmentStatusChanged = "investment.status_changed"
	EventInvestmentProfitUpdated = "investment.profit_updated"
)

type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EventVersion  int       `json:"event_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func NewEnvelope(eventType string, version int, correlationID string) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event_type is required")
	}
	if version <= 0 {
		return Envelope{}, fmt.Errorf("event_version must be positive")
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  version,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}, nil
}

// InvestmentSubmittedEvent is published once per accepted submission, keyed
// by the investment id.
type InvestmentSubmittedEvent struct {
	Envelope
	InvestmentID string `json:"investment_id"`
	OwnerID      string `json:"owner_id"`
	PairName     string `json:"pair_name"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
}

type InvestmentStatusChangedEvent struct {
	Envelope
	InvestmentID string `json:"investment_id"`
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
	ActorID      string `json:"actor_id"`
}

type InvestmentProfitUpdatedEvent struct {
	Envelope
	InvestmentID   string `json:"investment_id"`
	ExpectedProfit string `json:"expected_profit"`
	ActorID        string `json:"actor_id"`
}

type DLQPayload struct {
	Envelope
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	Value         any    `json:"value"`
	Error         string `json:"error"`
	Reason        string `json:"reason"`
	Attempts      int    `json:"attempts"`
}

func BuildPublishDLQPayload(topic, key string, value any, cause error, reason string, attempts int) DLQPayload {
	env, _ := NewEnvelope("dlq."+reason, 1, "")
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	return DLQPayload{
		Envelope:      env,
		OriginalTopic: topic,
		OriginalKey:   key,
		Value:         value,
		Error:         errMsg,
		Reason:        reason,
		Attempts:      attempts,
	}
}
