package service

import (
	"errors"
	"strings"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CanonicalStatus normalizes a wire status into the closed set. The legacy
// store accepted any string; here everything outside the enumeration fails.
func CanonicalStatus(raw string) (string, error) {
	status := strings.ToLower(strings.TrimSpace(raw))
	switch status {
	case storage.StatusPending, storage.StatusCompleted, storage.StatusCanceled:
		return status, nil
	default:
		return "", ErrUnknownStatus
	}
}

// CanTransition encodes the lifecycle: pending is the only mobile state, and
// completed/canceled are terminal. Same-state updates pass so that repeating
// an update stays idempotent.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	if from != storage.StatusPending {
		return false
	}
	return to == storage.StatusCompleted || to == storage.StatusCanceled
}
