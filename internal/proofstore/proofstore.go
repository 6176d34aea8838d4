// Package proofstore keeps payment-proof blobs out of the investment
// documents. Blobs are content-addressed: the reference is the sha256 of the
// decoded bytes, so re-uploads of the same image dedupe to one object.
package proofstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("proof not found")
	ErrTooLarge  = errors.New("proof exceeds size limit")
	ErrMalformed = errors.New("malformed proof payload")
)

type Blob struct {
	Ref         string
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) (*Blob, error)
}

// Ref derives the content address for a blob.
func Ref(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DecodePayload accepts either a bare base64 string or a data URL
// ("data:image/png;base64,...") and returns the raw bytes plus the declared
// content type. maxBytes bounds the decoded size; 0 means unbounded.
func DecodePayload(payload string, maxBytes int) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", ErrMalformed
	}

	contentType := "application/octet-stream"
	if strings.HasPrefix(payload, "data:") {
		meta, rest, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok {
			return nil, "", ErrMalformed
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", ErrMalformed
		}
		if ct := strings.TrimSuffix(meta, ";base64"); ct != "" {
			contentType = ct
		}
		payload = rest
	}

	// DecodedLen overshoots by the padding, so leave it two bytes of slack
	// and let the exact check below settle borderline payloads.
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return nil, "", ErrTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) == 0 {
		return nil, "", ErrMalformed
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, "", ErrTooLarge
	}
	return data, contentType, nil
}
