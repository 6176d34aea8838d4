package proofstore

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodePayloadDataURL(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	data, contentType, err := DecodePayload(payload, 0)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if string(data) != string(raw) {
		t.Fatalf("decoded bytes mismatch")
	}
}

func TestDecodePayloadBareBase64(t *testing.T) {
	data, contentType, err := DecodePayload(base64.StdEncoding.EncodeToString([]byte("receipt")), 0)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if contentType != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if string(data) != "receipt" {
		t.Fatalf("decoded bytes mismatch")
	}
}

func TestDecodePayloadRejectsMalformed(t *testing.T) {
	cases := []string{"", "data:image/png;base64", "data:image/png,AAA", "%%%not-base64%%%"}
	for _, payload := range cases {
		if _, _, err := DecodePayload(payload, 0); !errors.Is(err, ErrMalformed) {
			t.Fatalf("payload %q: expected ErrMalformed, got %v", payload, err)
		}
	}
}

func TestDecodePayloadEnforcesLimit(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(make([]byte, 64))
	if _, _, err := DecodePayload(payload, 16); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, _, err := DecodePayload(payload, 64); err != nil {
		t.Fatalf("expected payload at limit to pass, got %v", err)
	}
}

func TestRefIsStable(t *testing.T) {
	a := Ref([]byte("same bytes"))
	b := Ref([]byte("same bytes"))
	c := Ref([]byte("other bytes"))
	if a != b {
		t.Fatalf("same bytes must share a ref")
	}
	if a == c {
		t.Fatalf("different bytes must not share a ref")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex ref, got %q", a)
	}
}
