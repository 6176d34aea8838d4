package service

import (
	"errors"
	"testing"
)

func TestCanonicalStatus(t *testing.T) {
	cases := map[string]string{
		"pending":     "pending",
		" Completed ": "completed",
		"CANCELED":    "canceled",
	}
	for in, want := range cases {
		got, err := CanonicalStatus(in)
		if err != nil {
			t.Fatalf("CanonicalStatus(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("CanonicalStatus(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "approved", "rejected", "done"} {
		if _, err := CanonicalStatus(in); !errors.Is(err, ErrUnknownStatus) {
			t.Fatalf("CanonicalStatus(%q): expected ErrUnknownStatus, got %v", in, err)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{"pending", "completed"},
		{"pending", "canceled"},
		{"pending", "pending"},
		{"completed", "completed"},
		{"canceled", "canceled"},
	}
	for _, tc := range allowed {
		if !CanTransition(tc[0], tc[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tc[0], tc[1])
		}
	}

	blocked := [][2]string{
		{"completed", "pending"},
		{"completed", "canceled"},
		{"canceled", "pending"},
		{"canceled", "completed"},
	}
	for _, tc := range blocked {
		if CanTransition(tc[0], tc[1]) {
			t.Fatalf("expected %s -> %s to be blocked", tc[0], tc[1])
		}
	}
}
