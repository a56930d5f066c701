package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	id := NewID("")
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("expected uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}

	prefixed := NewID("exp")
	if !strings.HasPrefix(prefixed, "exp_") {
		t.Fatalf("expected exp_ prefix, got %q", prefixed)
	}
	if NewID("") == id {
		t.Fatal("expected unique ids")
	}
}
