package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNanoID_LengthAndAlphabet(t *testing.T) {
	id := NanoID(16)()
	if len(id) != 16 {
		t.Fatalf("NanoID(16): got length %d", len(id))
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestNanoID_Uniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("NanoID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("pg_", NanoID(8))()
	if !strings.HasPrefix(id, "pg_") || len(id) != 11 {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestNew_IsUUIDv7(t *testing.T) {
	u, err := uuid.Parse(New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u.Version() != 7 {
		t.Errorf("version: got %d, want 7", u.Version())
	}
}
