package dbtypes

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDArrayRoundTrip(t *testing.T) {
	ids := UUIDArray{uuid.New(), uuid.New()}

	value, err := ids.Value()
	if err != nil {
		t.Fatalf("Value() returned error: %v", err)
	}

	var decoded UUIDArray
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != ids[0] || decoded[1] != ids[1] {
		t.Fatalf("round trip mismatch: %v vs %v", decoded, ids)
	}
}

func TestUUIDArrayScanEmpty(t *testing.T) {
	var decoded UUIDArray
	if err := decoded.Scan("{}"); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty array, got %v", decoded)
	}
}

func TestUUIDArraySetHelpers(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	ids := UUIDArray{}.With(first).With(second).With(first)
	if len(ids) != 2 {
		t.Fatalf("expected dedup to keep 2 ids, got %d", len(ids))
	}
	if !ids.Contains(first) || !ids.Contains(second) {
		t.Fatal("expected both ids present")
	}

	ids = ids.Without(first)
	if ids.Contains(first) {
		t.Fatal("expected first id removed")
	}
	if !ids.Contains(second) {
		t.Fatal("expected second id retained")
	}
}
