package ids

import (
	"testing"
)

func TestSectionIDDeterministic(t *testing.T) {
	first := SectionID("tok", 42, 1700000000000)
	second := SectionID("tok", 42, 1700000000000)
	if first != second {
		t.Errorf("expected deterministic id, got %s and %s", first, second)
	}
	if len(first) != SectionIDLength {
		t.Errorf("expected %d characters, got %d", SectionIDLength, len(first))
	}
}

func TestSectionIDDistinctInputs(t *testing.T) {
	base := SectionID("tok", 42, 1700000000000)
	if SectionID("tok2", 42, 1700000000000) == base {
		t.Error("expected different token to change the id")
	}
	if SectionID("tok", 43, 1700000000000) == base {
		t.Error("expected different file to change the id")
	}
	if SectionID("tok", 42, 1700000000001) == base {
		t.Error("expected different open time to change the id")
	}
}

func TestNewSessionToken(t *testing.T) {
	first, err := NewSessionToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(first))
	}
	second, _ := NewSessionToken()
	if first == second {
		t.Error("expected random tokens to differ")
	}
}
