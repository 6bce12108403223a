package utils

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 30); got != "short" {
		t.Fatalf("expected unchanged, got %q", got)
	}
	if got := Truncate("I have a headache, what should I do?", 16); got != "I have a headache..." && got != "I have a headach..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("सिरदर्द और बुखार", 7); got != "सिरदर्द..." {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  What's   the\tBEST pizza?\n"); got != "what's the best pizza?" {
		t.Fatalf("unexpected normalization %q", got)
	}
}

func TestHasLetter(t *testing.T) {
	if HasLetter("123 ?!") {
		t.Fatalf("expected no letters")
	}
	if !HasLetter("fever 39") {
		t.Fatalf("expected letters")
	}
}
