package search

import "testing"

func TestSimilarityExactEquality(t *testing.T) {
	if got := Similarity("Ethereum", "ethereum"); got != 1.0 {
		t.Fatalf("expected 1.0 for case-insensitive equality, got %v", got)
	}
}

func TestSimilarityContainmentFastPath(t *testing.T) {
	if got := Similarity("Ether Token", "ether"); got != 0.8 {
		t.Fatalf("expected 0.8 containment fast path, got %v", got)
	}
}

func TestSimilarityEditDistance(t *testing.T) {
	// "monshot" vs "moonshot": one edit over eight runes.
	got := Similarity("monshot", "moonshot")
	want := 1.0 - 1.0/8.0
	if got != want {
		t.Fatalf("similarity mismatch: %v != %v", got, want)
	}
}

func TestSimilarityEmptyInput(t *testing.T) {
	if got := Similarity("", "anything"); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestSimilarityDisjointStrings(t *testing.T) {
	if got := Similarity("abc", "xyz"); got > 0.3 {
		t.Fatalf("expected near-zero similarity, got %v", got)
	}
}
