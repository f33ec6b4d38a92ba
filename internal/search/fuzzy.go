package search

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a ratio in [0,1] between two strings based on
// normalized edit distance. Equality short-circuits to 1.0 and full
// containment to 0.8 before any distance is computed.
func Similarity(a, b string) float64 {
	left := strings.ToLower(strings.TrimSpace(a))
	right := strings.ToLower(strings.TrimSpace(b))
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 1.0
	}
	if strings.Contains(left, right) || strings.Contains(right, left) {
		return 0.8
	}

	maxLen := len([]rune(left))
	if l := len([]rune(right)); l > maxLen {
		maxLen = l
	}

	distance := levenshtein.ComputeDistance(left, right)
	return 1.0 - float64(distance)/float64(maxLen)
}
