package duplicates

import (
	"sort"
	"strings"
	"unicode"
)

// normalizePhone strips every non-digit character so that formatting
// variants of the same number compare equal.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stringSimilarity returns 1 - distance/max(len) in [0,1], case handled by
// the caller. Two empty strings are identical.
func stringSimilarity(a, b string) float64 {
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}

	if len(longer) == 0 {
		return 1.0
	}

	distance := levenshteinDistance(longer, shorter)
	return float64(len(longer)-distance) / float64(len(longer))
}

// levenshteinDistance computes the edit distance with a full DP matrix
func levenshteinDistance(a, b string) int {
	matrix := make([][]int, len(b)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(a)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(a); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(b); i++ {
		for j := 1; j <= len(a); j++ {
			if b[i-1] == a[j-1] {
				matrix[i][j] = matrix[i-1][j-1]
			} else {
				matrix[i][j] = min(
					matrix[i-1][j-1]+1,
					matrix[i][j-1]+1,
					matrix[i-1][j]+1,
				)
			}
		}
	}

	return matrix[len(b)][len(a)]
}

// deduplicateMatches drops repeat candidates, keeping the first occurrence.
// Strategies run in descending-confidence order so first-wins keeps the
// strongest match type for each candidate.
func deduplicateMatches(matches []Match) []Match {
	seen := make(map[string]bool, len(matches))
	unique := make([]Match, 0, len(matches))

	for _, match := range matches {
		key := match.UserID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, match)
	}

	return unique
}

// sortMatchesByConfidence orders matches by descending confidence
func sortMatchesByConfidence(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
}

// truncateUserAgent shortens long user-agent strings for display
func truncateUserAgent(ua string) string {
	if len(ua) <= 50 {
		return ua
	}
	return ua[:50] + "..."
}
