package duplicates

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(404) 555-0100", "4045550100"},
		{"4045550100", "4045550100"},
		{"+1 404-555-0100", "14045550100"},
		{"404.555.0100", "4045550100"},
		{"", ""},
		{"ext", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePhone(tt.input), "input=%q", tt.input)
	}
}

func TestNormalizePhone_FormattingVariantsCompareEqual(t *testing.T) {
	assert.Equal(t, normalizePhone("(404) 555-0100"), normalizePhone("4045550100"))
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"jon smith", "john smith", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, levenshteinDistance(tt.a, tt.b), "a=%q b=%q", tt.a, tt.b)
	}
}

func TestStringSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "jane doe", "jane doe", 1.0, 1.0},
		{"both empty", "", "", 1.0, 1.0},
		{"near match", "jon smith", "john smith", 0.89, 0.91},
		{"unrelated", "alice wong", "bob lee", 0.0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := stringSimilarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, sim, tt.min)
			assert.LessOrEqual(t, sim, tt.max)
		})
	}
}

func TestStringSimilarity_Symmetric(t *testing.T) {
	assert.Equal(t, stringSimilarity("jon smith", "john smith"), stringSimilarity("john smith", "jon smith"))
}

func TestDeduplicateMatches_FirstWins(t *testing.T) {
	dupID := uuid.New()
	otherID := uuid.New()

	matches := []Match{
		{UserID: dupID, MatchType: MatchEmail, Confidence: emailConfidence},
		{UserID: otherID, MatchType: MatchPhone, Confidence: phoneConfidence},
		{UserID: dupID, MatchType: MatchDevice, Confidence: deviceConfidence},
	}

	unique := deduplicateMatches(matches)

	assert.Len(t, unique, 2)
	assert.Equal(t, MatchEmail, unique[0].MatchType)
	assert.Equal(t, dupID, unique[0].UserID)
	assert.Equal(t, otherID, unique[1].UserID)
}

func TestSortMatchesByConfidence(t *testing.T) {
	matches := []Match{
		{MatchType: MatchDevice, Confidence: deviceConfidence},
		{MatchType: MatchEmail, Confidence: emailConfidence},
		{MatchType: MatchNameSimilarity, Confidence: 0.51},
		{MatchType: MatchPhone, Confidence: phoneConfidence},
	}

	sortMatchesByConfidence(matches)

	expected := []MatchType{MatchEmail, MatchPhone, MatchDevice, MatchNameSimilarity}
	for i, matchType := range expected {
		assert.Equal(t, matchType, matches[i].MatchType)
	}
}

func TestTruncateUserAgent(t *testing.T) {
	short := "Mozilla/5.0"
	assert.Equal(t, short, truncateUserAgent(short))

	long := strings.Repeat("x", 80)
	truncated := truncateUserAgent(long)
	assert.Len(t, truncated, 53)
	assert.True(t, strings.HasSuffix(truncated, "..."))
}
