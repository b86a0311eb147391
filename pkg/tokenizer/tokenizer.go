package tokenizer

import (
	"strings"
)

// CountTokens provides a rough token count estimate for chunk metadata.
// Roughly four characters per token for English prose; whitespace-separated
// words count as at least one token each.
func CountTokens(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	byWords := len(words) * 4 / 3
	byChars := len([]rune(text)) / 4
	return max(byWords, byChars, 1)
}
