// Package chunker splits converted document text into overlapping spans for
// embedding. Offsets are character (rune) offsets into the untrimmed input.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrInvalidSize    = errors.New("chunk size must be positive")
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Sentence terminators, checked as literal rune sequences.
var sentenceSeparators = []string{". ", ".\n", "! ", "!\n", "? ", "?\n", "\n\n"}

const (
	sentenceBreakRatio = 0.5
	wordBreakRatio     = 0.7
)

type Span struct {
	Text  string
	Start int // inclusive
	End   int // exclusive
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func DefaultOptions() Options {
	return Options{ChunkSize: 512, ChunkOverlap: 50}
}

func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return ErrInvalidSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}

// Chunk walks text greedily left to right. Each candidate window of
// ChunkSize characters is shortened to the last sentence break past its
// midpoint, else the last space past 70% of the window, else cut hard.
func Chunk(text string, opts Options) ([]Span, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	size := opts.ChunkSize

	var spans []Span
	start := 0
	for start < n {
		end := min(start+size, n)

		if end < n {
			end = breakPoint(runes, start, end, size)
		}

		if content := strings.TrimSpace(string(runes[start:end])); content != "" {
			spans = append(spans, Span{Text: content, Start: start, End: end})
		}

		if end >= n {
			break
		}

		next := end - opts.ChunkOverlap
		// a short semantic break can leave no room for the full overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans, nil
}

func breakPoint(runes []rune, start, end, size int) int {
	window := runes[start:end]

	best, sepLen := -1, 0
	for _, sep := range sentenceSeparators {
		s := []rune(sep)
		if idx := lastIndex(window, s); idx > best {
			best, sepLen = idx, len(s)
		}
	}
	if best >= 0 && float64(best) >= float64(size)*sentenceBreakRatio {
		return start + best + sepLen
	}

	if idx := lastIndex(window, []rune{' '}); idx >= 0 && float64(idx) >= float64(size)*wordBreakRatio {
		return start + idx + 1
	}

	return end
}

func lastIndex(haystack, needle []rune) int {
	for i := len(haystack) - len(needle); i >= 0; i-- {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ChunkID derives a stable identifier for the index-th chunk of a task.
func ChunkID(taskID string, index int) string {
	return fmt.Sprintf("%s_chunk_%04d", taskID, index)
}

// IsBlank reports whether s has no non-space characters.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
