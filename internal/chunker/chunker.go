// Package chunker splits long message text into overlapping segments bounded
// by a maximum size, preferring sentence boundaries.
package chunker

import (
	"fmt"
	"strings"
)

// Chunker produces greedy character windows of up to maxChars, carrying
// overlap characters of context into each following window. When a window
// does not reach the end of the text, it is truncated back to the last
// ". " sentence boundary, provided that boundary lies beyond
// boundaryRatio*maxChars into the window.
type Chunker struct {
	maxChars      int
	overlap       int
	boundaryRatio float64
}

// New creates a chunker. Returns an error when overlap >= maxChars, which
// would stall the walk (non-positive progress). Zero values fall back to the
// defaults (1800, 200, 0.5).
func New(maxChars, overlap int, boundaryRatio float64) (*Chunker, error) {
	if maxChars <= 0 {
		maxChars = 1800
	}
	if overlap < 0 {
		overlap = 200
	}
	if boundaryRatio <= 0 || boundaryRatio >= 1 {
		boundaryRatio = 0.5
	}
	if overlap >= maxChars {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than max chars %d", overlap, maxChars)
	}
	return &Chunker{maxChars: maxChars, overlap: overlap, boundaryRatio: boundaryRatio}, nil
}

// MaxChars returns the window size in characters.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the number of characters carried between windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into an ordered, non-empty sequence of segments.
// Text at or under maxChars becomes a single trimmed segment. Sizes are
// measured in runes so multi-byte scripts are not split mid-character.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= c.maxChars {
		return []string{string(runes)}
	}
	var chunks []string
	i := 0
	for {
		j := i + c.maxChars
		if j > len(runes) {
			j = len(runes)
		}
		window := runes[i:j]
		if j < len(runes) {
			if k := lastSentenceBoundary(window); k != -1 && float64(k) > float64(c.maxChars)*c.boundaryRatio {
				window = window[:k+1]
				j = i + len(window)
			}
		}
		chunks = append(chunks, string(window))
		if j >= len(runes) {
			break
		}
		next := j - c.overlap
		if next <= i {
			// A boundary-truncated window shorter than the overlap cannot
			// carry it; advance to the window end to keep forward progress.
			next = j
		}
		i = next
	}
	return chunks
}

// lastSentenceBoundary returns the index of the '.' in the last ". "
// occurrence within window, or -1.
func lastSentenceBoundary(window []rune) int {
	for k := len(window) - 2; k >= 0; k-- {
		if window[k] == '.' && window[k+1] == ' ' {
			return k
		}
	}
	return -1
}
