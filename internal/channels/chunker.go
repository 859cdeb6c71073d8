package channels

import (
	"strings"
	"unicode"
)

// Chunker splits long replies into platform-sized pieces, breaking at
// natural boundaries so code blocks and sentences survive intact where
// possible.
type Chunker struct {
	// MaxSize is the maximum chunk size in bytes.
	MaxSize int
}

// NewChunker creates a chunker for the given platform limit.
func NewChunker(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = 4000
	}
	return &Chunker{MaxSize: maxSize}
}

// Chunk splits text into pieces that fit within MaxSize. Break points are
// tried in order: paragraph break, newline, sentence ending, word
// boundary, then a hard break.
func (c *Chunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= c.MaxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > c.MaxSize {
		breakIdx := c.findBreakPoint(remaining)
		if breakIdx <= 0 {
			breakIdx = c.MaxSize
		}
		chunk := strings.TrimRightFunc(remaining[:breakIdx], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeftFunc(remaining[breakIdx:], unicode.IsSpace)
	}
	if remaining = strings.TrimSpace(remaining); remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func (c *Chunker) findBreakPoint(text string) int {
	window := text[:c.MaxSize]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}
	for _, ending := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(window, ending); idx > 0 {
			return idx + 1
		}
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}
	return c.MaxSize
}
