// Package chunker splits extracted document text into overlapping,
// size-bounded windows for embedding and indexing.
package chunker

import (
	"regexp"
	"strings"
)

// Config controls the recursive character splitter.
type Config struct {
	ChunkSize int // Maximum characters per chunk.
	Overlap   int // Minimum characters shared between consecutive chunks.
}

// Chunker performs recursive character splitting: it tries to cut on
// paragraph boundaries first, then line, then sentence, and finally raw
// character boundaries, so that no chunk exceeds ChunkSize and consecutive
// chunks share at least Overlap characters at their join.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration. Zero fields fall
// back to sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = 100
	}
	return &Chunker{cfg: cfg}
}

// separators are tried in order: paragraph, line, sentence. Raw character
// splitting is the final fallback and isn't expressed as a separator.
var sentenceBoundary = regexp.MustCompile(`(?s)([.?!])\s+`)

// Split breaks text into chunks of at most ChunkSize characters. Input that
// already fits in a single chunk (the common case for short documents)
// yields exactly one chunk. Empty or whitespace-only input yields no
// chunks, since chunk text must never be empty (see package docs on I7).
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.cfg.ChunkSize {
		return []string{text}
	}

	pieces := c.recursiveSplit(text, 0)

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text[:min(len(text), c.cfg.ChunkSize)]}
	}
	return out
}

// splitters, tried in order; level indexes into this slice. The last level
// (index len(splitters)) falls back to raw character slicing.
var splitters = []func(string) []string{
	func(s string) []string { return strings.Split(s, "\n\n") },
	func(s string) []string { return strings.Split(s, "\n") },
	splitSentences,
}

// recursiveSplit splits text using the separator at the given level,
// merging the resulting fragments back into ChunkSize-bounded windows with
// Overlap characters of carry-over between them. Fragments that are still
// too large are recursively split at the next level.
func (c *Chunker) recursiveSplit(text string, level int) []string {
	if len(text) <= c.cfg.ChunkSize {
		return []string{text}
	}

	var fragments []string
	if level >= len(splitters) {
		fragments = hardSplit(text, c.cfg.ChunkSize)
	} else {
		for _, f := range splitters[level](text) {
			if strings.TrimSpace(f) == "" {
				continue
			}
			if len(f) > c.cfg.ChunkSize {
				fragments = append(fragments, c.recursiveSplit(f, level+1)...)
			} else {
				fragments = append(fragments, f)
			}
		}
	}

	return c.mergeWithOverlap(fragments)
}

// mergeWithOverlap greedily packs fragments into windows up to ChunkSize,
// carrying the trailing Overlap characters of each window into the next
// one so consecutive windows share context at their join.
func (c *Chunker) mergeWithOverlap(fragments []string) []string {
	var windows []string
	var cur strings.Builder

	flush := func() string {
		s := cur.String()
		cur.Reset()
		return s
	}

	for _, frag := range fragments {
		if cur.Len() > 0 && cur.Len()+len(frag)+1 > c.cfg.ChunkSize {
			windows = append(windows, flush())
			overlap := trailingChars(windows[len(windows)-1], c.cfg.Overlap)
			cur.WriteString(overlap)
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(frag)

		// A single fragment may still exceed ChunkSize after merging in
		// overlap text; hard-split it rather than emit an oversized window.
		for cur.Len() > c.cfg.ChunkSize {
			s := cur.String()
			windows = append(windows, s[:c.cfg.ChunkSize])
			cur.Reset()
			cur.WriteString(trailingChars(s[:c.cfg.ChunkSize], c.cfg.Overlap))
			cur.WriteString(s[c.cfg.ChunkSize:])
		}
	}
	if cur.Len() > 0 {
		windows = append(windows, flush())
	}
	return windows
}

// splitSentences splits text after '.', '?', or '!' followed by whitespace.
func splitSentences(text string) []string {
	idx := sentenceBoundary.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return []string{text}
	}
	var out []string
	last := 0
	for _, m := range idx {
		end := m[3] // end of the punctuation capture group
		out = append(out, text[last:end])
		last = m[1] // end of the full match (punctuation + whitespace)
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// hardSplit is the last-resort splitter: fixed-size character windows,
// used when a fragment has no paragraph, line, or sentence boundary short
// enough to fit within size.
func hardSplit(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

// trailingChars returns the last n characters of s, or all of s if shorter.
func trailingChars(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) == 0 {
		return ""
	}
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
