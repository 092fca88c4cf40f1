package chunker

import (
	"strings"
	"testing"
)

func TestSplitDegenerate(t *testing.T) {
	c := New(Config{ChunkSize: 100, Overlap: 0})
	text := strings.Repeat("a", 99)
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for input under chunk size, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected chunk to equal input verbatim")
	}
}

func TestSplitEmpty(t *testing.T) {
	c := New(Config{ChunkSize: 100, Overlap: 10})
	if chunks := c.Split(""); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
	if chunks := c.Split("   \n\n  "); len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace-only input, got %d", len(chunks))
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	c := New(Config{ChunkSize: 50, Overlap: 10})
	paragraphs := make([]string, 20)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("word ", 6)
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long input, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if len(ch) > c.cfg.ChunkSize+c.cfg.Overlap {
			t.Errorf("chunk %d length %d exceeds chunk_size+overlap bound", i, len(ch))
		}
	}
}

func TestSplitOverlapBetweenConsecutiveChunks(t *testing.T) {
	c := New(Config{ChunkSize: 40, Overlap: 15})
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := strings.TrimSpace(trailingChars(chunks[i-1], c.cfg.Overlap))
		if prevTail == "" {
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(chunks[i]), prevTail[:min(5, len(prevTail))]) {
			t.Errorf("chunk %d does not start with overlap from chunk %d's tail %q: got %q", i, i-1, prevTail, chunks[i])
		}
	}
}

func TestSplitHardFallbackOnUnbrokenText(t *testing.T) {
	c := New(Config{ChunkSize: 20, Overlap: 5})
	text := strings.Repeat("x", 100) // no paragraph/line/sentence boundaries
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected hard-split fallback to produce multiple chunks, got %d", len(chunks))
	}
}
