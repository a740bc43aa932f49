package chunker

import (
	"strings"
	"testing"
)

func TestSplit_EmptyInput(t *testing.T) {
	result := Split("", DefaultOptions())
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestSplit_ShortContent(t *testing.T) {
	text := "user: remember this."
	result := Split(text, DefaultOptions())
	if len(result) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(result))
	}
	if result[0] != text {
		t.Errorf("expected %q, got %q", text, result[0])
	}
}

func TestSplit_RespectsMaxSize(t *testing.T) {
	opts := Options{TargetSize: 200, MaxSize: 300}
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "This is a line of text that is about fifty characters long.")
	}
	text := strings.Join(lines, "\n") // ~1200 chars
	result := Split(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 pieces, got %d", len(result))
	}
	for i, piece := range result {
		if len(piece) > opts.MaxSize {
			t.Errorf("piece %d exceeds max size: %d chars", i, len(piece))
		}
	}
}

func TestSplit_MergesSmallParagraphs(t *testing.T) {
	text := "Short.\n\nAlso short."
	opts := Options{TargetSize: 400, MaxSize: 600}
	result := Split(text, opts)
	if len(result) != 1 {
		t.Errorf("expected 1 merged piece, got %d", len(result))
	}
}

func TestSplit_ParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("This is a sentence. ", 15) // ~300 chars each
	text := para + "\n\n" + para + "\n\n" + para

	opts := Options{TargetSize: 400, MaxSize: 500}
	result := Split(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 pieces from paragraph splits, got %d", len(result))
	}
}

func TestSplit_ContentPreserved(t *testing.T) {
	para := strings.Repeat("alpha beta gamma. ", 30)
	text := para + "\n\n" + para

	result := Split(text, Options{TargetSize: 300, MaxSize: 400})
	joined := strings.Join(result, " ")
	if !strings.Contains(joined, "alpha beta gamma.") {
		t.Errorf("content lost in split: %q", joined)
	}
}
