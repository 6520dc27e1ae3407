package chunking

import (
	"strings"
	"testing"

	"github.com/scimuse/scimuse/internal/core/domain"
)

func TestSplitMergesSmallParagraphs(t *testing.T) {
	s := NewSplitter(280, 420)
	blocks := []domain.TextBlock{
		{Page: 1, Text: "Transformers use attention."},
		{Page: 1, Text: "Attention scales quadratically."},
		{Page: 2, Text: "Sparse variants reduce the cost."},
	}

	out := s.Split(blocks)
	if len(out) != 1 {
		t.Fatalf("expected 1 merged chunk, got %d", len(out))
	}
	if out[0].Page != 1 {
		t.Fatalf("expected merged chunk on first page, got %d", out[0].Page)
	}
	for _, block := range blocks {
		if !strings.Contains(out[0].Text, block.Text) {
			t.Fatalf("merged chunk missing paragraph %q", block.Text)
		}
	}
}

func TestSplitFlushesAtTargetWindow(t *testing.T) {
	s := NewSplitter(10, 15)
	long := strings.Repeat("attention is all you need ", 8)
	blocks := []domain.TextBlock{
		{Page: 1, Text: long},
		{Page: 2, Text: long},
	}

	out := s.Split(blocks)
	if len(out) < 2 {
		t.Fatalf("expected multiple chunks for oversized input, got %d", len(out))
	}
}

func TestSplitOversizedParagraphKeepsSentencesWhole(t *testing.T) {
	s := NewSplitter(5, 8)
	sentences := []string{
		"The model reaches 92 percent accuracy.",
		"The baseline reaches 88 percent accuracy.",
		"Training takes four hours on one GPU.",
		"Inference latency stays under ten milliseconds.",
	}
	blocks := []domain.TextBlock{{Page: 3, Text: strings.Join(sentences, " ")}}

	out := s.Split(blocks)
	if len(out) < 2 {
		t.Fatalf("expected the paragraph to split, got %d chunks", len(out))
	}
	joined := " " + strings.Join(chunkTexts(out), " ") + " "
	for _, sentence := range sentences {
		if !strings.Contains(joined, " "+sentence+" ") {
			t.Fatalf("sentence was cut mid-way: %q", sentence)
		}
	}
}

func TestSplitSkipsEmptyBlocks(t *testing.T) {
	s := NewSplitter(280, 420)
	out := s.Split([]domain.TextBlock{
		{Page: 1, Text: "   "},
		{Page: 2, Text: ""},
		{Page: 3, Text: "Only real content survives."},
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(out))
	}
	if out[0].Page != 3 {
		t.Fatalf("expected chunk page 3, got %d", out[0].Page)
	}
}

func TestSplitSentencesKeepsAbbreviationsTogether(t *testing.T) {
	got := splitSentences("See Fig. 3 for details. The curve flattens after epoch ten.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(got), got)
	}
	if got[0] != "See Fig. 3 for details." {
		t.Fatalf("abbreviation split the first sentence: %q", got[0])
	}
}

func chunkTexts(blocks []domain.TextBlock) []string {
	out := make([]string, len(blocks))
	for i, block := range blocks {
		out[i] = block.Text
	}
	return out
}
