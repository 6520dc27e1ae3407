package chunking

import (
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// Splitter merges paragraph blocks into token-bounded chunks. Undersized
// paragraphs are merged up to the target window; oversized paragraphs are
// split on sentence boundaries, never mid-sentence.
type Splitter struct {
	targetTokens int
	maxTokens    int
	encoder      *tiktoken.Tiktoken
}

func NewSplitter(targetTokens, maxTokens int) *Splitter {
	if targetTokens <= 0 {
		targetTokens = 280
	}
	if maxTokens < targetTokens {
		maxTokens = targetTokens + targetTokens/2
	}
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// The cl100k_base tables ship with the library; failure here means
		// a broken build, and the rune fallback keeps chunking usable.
		encoder = nil
	}
	return &Splitter{
		targetTokens: targetTokens,
		maxTokens:    maxTokens,
		encoder:      encoder,
	}
}

func (s *Splitter) Split(blocks []domain.TextBlock) []domain.TextBlock {
	var out []domain.TextBlock

	var buf strings.Builder
	bufTokens := 0
	bufPage := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, domain.TextBlock{Page: bufPage, Text: strings.TrimSpace(buf.String())})
		buf.Reset()
		bufTokens = 0
	}

	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}

		for _, piece := range s.splitOversized(text) {
			tokens := s.countTokens(piece)
			if bufTokens > 0 && bufTokens+tokens > s.targetTokens {
				flush()
			}
			if buf.Len() == 0 {
				bufPage = block.Page
			} else {
				buf.WriteString("\n\n")
			}
			buf.WriteString(piece)
			bufTokens += tokens
		}

		if bufTokens >= s.targetTokens {
			flush()
		}
	}
	flush()

	return out
}

// splitOversized breaks a paragraph exceeding the hard window into
// sentence-aligned pieces under maxTokens.
func (s *Splitter) splitOversized(paragraph string) []string {
	if s.countTokens(paragraph) <= s.maxTokens {
		return []string{paragraph}
	}

	sentences := splitSentences(paragraph)
	var pieces []string
	var buf strings.Builder
	bufTokens := 0

	for _, sentence := range sentences {
		tokens := s.countTokens(sentence)
		if bufTokens > 0 && bufTokens+tokens > s.maxTokens {
			pieces = append(pieces, strings.TrimSpace(buf.String()))
			buf.Reset()
			bufTokens = 0
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(sentence)
		bufTokens += tokens
	}
	if buf.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(buf.String()))
	}
	if len(pieces) == 0 {
		return []string{paragraph}
	}
	return pieces
}

func (s *Splitter) countTokens(text string) int {
	if s.encoder != nil {
		return len(s.encoder.Encode(text, nil, nil))
	}
	// Rough fallback: one token per four runes.
	n := len([]rune(text)) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// splitSentences cuts on sentence-final punctuation followed by whitespace
// and an upper-case start. Abbreviation-heavy text may under-split, which
// only makes chunks slightly larger, never mid-sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) {
			continue
		}
		// An upper-case start is required so "Fig. 3" and similar
		// abbreviation-number pairs stay in one sentence.
		if unicode.IsUpper(runes[j]) {
			sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}
