package pdfext

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/scimuse/scimuse/internal/core/domain"
)

var (
	figureCaptionRe  = regexp.MustCompile(`(?i)^(figure|fig\.?|table)\s+(\d+)[.:]\s*(.*)`)
	formulaCaptionRe = regexp.MustCompile(`(?i)^(equation|eq\.?)\s+\(?(\d+)\)?[.:]?\s*(.*)`)
)

// Extractor parses a PDF into paragraph-level text blocks plus figure and
// formula regions. Figures and display formulas are located through their
// caption lines, which is how scientific PDFs anchor them; the caption line
// doubles as the region descriptor.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, path string) (*domain.ExtractedDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	out := &domain.ExtractedDocument{
		PageCount: reader.NumPage(),
	}

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		e.collectPage(out, pageNum, text)
	}

	if len(out.Blocks) == 0 && len(out.Figures) == 0 {
		return nil, fmt.Errorf("no extractable content in %s", path)
	}
	if out.Title == "" {
		out.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return out, nil
}

func pageText(page pdf.Page) (string, error) {
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (e *Extractor) collectPage(out *domain.ExtractedDocument, pageNum int, text string) {
	paragraphs := splitParagraphs(text)
	for _, para := range paragraphs {
		line := strings.TrimSpace(para)
		if line == "" {
			continue
		}

		if m := figureCaptionRe.FindStringSubmatch(line); m != nil {
			out.Figures = append(out.Figures, domain.FigureRegion{
				Label:    fmt.Sprintf("%s %s", normalizeLabel(m[1]), m[2]),
				Page:     pageNum,
				Region:   line,
				Caption:  strings.TrimSpace(m[3]),
				Modality: domain.ModalityImage,
			})
			continue
		}
		if m := formulaCaptionRe.FindStringSubmatch(line); m != nil {
			out.Figures = append(out.Figures, domain.FigureRegion{
				Label:    fmt.Sprintf("Eq. %s", m[2]),
				Page:     pageNum,
				Region:   line,
				Caption:  strings.TrimSpace(m[3]),
				Modality: domain.ModalityFormula,
			})
			continue
		}
		if looksLikeFormula(line) {
			out.Figures = append(out.Figures, domain.FigureRegion{
				Label:    fmt.Sprintf("formula p%d", pageNum),
				Page:     pageNum,
				Region:   line,
				Caption:  line,
				Modality: domain.ModalityFormula,
			})
			continue
		}

		if out.Title == "" && pageNum == 1 {
			out.Title = line
		}
		out.Blocks = append(out.Blocks, domain.TextBlock{Page: pageNum, Text: line})
	}
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(normalized, "\n\n")
}

func normalizeLabel(kind string) string {
	kind = strings.ToLower(strings.TrimSuffix(kind, "."))
	if kind == "table" {
		return "Table"
	}
	return "Figure"
}

// looksLikeFormula flags short standalone lines dominated by math symbols,
// the usual rendering of display equations in extracted PDF text.
func looksLikeFormula(line string) bool {
	if len(line) > 120 {
		return false
	}
	mathRunes := 0
	total := 0
	for _, r := range line {
		if r == ' ' {
			continue
		}
		total++
		switch {
		case strings.ContainsRune("=+−-*/^_∑∏∫√≤≥≈∈∀∃αβγδεζηθλμπσφψωΔΣΠΩ()[]{}|", r):
			mathRunes++
		case r >= '0' && r <= '9':
			mathRunes++
		}
	}
	if total < 6 {
		return false
	}
	return strings.ContainsRune(line, '=') && float64(mathRunes)/float64(total) > 0.45
}
