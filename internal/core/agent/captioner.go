package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
)

// Captioner turns image and formula chunks into text. At ingestion time
// (empty question) it builds the searchable surrogate; at query time it
// produces a description focused on the sub-task question, since an
// indexing caption may omit exactly the detail the question needs.
type Captioner struct {
	gateway ports.ModelGateway
}

func NewCaptioner(gateway ports.ModelGateway) *Captioner {
	return &Captioner{gateway: gateway}
}

func (c *Captioner) CaptionChunk(ctx context.Context, chunk *domain.Chunk, question string) (string, error) {
	switch chunk.Modality {
	case domain.ModalityImage:
		return c.captionImage(ctx, chunk, question)
	case domain.ModalityFormula:
		return c.gateway.Generate(ctx, buildFormulaCaptionPrompt(question, chunk))
	default:
		return "", fmt.Errorf("caption: unsupported modality %q", chunk.Modality)
	}
}

func (c *Captioner) captionImage(ctx context.Context, chunk *domain.Chunk, question string) (string, error) {
	prompt := buildIndexCaptionPrompt(chunk)
	if question != "" {
		prompt = buildQueryCaptionPrompt(question, chunk)
	}

	if chunk.RawRef == "" {
		// No raster data was extracted for this figure; describe it from
		// its caption text through the generation model instead.
		return c.gateway.Generate(ctx, prompt+"\nNo image data is available, rely on the caption only.")
	}
	return c.gateway.Caption(ctx, chunk.RawRef, prompt)
}

// Surrogate builds the indexed text for a figure: the paper's own caption
// plus the model description, so searches match either.
func (c *Captioner) Surrogate(ctx context.Context, chunk *domain.Chunk) (string, error) {
	description, err := c.CaptionChunk(ctx, chunk, "")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if chunk.Content != "" {
		fmt.Fprintf(&b, "Caption: %s\n", chunk.Content)
	}
	fmt.Fprintf(&b, "Description: %s", strings.TrimSpace(description))
	return b.String(), nil
}
