package agent

import (
	"context"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// fakeGateway scripts the model gateway for agent tests.
type fakeGateway struct {
	embedFn    func(ctx context.Context, text string) ([]float32, error)
	captionFn  func(ctx context.Context, imageRef, contextPrompt string) (string, error)
	generateFn func(ctx context.Context, prompt string) (string, error)

	generateCalls []string
}

func (f *fakeGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedFn == nil {
		return []float32{1, 0, 0}, nil
	}
	return f.embedFn(ctx, text)
}

func (f *fakeGateway) Caption(ctx context.Context, imageRef, contextPrompt string) (string, error) {
	if f.captionFn == nil {
		return "a captioned figure", nil
	}
	return f.captionFn(ctx, imageRef, contextPrompt)
}

func (f *fakeGateway) Generate(ctx context.Context, prompt string) (string, error) {
	f.generateCalls = append(f.generateCalls, prompt)
	if f.generateFn == nil {
		return "{}", nil
	}
	return f.generateFn(ctx, prompt)
}

// fakeStore scripts content store searches per modality.
type fakeStore struct {
	hits     map[domain.Modality][]domain.ScoredChunk
	searches []domain.SearchFilter
	err      error
}

func (f *fakeStore) CommitDocument(context.Context, *domain.Document, []domain.Chunk, []domain.Embedding) error {
	return nil
}
func (f *fakeStore) DocumentByID(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeStore) DocumentByHash(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeStore) Search(_ context.Context, _ []float32, filter domain.SearchFilter, _ int) ([]domain.ScoredChunk, error) {
	f.searches = append(f.searches, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[filter.Modality], nil
}

func textChunk(id, docID string, seq int) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Modality:   domain.ModalityText,
		Content:    "content of " + id,
		Page:       1,
		Seq:        seq,
	}
}
