package contentstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
)

// Store composes the metadata repository and the vector index into the
// content store contract the core depends on. It enforces the embedding
// width configured for the active model and the deterministic score/seq
// ordering of search results.
type Store struct {
	repo     ports.DocumentRepository
	index    ports.VectorIndex
	embedDim int
}

func New(repo ports.DocumentRepository, index ports.VectorIndex, embedDim int) *Store {
	return &Store{
		repo:     repo,
		index:    index,
		embedDim: embedDim,
	}
}

// CommitDocument lands a document whole. Vectors are upserted before the
// metadata transaction, so any failure leaves the sha256 dedupe row
// unwritten and the run is retried from scratch; chunk ids derive from
// the content hash, so the retry overwrites the points already indexed
// instead of duplicating them.
func (s *Store) CommitDocument(
	ctx context.Context,
	doc *domain.Document,
	chunks []domain.Chunk,
	embeddings []domain.Embedding,
) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("commit document %s: %d chunks, %d embeddings", doc.ID, len(chunks), len(embeddings))
	}
	for i := range embeddings {
		if embeddings[i].ChunkID != chunks[i].ID {
			return fmt.Errorf("commit document %s: embedding %d belongs to chunk %s, expected %s",
				doc.ID, i, embeddings[i].ChunkID, chunks[i].ID)
		}
		if len(embeddings[i].Vector) != s.embedDim {
			return domain.WrapError(domain.ErrDimensionMismatch, "commit document",
				fmt.Errorf("chunk %s: got %d dimensions, model width is %d",
					chunks[i].ID, len(embeddings[i].Vector), s.embedDim))
		}
	}

	for i := range chunks {
		if err := s.index.Upsert(ctx, chunks[i], embeddings[i].Vector); err != nil {
			return fmt.Errorf("index chunk %d: %w", chunks[i].Seq, err)
		}
	}

	if err := s.repo.InsertDocumentWithChunks(ctx, doc, chunks); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

func (s *Store) DocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	return s.repo.DocumentByID(ctx, id)
}

func (s *Store) DocumentByHash(ctx context.Context, sha256 string) (*domain.Document, error) {
	return s.repo.DocumentByHash(ctx, sha256)
}

func (s *Store) Search(
	ctx context.Context,
	vector []float32,
	filter domain.SearchFilter,
	topK int,
) ([]domain.ScoredChunk, error) {
	if len(vector) != s.embedDim {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "search",
			fmt.Errorf("got %d dimensions, model width is %d", len(vector), s.embedDim))
	}

	hits, err := s.index.Search(ctx, vector, filter, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	// Score ties are broken by chunk insertion order so identical queries
	// against identical state always yield the same sequence.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.DocumentID != hits[j].Chunk.DocumentID {
			return hits[i].Chunk.DocumentID < hits[j].Chunk.DocumentID
		}
		if hits[i].Chunk.Seq != hits[j].Chunk.Seq {
			return hits[i].Chunk.Seq < hits[j].Chunk.Seq
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	return hits, nil
}
