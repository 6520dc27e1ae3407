package ports

import (
	"context"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// ModelGateway is the single contract every agent uses to reach model
// backends. Implementations normalize backend-specific failures into
// domain.ErrTransientBackend and domain.ErrQuotaExceeded.
type ModelGateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Caption(ctx context.Context, imageRef, contextPrompt string) (string, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContentStore is the normalized view over document metadata and the
// vector index. Search results are ordered by score descending with ties
// broken by chunk insertion order.
//
// CommitDocument is the only write and lands a document whole: the
// hash-bearing metadata row must not become visible to DocumentByHash
// until every chunk and vector is stored, so a failed commit is retried
// from scratch instead of surfacing as a duplicate.
type ContentStore interface {
	CommitDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error
	DocumentByID(ctx context.Context, id string) (*domain.Document, error)
	DocumentByHash(ctx context.Context, sha256 string) (*domain.Document, error)
	Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.ScoredChunk, error)
}

// DocumentRepository persists document and chunk metadata.
type DocumentRepository interface {
	InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error
	DocumentByID(ctx context.Context, id string) (*domain.Document, error)
	DocumentByHash(ctx context.Context, sha256 string) (*domain.Document, error)
}

// VectorIndex is the vector-search collaborator. Its on-disk layout is
// opaque to the core.
type VectorIndex interface {
	Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error
	Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.ScoredChunk, error)
}

// Extractor turns a source file into structured text blocks and
// figure/formula regions with page coordinates.
type Extractor interface {
	Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error)
}

// Chunker merges extracted text blocks into bounded-size retrieval units.
type Chunker interface {
	Split(blocks []domain.TextBlock) []domain.TextBlock
}
