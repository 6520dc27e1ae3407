package ports

import (
	"context"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// DocumentIngestor is the inbound contract for the ingestion pipeline.
type DocumentIngestor interface {
	Ingest(ctx context.Context, path string) (*domain.IngestReport, error)
}

// QuestionService is the inbound contract for the query pipeline.
type QuestionService interface {
	Ask(ctx context.Context, question string) (*domain.QueryResult, error)
}
