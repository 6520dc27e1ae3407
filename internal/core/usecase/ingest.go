package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
	"github.com/scimuse/scimuse/internal/observability/metrics"
)

// Ingestor runs the ingestion pipeline for one PDF: extract, chunk, build
// figure surrogates, embed, and only then persist. All model calls happen
// before the single store commit, and the commit lands the document whole,
// so an interrupted run never leaves a half-indexed document that the
// dedupe hash would hide from a retry.
type Ingestor struct {
	extractor ports.Extractor
	chunker   ports.Chunker
	captioner ports.Captioner
	gateway   ports.ModelGateway
	store     ports.ContentStore

	embedModel string
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger
}

func NewIngestor(
	extractor ports.Extractor,
	chunker ports.Chunker,
	captioner ports.Captioner,
	gateway ports.ModelGateway,
	store ports.ContentStore,
	embedModel string,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		extractor:  extractor,
		chunker:    chunker,
		captioner:  captioner,
		gateway:    gateway,
		store:      store,
		embedModel: embedModel,
		metrics:    m,
		logger:     logger,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, path string) (*domain.IngestReport, error) {
	started := time.Now()
	report, err := i.ingest(ctx, path)
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case report.Duplicate:
		status = "duplicate"
	}
	i.metrics.ObserveIngest(status, time.Since(started).Seconds())
	return report, err
}

func (i *Ingestor) ingest(ctx context.Context, path string) (*domain.IngestReport, error) {
	hash, err := fileSHA256(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "hash source", err)
	}

	if existing, err := i.store.DocumentByHash(ctx, hash); err == nil {
		i.logger.Info("ingest_duplicate", "path", path, "document_id", existing.ID)
		return &domain.IngestReport{DocumentID: existing.ID, Duplicate: true}, nil
	} else if !domain.IsKind(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	extracted, err := i.extractor.Extract(ctx, path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "extract document", err)
	}

	doc := &domain.Document{
		ID:         documentID(hash),
		SourcePath: path,
		Title:      extracted.Title,
		SHA256:     hash,
		PageCount:  extracted.PageCount,
		CreatedAt:  time.Now().UTC(),
	}

	chunks, err := i.buildChunks(ctx, doc, extracted)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrIngestion, "build chunks",
			fmt.Errorf("%s: no extractable content", path))
	}

	embeddings, err := i.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// Everything is computed; now commit, all or nothing.
	if err := i.store.CommitDocument(ctx, doc, chunks, embeddings); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}

	report := &domain.IngestReport{
		DocumentID: doc.ID,
		Embeddings: len(embeddings),
	}
	for _, chunk := range chunks {
		if chunk.Modality == domain.ModalityText {
			report.TextChunks++
		} else {
			report.Figures++
		}
	}

	i.logger.Info("ingest_done", "path", path, "document_id", doc.ID,
		"pages", doc.PageCount, "text_chunks", report.TextChunks,
		"figures", report.Figures, "duration", time.Since(doc.CreatedAt).String())
	return report, nil
}

// buildChunks produces the document's chunk sequence: merged text blocks
// first in reading order, then figure and formula regions with their model
// surrogates as indexed content.
func (i *Ingestor) buildChunks(ctx context.Context, doc *domain.Document, extracted *domain.ExtractedDocument) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	seq := 0

	for _, block := range i.chunker.Split(extracted.Blocks) {
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(doc.SHA256, seq),
			DocumentID: doc.ID,
			Modality:   domain.ModalityText,
			Content:    text,
			Page:       block.Page,
			Seq:        seq,
		})
		seq++
	}

	for _, figure := range extracted.Figures {
		chunk := domain.Chunk{
			ID:         chunkID(doc.SHA256, seq),
			DocumentID: doc.ID,
			Modality:   figure.Modality,
			Content:    figure.Caption,
			RawRef:     figure.RawRef,
			Page:       figure.Page,
			Region:     figure.Region,
			Seq:        seq,
		}

		surrogate, err := i.captioner.Surrogate(ctx, &chunk)
		if err != nil {
			if domain.IsKind(err, domain.ErrQuotaExceeded) {
				return nil, err
			}
			// Index the region on its own caption when the model cannot
			// describe it.
			i.logger.Warn("surrogate_failed", "document_id", doc.ID,
				"label", figure.Label, "page", figure.Page, "error", err)
			if chunk.Content == "" {
				continue
			}
		} else {
			chunk.Content = surrogate
		}

		chunks = append(chunks, chunk)
		seq++
	}

	return chunks, nil
}

func (i *Ingestor) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Embedding, error) {
	embeddings := make([]domain.Embedding, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := i.gateway.Embed(ctx, chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", chunk.Seq, err)
		}
		embeddings = append(embeddings, domain.Embedding{
			ChunkID: chunk.ID,
			Vector:  vector,
			ModelID: i.embedModel,
		})
	}
	return embeddings, nil
}

// Ids derive from the content hash, not random UUIDs, so a retry after an
// interrupted commit overwrites the vector points it already wrote instead
// of duplicating them.
var ingestIDSpace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("scimuse"))

func documentID(hash string) string {
	return uuid.NewSHA1(ingestIDSpace, []byte("document:"+hash)).String()
}

func chunkID(hash string, seq int) string {
	return uuid.NewSHA1(ingestIDSpace, []byte(fmt.Sprintf("chunk:%s:%d", hash, seq))).String()
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
