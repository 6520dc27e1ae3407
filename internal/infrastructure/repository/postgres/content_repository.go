package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// ContentRepository persists document and chunk metadata. Vectors live in
// the vector index; the rows here are the source of truth for identity,
// dedupe hashes and citation targets.
type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ContentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent ingest runs.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	title TEXT NOT NULL,
	sha256 TEXT NOT NULL UNIQUE,
	page_count INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	modality TEXT NOT NULL,
	content TEXT NOT NULL,
	raw_ref TEXT,
	page INT NOT NULL,
	region TEXT,
	seq INT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// InsertDocumentWithChunks writes the document row and all of its chunk
// rows in one transaction. The sha256 column backs ingest dedupe, so the
// document must not exist without its chunks: a failure on any row rolls
// the whole document back.
func (r *ContentRepository) InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const docQuery = `
INSERT INTO documents (id, source_path, title, sha256, page_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := tx.ExecContext(ctx, docQuery,
		doc.ID, doc.SourcePath, doc.Title, doc.SHA256, doc.PageCount, doc.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	const chunkQuery = `
INSERT INTO chunks (id, document_id, modality, content, raw_ref, page, region, seq)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	for i := range chunks {
		if _, err := tx.ExecContext(ctx, chunkQuery,
			chunks[i].ID, chunks[i].DocumentID, string(chunks[i].Modality), chunks[i].Content,
			chunks[i].RawRef, chunks[i].Page, chunks[i].Region, chunks[i].Seq,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunks[i].Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document tx: %w", err)
	}
	return nil
}

func (r *ContentRepository) DocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	const query = `
SELECT id, source_path, title, sha256, page_count, created_at
FROM documents WHERE id = $1
`
	return r.scanDocument(r.db.QueryRowContext(ctx, query, id), "fetch document by id")
}

func (r *ContentRepository) DocumentByHash(ctx context.Context, sha256 string) (*domain.Document, error) {
	const query = `
SELECT id, source_path, title, sha256, page_count, created_at
FROM documents WHERE sha256 = $1
`
	return r.scanDocument(r.db.QueryRowContext(ctx, query, sha256), "fetch document by hash")
}

func (r *ContentRepository) scanDocument(row *sql.Row, operation string) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.SourcePath, &doc.Title, &doc.SHA256, &doc.PageCount, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotFound, operation, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return &doc, nil
}
