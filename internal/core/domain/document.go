package domain

import "time"

type Modality string

const (
	ModalityText    Modality = "text"
	ModalityImage   Modality = "image"
	ModalityFormula Modality = "formula"
)

// Document is the immutable record of one ingested source file.
type Document struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	Title      string    `json:"title"`
	SHA256     string    `json:"sha256"`
	PageCount  int       `json:"page_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is one retrievable unit of document content. Seq is the insertion
// order within the document and is the deterministic tie-breaker for equal
// search scores.
type Chunk struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Modality   Modality `json:"modality"`
	Content    string   `json:"content"`
	RawRef     string   `json:"raw_ref,omitempty"`
	Page       int      `json:"page"`
	Region     string   `json:"region,omitempty"`
	Seq        int      `json:"seq"`
}

type Embedding struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	ModelID string    `json:"model_id"`
}

// ScoredChunk is a search hit from the content store.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

type SearchFilter struct {
	Modality    Modality
	DocumentIDs []string
}

// TextBlock is an extracted paragraph-level unit, pre-chunking.
type TextBlock struct {
	Page int
	Text string
}

// FigureRegion is an extracted image or formula region with its page
// coordinates descriptor and any caption found next to it.
type FigureRegion struct {
	Label    string
	Page     int
	Region   string
	RawRef   string
	Caption  string
	Modality Modality
}

// ExtractedDocument is the PDF extractor output.
type ExtractedDocument struct {
	Title     string
	PageCount int
	Blocks    []TextBlock
	Figures   []FigureRegion
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	DocumentID string `json:"document_id"`
	Duplicate  bool   `json:"duplicate"`
	TextChunks int    `json:"text_chunks"`
	Figures    int    `json:"figures"`
	Embeddings int    `json:"embeddings"`
}
