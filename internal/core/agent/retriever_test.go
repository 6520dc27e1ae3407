package agent

import (
	"context"
	"testing"

	"github.com/scimuse/scimuse/internal/core/domain"
)

func TestRetrieveTextOnlyByDefault(t *testing.T) {
	store := &fakeStore{hits: map[domain.Modality][]domain.ScoredChunk{
		domain.ModalityText: {{Chunk: textChunk("t1", "doc-a", 0), Score: 0.8}},
	}}
	r := NewRetriever(&fakeGateway{}, store, 5)

	task := &domain.Task{ID: "task-1", Question: "What learning rate was used?"}
	result, err := r.Retrieve(context.Background(), task, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.searches) != 1 || store.searches[0].Modality != domain.ModalityText {
		t.Fatalf("expected one text search, got %v", store.searches)
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("expected 1 evidence item, got %d", len(result.Evidence))
	}
	if result.Evidence[0].TaskID != "task-1" {
		t.Fatalf("expected evidence tagged with task id, got %q", result.Evidence[0].TaskID)
	}
}

func TestRetrieveKeywordGateAddsImageModality(t *testing.T) {
	store := &fakeStore{hits: map[domain.Modality][]domain.ScoredChunk{}}
	r := NewRetriever(&fakeGateway{}, store, 5)

	task := &domain.Task{ID: "task-1", Question: "What does figure 3 show about convergence?"}
	if _, err := r.Retrieve(context.Background(), task, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !searchedModality(store, domain.ModalityImage) {
		t.Fatalf("expected image modality search for a figure question, got %v", store.searches)
	}
	if searchedModality(store, domain.ModalityFormula) {
		t.Fatalf("expected no formula search, got %v", store.searches)
	}
}

func TestRetrieveForceVisualOverridesGate(t *testing.T) {
	store := &fakeStore{hits: map[domain.Modality][]domain.ScoredChunk{}}
	r := NewRetriever(&fakeGateway{}, store, 5)

	task := &domain.Task{ID: "task-1", Question: "What learning rate was used?"}
	if _, err := r.Retrieve(context.Background(), task, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !searchedModality(store, domain.ModalityImage) {
		t.Fatalf("expected forced image search, got %v", store.searches)
	}
}

func TestRetrieveFormulaKeywordAddsFormulaModality(t *testing.T) {
	store := &fakeStore{hits: map[domain.Modality][]domain.ScoredChunk{}}
	r := NewRetriever(&fakeGateway{}, store, 5)

	task := &domain.Task{ID: "task-1", Question: "Which equation defines the loss?"}
	if _, err := r.Retrieve(context.Background(), task, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !searchedModality(store, domain.ModalityFormula) {
		t.Fatalf("expected formula modality search, got %v", store.searches)
	}
}

func TestRetrieveEmptyHitsReportsLowCoverage(t *testing.T) {
	store := &fakeStore{hits: map[domain.Modality][]domain.ScoredChunk{}}
	r := NewRetriever(&fakeGateway{}, store, 5)

	task := &domain.Task{ID: "task-1", Question: "What learning rate was used?"}
	result, err := r.Retrieve(context.Background(), task, false)
	if err != nil {
		t.Fatalf("expected inline low coverage, got error: %v", err)
	}
	if !result.LowCoverage {
		t.Fatal("expected low coverage flag on empty retrieval")
	}
	if len(result.Evidence) != 0 {
		t.Fatalf("expected no evidence, got %d", len(result.Evidence))
	}
}

func searchedModality(store *fakeStore, modality domain.Modality) bool {
	for _, filter := range store.searches {
		if filter.Modality == modality {
			return true
		}
	}
	return false
}
