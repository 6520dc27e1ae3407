package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
)

var visualTerms = []string{
	"figure", "fig.", "fig ", "chart", "plot", "graph", "diagram",
	"image", "picture", "table", "visualization", "trend", "curve",
}

var formulaTerms = []string{
	"equation", "formula", "eq.", "theorem", "lemma", "proof", "derivation",
}

// Retriever resolves a sub-question into fused evidence. Modality selection
// is a deterministic keyword gate, one store search runs per active
// modality, and results merge by normalized score with text winning ties.
type Retriever struct {
	gateway ports.ModelGateway
	store   ports.ContentStore
	topK    int
}

func NewRetriever(gateway ports.ModelGateway, store ports.ContentStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{gateway: gateway, store: store, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, task *domain.Task, forceVisual bool) (*domain.RetrievalResult, error) {
	modalities := gateModalities(task.Question, forceVisual)

	// All chunk embeddings share the text space (image and formula chunks
	// are indexed through their textual surrogates), so one query vector
	// serves every modality search.
	vector, err := r.gateway.Embed(ctx, task.Question)
	if err != nil {
		return nil, err
	}

	lists := make([][]domain.ScoredChunk, 0, len(modalities))
	for _, modality := range modalities {
		hits, err := r.store.Search(ctx, vector, domain.SearchFilter{Modality: modality}, r.topK)
		if err != nil {
			return nil, err
		}
		lists = append(lists, hits)
	}

	evidence := fuseModalities(task.ID, lists, r.topK)
	if len(evidence) == 0 {
		slog.Warn("retriever_no_evidence", "task", task.ID, "question", task.Question)
		return &domain.RetrievalResult{LowCoverage: true}, nil
	}

	return &domain.RetrievalResult{Evidence: evidence}, nil
}

// gateModalities is the deterministic cost gate: text always runs, image
// and formula only when the question (or the planner) asks for visuals.
func gateModalities(question string, forceVisual bool) []domain.Modality {
	modalities := []domain.Modality{domain.ModalityText}
	lower := strings.ToLower(question)

	if forceVisual || containsAny(lower, visualTerms) {
		modalities = append(modalities, domain.ModalityImage)
	}
	if containsAny(lower, formulaTerms) {
		modalities = append(modalities, domain.ModalityFormula)
	}
	return modalities
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
