package ports

import (
	"context"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// Planner decomposes a user question into ordered sub-questions.
type Planner interface {
	Plan(ctx context.Context, question string) (*domain.Plan, error)
}

// Retriever resolves one sub-question into fused, ranked evidence.
// forceVisual switches the image modality on regardless of the keyword gate.
type Retriever interface {
	Retrieve(ctx context.Context, task *domain.Task, forceVisual bool) (*domain.RetrievalResult, error)
}

// Captioner produces textual surrogates for image/formula chunks. An empty
// question yields an indexing caption; a non-empty question yields a
// question-conditioned description.
type Captioner interface {
	CaptionChunk(ctx context.Context, chunk *domain.Chunk, question string) (string, error)
	Surrogate(ctx context.Context, chunk *domain.Chunk) (string, error)
}

// Reasoner synthesizes a grounded, cited answer from retrieved evidence.
// feedback carries the reviewer's stated gap on a revise round.
type Reasoner interface {
	Answer(ctx context.Context, task *domain.Task, retrieval *domain.RetrievalResult, feedback string) (*domain.Answer, error)
}

// Reviewer validates an answer against the evidence that produced it.
type Reviewer interface {
	Review(ctx context.Context, question string, answer *domain.Answer, evidence []domain.Evidence) (*domain.ReviewResult, error)
}
