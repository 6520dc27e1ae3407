package usecase

import (
	"context"
	"sync"

	"github.com/scimuse/scimuse/internal/core/domain"
)

type fakePlanner struct {
	plan *domain.Plan
	err  error
}

func (f *fakePlanner) Plan(context.Context, string) (*domain.Plan, error) {
	return f.plan, f.err
}

type fakeRetriever struct {
	mu       sync.Mutex
	byQ      map[string]*domain.RetrievalResult
	errByQ   map[string]error
	calls    []string
	fallback *domain.RetrievalResult
}

func (f *fakeRetriever) Retrieve(_ context.Context, task *domain.Task, _ bool) (*domain.RetrievalResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, task.Question)
	f.mu.Unlock()
	if err, ok := f.errByQ[task.Question]; ok {
		return nil, err
	}
	if result, ok := f.byQ[task.Question]; ok {
		copied := *result
		copied.Evidence = append([]domain.Evidence(nil), result.Evidence...)
		return &copied, nil
	}
	if f.fallback != nil {
		copied := *f.fallback
		copied.Evidence = append([]domain.Evidence(nil), f.fallback.Evidence...)
		return &copied, nil
	}
	return &domain.RetrievalResult{LowCoverage: true}, nil
}

type fakeCaptioner struct {
	mu       sync.Mutex
	captions int
	err      error
}

func (f *fakeCaptioner) CaptionChunk(_ context.Context, chunk *domain.Chunk, _ string) (string, error) {
	f.mu.Lock()
	f.captions++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "described " + chunk.ID, nil
}

func (f *fakeCaptioner) Surrogate(_ context.Context, chunk *domain.Chunk) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.captions++
	f.mu.Unlock()
	return "Caption: " + chunk.Content + "\nDescription: described " + chunk.ID, nil
}

// fakeReasoner answers each question with a grounded one-liner citing the
// first evidence chunk, at a scripted confidence.
type fakeReasoner struct {
	confidenceByQ map[string]float64
	errByQ        map[string]error
	mu            sync.Mutex
	feedbacks     []string
}

func (f *fakeReasoner) Answer(_ context.Context, task *domain.Task, retrieval *domain.RetrievalResult, feedback string) (*domain.Answer, error) {
	f.mu.Lock()
	f.feedbacks = append(f.feedbacks, feedback)
	f.mu.Unlock()
	if err, ok := f.errByQ[task.Question]; ok {
		return nil, err
	}

	confidence, ok := f.confidenceByQ[task.Question]
	if !ok {
		confidence = 0.8
	}
	answer := &domain.Answer{
		TaskID:     task.ID,
		Text:       "Answer to " + task.Question + " [E1]",
		Confidence: confidence,
	}
	if len(retrieval.Evidence) > 0 {
		chunk := retrieval.Evidence[0].Chunk
		answer.Citations = []domain.Citation{{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Page:       chunk.Page,
			Region:     chunk.Region,
		}}
	}
	return answer, nil
}

// fakeReviewer pops one scripted review per call, falling back to pass.
type fakeReviewer struct {
	mu      sync.Mutex
	scripts map[string][]*domain.ReviewResult
	rootErr error
	reviews int
}

func (f *fakeReviewer) Review(_ context.Context, question string, answer *domain.Answer, _ []domain.Evidence) (*domain.ReviewResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews++
	if queue := f.scripts[question]; len(queue) > 0 {
		next := queue[0]
		f.scripts[question] = queue[1:]
		if next == nil {
			return nil, f.rootErr
		}
		return next, nil
	}
	return &domain.ReviewResult{
		TaskID:  answer.TaskID,
		Verdict: domain.VerdictPass,
		Stage:   domain.StageJudged,
	}, nil
}

func evidenceChunk(id string, modality domain.Modality, seq int) domain.Evidence {
	return domain.Evidence{
		Chunk: domain.Chunk{
			ID:         id,
			DocumentID: "doc-a",
			Modality:   modality,
			Content:    "content " + id,
			Page:       1,
			Seq:        seq,
		},
		Score: 0.9,
	}
}

func pass() *domain.ReviewResult {
	return &domain.ReviewResult{Verdict: domain.VerdictPass, Stage: domain.StageJudged}
}

func revise(gap string) *domain.ReviewResult {
	return &domain.ReviewResult{
		Verdict:      domain.VerdictRevise,
		Stage:        domain.StageJudged,
		Reasons:      []string{"needs more support"},
		SuggestedFix: "cite the missing measurement",
		RetrievalGap: gap,
	}
}

func reject(stage domain.ReviewStage) *domain.ReviewResult {
	return &domain.ReviewResult{
		Verdict: domain.VerdictReject,
		Stage:   stage,
		Reasons: []string{"unsupported claim"},
	}
}
