package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
	"github.com/scimuse/scimuse/internal/observability/metrics"
)

type OrchestratorConfig struct {
	ReviewMaxRetry  int
	SubTaskParallel int
	RevisePenalty   float64
}

// Orchestrator drives the query pipeline: plan, fan the sub-tasks out, run
// each through retrieve/caption/reason/review with the bounded revise loop,
// then merge in planner order and review the merged answer. Sub-tasks are
// independent, so completion order never affects the output order.
type Orchestrator struct {
	planner   ports.Planner
	retriever ports.Retriever
	captioner ports.Captioner
	reasoner  ports.Reasoner
	reviewer  ports.Reviewer

	cfg     OrchestratorConfig
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

func NewOrchestrator(
	planner ports.Planner,
	retriever ports.Retriever,
	captioner ports.Captioner,
	reasoner ports.Reasoner,
	reviewer ports.Reviewer,
	cfg OrchestratorConfig,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.ReviewMaxRetry < 0 {
		cfg.ReviewMaxRetry = 0
	}
	if cfg.SubTaskParallel <= 0 {
		cfg.SubTaskParallel = 3
	}
	if cfg.RevisePenalty <= 0 || cfg.RevisePenalty > 1 {
		cfg.RevisePenalty = 0.85
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		planner:   planner,
		retriever: retriever,
		captioner: captioner,
		reasoner:  reasoner,
		reviewer:  reviewer,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

type subTaskResult struct {
	task     *domain.Task
	answer   *domain.Answer
	evidence []domain.Evidence
	failure  *domain.TaskFailure
}

func (o *Orchestrator) Ask(ctx context.Context, question string) (*domain.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	root := &domain.Task{
		ID:       uuid.NewString(),
		Question: question,
		Status:   domain.TaskStatusInProgress,
	}

	plan, err := o.planner.Plan(ctx, question)
	if err != nil {
		o.metrics.AgentInvocation("planner", "error")
		return nil, fmt.Errorf("plan question: %w", err)
	}
	o.metrics.AgentInvocation("planner", "ok")
	o.logger.Info("plan_ready", "root_task", root.ID,
		"sub_tasks", len(plan.SubQuestions), "needs_visual", plan.NeedsVisual)

	results := make([]*subTaskResult, len(plan.SubQuestions))
	for i, sub := range plan.SubQuestions {
		results[i] = &subTaskResult{
			task: &domain.Task{
				ID:       uuid.NewString(),
				Question: sub,
				ParentID: root.ID,
				Status:   domain.TaskStatusPending,
			},
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.SubTaskParallel)
	for _, res := range results {
		group.Go(func() error {
			return o.runSubTask(gctx, res, plan.NeedsVisual)
		})
	}

	// Only a non-retryable failure aborts the group; everything else is
	// recorded on its own sub-task.
	groupErr := group.Wait()

	result := &domain.QueryResult{SubTasks: plan.SubQuestions}
	var answers []*domain.Answer
	var evidence []domain.Evidence
	for _, res := range results {
		if res.answer != nil {
			answers = append(answers, res.answer)
			evidence = append(evidence, res.evidence...)
			continue
		}
		failure := res.failure
		if failure == nil {
			failure = &domain.TaskFailure{Question: res.task.Question, Reason: "canceled before completion"}
		}
		result.Failed = append(result.Failed, *failure)
	}

	if groupErr != nil {
		result.Partial = true
		o.logger.Warn("query_partial_failure", "root_task", root.ID, "error", groupErr,
			"completed", len(answers), "failed", len(result.Failed))
		if len(answers) == 0 {
			return result, fmt.Errorf("no sub-task completed: %w", groupErr)
		}
	}
	if len(answers) == 0 {
		root.Status = domain.TaskStatusFailed
		return result, fmt.Errorf("no sub-task produced an answer")
	}

	merged := o.mergeAnswers(root, answers)
	if result.Partial {
		merged.Caveats = append(merged.Caveats,
			fmt.Sprintf("partial result: %d of %d sub-tasks completed", len(answers), len(results)))
	}

	if len(answers) > 1 && !result.Partial {
		o.reviewRoot(ctx, question, merged, evidence)
	}

	root.Status = domain.TaskStatusDone
	result.Answer = merged
	return result, nil
}

func (o *Orchestrator) runSubTask(ctx context.Context, res *subTaskResult, forceVisual bool) error {
	task := res.task
	task.Status = domain.TaskStatusInProgress

	retrieval, err := o.retriever.Retrieve(ctx, task, forceVisual)
	if err != nil {
		o.metrics.AgentInvocation("retriever", "error")
		return o.recordFailure(res, "retrieve evidence", err)
	}
	o.metrics.AgentInvocation("retriever", "ok")
	o.metrics.ObserveEvidence(len(retrieval.Evidence))

	if err := o.enrichCaptions(ctx, task, retrieval.Evidence); err != nil {
		return o.recordFailure(res, "caption evidence", err)
	}

	feedback := ""
	for {
		answer, err := o.reasoner.Answer(ctx, task, retrieval, feedback)
		if err != nil {
			o.metrics.AgentInvocation("reasoner", "error")
			return o.recordFailure(res, "synthesize answer", err)
		}
		o.metrics.AgentInvocation("reasoner", "ok")

		review, err := o.reviewer.Review(ctx, task.Question, answer, retrieval.Evidence)
		if err != nil {
			o.metrics.AgentInvocation("reviewer", "error")
			return o.recordFailure(res, "review answer", err)
		}
		o.metrics.AgentInvocation("reviewer", "ok")
		o.metrics.ReviewVerdict(string(review.Verdict))

		switch review.Verdict {
		case domain.VerdictPass:
			task.Status = domain.TaskStatusDone
			res.answer = answer
			res.evidence = retrieval.Evidence
			return nil

		case domain.VerdictRevise:
			if task.Retries >= o.cfg.ReviewMaxRetry {
				// Retry budget exhausted converts revise into reject.
				reasons := append(review.Reasons, "revision budget exhausted")
				res.answer = rejectedAnswer(answer, reasons)
				res.evidence = retrieval.Evidence
				task.Status = domain.TaskStatusDone
				return nil
			}
			task.Retries++
			feedback = reviseFeedback(review)
			o.logger.Info("revise_requested", "task", task.ID, "retry", task.Retries, "feedback", feedback)
			if review.RetrievalGap != "" {
				if err := o.supplementEvidence(ctx, task, retrieval, review.RetrievalGap, forceVisual); err != nil {
					return o.recordFailure(res, "caption evidence", err)
				}
			}

		case domain.VerdictReject:
			task.Status = domain.TaskStatusDone
			res.answer = rejectedAnswer(answer, review.Reasons)
			res.evidence = retrieval.Evidence
			return nil

		default:
			return o.recordFailure(res, "review answer",
				fmt.Errorf("unexpected verdict %q", review.Verdict))
		}
	}
}

// recordFailure marks the sub-task failed locally, except for quota
// exhaustion, which propagates to cancel the remaining sub-tasks.
func (o *Orchestrator) recordFailure(res *subTaskResult, operation string, err error) error {
	res.task.Status = domain.TaskStatusFailed
	if domain.IsKind(err, domain.ErrQuotaExceeded) {
		res.failure = &domain.TaskFailure{Question: res.task.Question, Reason: err.Error()}
		return err
	}
	o.logger.Warn("sub_task_failed", "task", res.task.ID, "operation", operation, "error", err)
	res.failure = &domain.TaskFailure{
		Question: res.task.Question,
		Reason:   fmt.Sprintf("%s: %v", operation, err),
	}
	return nil
}

func (o *Orchestrator) enrichCaptions(ctx context.Context, task *domain.Task, evidence []domain.Evidence) error {
	for i := range evidence {
		if evidence[i].Chunk.Modality == domain.ModalityText {
			continue
		}
		caption, err := o.captioner.CaptionChunk(ctx, &evidence[i].Chunk, task.Question)
		if err != nil {
			o.metrics.AgentInvocation("captioner", "error")
			if domain.IsKind(err, domain.ErrQuotaExceeded) {
				return err
			}
			// The surrogate text already stored on the chunk keeps the
			// evidence usable without the fresh caption.
			o.logger.Warn("caption_failed", "task", task.ID, "chunk", evidence[i].Chunk.ID, "error", err)
			continue
		}
		o.metrics.AgentInvocation("captioner", "ok")
		evidence[i].Caption = caption
	}
	return nil
}

// supplementEvidence runs the judge's suggested search and appends any new
// chunks to the sub-task's evidence before the next reasoning round. A
// failed supplemental search leaves the existing evidence in place; only
// quota exhaustion surfaces, through the caption enrichment.
func (o *Orchestrator) supplementEvidence(
	ctx context.Context,
	task *domain.Task,
	retrieval *domain.RetrievalResult,
	gap string,
	forceVisual bool,
) error {
	gapTask := &domain.Task{ID: task.ID, Question: gap, ParentID: task.ParentID}
	extra, err := o.retriever.Retrieve(ctx, gapTask, forceVisual)
	if err != nil {
		o.logger.Warn("supplemental_retrieval_failed", "task", task.ID, "gap", gap, "error", err)
		return nil
	}

	known := make(map[string]struct{}, len(retrieval.Evidence))
	for _, ev := range retrieval.Evidence {
		known[ev.Chunk.ID] = struct{}{}
	}
	added := 0
	for _, ev := range extra.Evidence {
		if _, dup := known[ev.Chunk.ID]; dup {
			continue
		}
		ev.TaskID = task.ID
		retrieval.Evidence = append(retrieval.Evidence, ev)
		added++
	}
	if added > 0 {
		retrieval.LowCoverage = false
		if err := o.enrichCaptions(ctx, task, retrieval.Evidence[len(retrieval.Evidence)-added:]); err != nil {
			return err
		}
	}
	o.logger.Info("supplemental_evidence", "task", task.ID, "gap", gap, "added", added)
	return nil
}

// mergeAnswers concatenates sub-answers in planner order. The merged
// confidence starts at the weakest sub-answer: a chain is only as strong
// as its weakest link.
func (o *Orchestrator) mergeAnswers(root *domain.Task, answers []*domain.Answer) *domain.Answer {
	if len(answers) == 1 {
		merged := *answers[0]
		merged.TaskID = root.ID
		return &merged
	}

	var texts []string
	var citations []domain.Citation
	var caveats []string
	seen := make(map[string]struct{})
	confidence := 1.0

	for _, answer := range answers {
		texts = append(texts, answer.Text)
		caveats = append(caveats, answer.Caveats...)
		if answer.Confidence < confidence {
			confidence = answer.Confidence
		}
		for _, citation := range answer.Citations {
			if _, dup := seen[citation.ChunkID]; dup {
				continue
			}
			seen[citation.ChunkID] = struct{}{}
			citations = append(citations, citation)
		}
	}

	return &domain.Answer{
		TaskID:     root.ID,
		Text:       strings.Join(texts, "\n\n"),
		Citations:  citations,
		Confidence: confidence,
		Caveats:    caveats,
	}
}

// reviewRoot applies the root-level review to the merged answer. The merge
// is a fixed concatenation, so a revise verdict here lowers confidence and
// records the gap instead of regenerating.
func (o *Orchestrator) reviewRoot(ctx context.Context, question string, merged *domain.Answer, evidence []domain.Evidence) {
	review, err := o.reviewer.Review(ctx, question, merged, evidence)
	if err != nil {
		o.logger.Warn("root_review_failed", "error", err)
		return
	}
	o.metrics.ReviewVerdict(string(review.Verdict))

	switch review.Verdict {
	case domain.VerdictPass:
	case domain.VerdictRevise:
		merged.Confidence *= o.cfg.RevisePenalty
		if review.SuggestedFix != "" {
			merged.Caveats = append(merged.Caveats, "reviewer noted a gap: "+review.SuggestedFix)
		} else {
			merged.Caveats = append(merged.Caveats, review.Reasons...)
		}
	case domain.VerdictReject:
		merged.Confidence = 0
		merged.Caveats = append(merged.Caveats, review.Reasons...)
	}
}

func rejectedAnswer(answer *domain.Answer, reasons []string) *domain.Answer {
	out := *answer
	out.Confidence = 0
	out.Caveats = append(out.Caveats, reasons...)
	return &out
}

func reviseFeedback(review *domain.ReviewResult) string {
	if review.SuggestedFix != "" {
		return review.SuggestedFix
	}
	return strings.Join(review.Reasons, "; ")
}
