package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
)

// Reviewer validates an answer in two stages. The rule check is
// deterministic and catches programming-level defects: orphan citations,
// empty answers, out-of-range confidence; any violation rejects
// immediately and is never retried. Only rule-clean answers reach the
// LLM judge, which evaluates factual support and completeness.
type Reviewer struct {
	gateway ports.ModelGateway
}

func NewReviewer(gateway ports.ModelGateway) *Reviewer {
	return &Reviewer{gateway: gateway}
}

type judgePayload struct {
	Verdict      string   `json:"verdict"`
	Reasons      []string `json:"reasons"`
	SuggestedFix string   `json:"suggested_fix"`
	RetrievalGap string   `json:"retrieval_gap"`
}

func (r *Reviewer) Review(
	ctx context.Context,
	question string,
	answer *domain.Answer,
	evidence []domain.Evidence,
) (*domain.ReviewResult, error) {
	if reasons := ruleCheck(answer, evidence); len(reasons) > 0 {
		return &domain.ReviewResult{
			TaskID:  answer.TaskID,
			Verdict: domain.VerdictReject,
			Stage:   domain.StageRuleChecked,
			Reasons: reasons,
		}, nil
	}

	raw, err := r.gateway.Generate(ctx, buildJudgePrompt(question, answer, evidence))
	if err != nil {
		if domain.IsKind(err, domain.ErrQuotaExceeded) {
			return nil, err
		}
		// Conservative on judge failure: the draft is not silently accepted.
		slog.Warn("reviewer_judge_failed", "task", answer.TaskID, "error", err)
		return &domain.ReviewResult{
			TaskID:  answer.TaskID,
			Verdict: domain.VerdictReject,
			Stage:   domain.StageJudged,
			Reasons: []string{fmt.Sprintf("judge unavailable: %v", err)},
		}, nil
	}

	var payload judgePayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		slog.Warn("reviewer_parse_failed", "task", answer.TaskID, "error", err)
		return &domain.ReviewResult{
			TaskID:       answer.TaskID,
			Verdict:      domain.VerdictRevise,
			Stage:        domain.StageJudged,
			Reasons:      []string{"judge output was not parseable"},
			SuggestedFix: "restate the answer with explicit evidence markers",
		}, nil
	}

	result := &domain.ReviewResult{
		TaskID:       answer.TaskID,
		Stage:        domain.StageJudged,
		Reasons:      payload.Reasons,
		SuggestedFix: strings.TrimSpace(payload.SuggestedFix),
		RetrievalGap: strings.TrimSpace(payload.RetrievalGap),
	}

	switch strings.ToLower(strings.TrimSpace(payload.Verdict)) {
	case "pass":
		result.Verdict = domain.VerdictPass
	case "revise":
		result.Verdict = domain.VerdictRevise
	case "reject":
		result.Verdict = domain.VerdictReject
	default:
		result.Verdict = domain.VerdictRevise
		result.Reasons = append(result.Reasons, fmt.Sprintf("unknown judge verdict %q", payload.Verdict))
	}
	return result, nil
}

func ruleCheck(answer *domain.Answer, evidence []domain.Evidence) []string {
	var reasons []string

	if strings.TrimSpace(answer.Text) == "" {
		reasons = append(reasons, "answer text is empty")
	}
	if answer.Confidence < 0 || answer.Confidence > 1 {
		reasons = append(reasons, fmt.Sprintf("confidence %f outside [0,1]", answer.Confidence))
	}

	supplied := make(map[string]struct{}, len(evidence))
	for _, ev := range evidence {
		supplied[ev.Chunk.ID] = struct{}{}
	}
	for _, citation := range answer.Citations {
		if _, ok := supplied[citation.ChunkID]; !ok {
			reasons = append(reasons, fmt.Sprintf("citation references chunk %s that was not in the supplied evidence", citation.ChunkID))
		}
	}
	return reasons
}
