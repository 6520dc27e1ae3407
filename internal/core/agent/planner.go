package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/scimuse/scimuse/internal/core/domain"
	"github.com/scimuse/scimuse/internal/core/ports"
)

// Planner decomposes a user question into ordered sub-questions through one
// generation call. Sub-questions with no token overlap with the original
// question are discarded; a plan that cannot be parsed degrades to the
// question itself as a single sub-task.
type Planner struct {
	gateway     ports.ModelGateway
	maxSubTasks int
}

func NewPlanner(gateway ports.ModelGateway, maxSubTasks int) *Planner {
	if maxSubTasks <= 0 {
		maxSubTasks = 6
	}
	return &Planner{gateway: gateway, maxSubTasks: maxSubTasks}
}

type planPayload struct {
	Reasoning    string   `json:"reasoning"`
	SubQuestions []string `json:"sub_questions"`
	NeedVisual   bool     `json:"need_visual"`
}

func (p *Planner) Plan(ctx context.Context, question string) (*domain.Plan, error) {
	raw, err := p.gateway.Generate(ctx, buildPlanPrompt(question, p.maxSubTasks))
	if err != nil {
		if domain.IsKind(err, domain.ErrQuotaExceeded) {
			return nil, err
		}
		slog.Warn("planner_generate_failed", "error", err)
		return fallbackPlan(question), nil
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		slog.Warn("planner_parse_failed", "error", err)
		return fallbackPlan(question), nil
	}

	questionTokens := toTokenSet(question)
	sub := make([]string, 0, len(payload.SubQuestions))
	for _, q := range payload.SubQuestions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if tokenOverlap(questionTokens, toTokenSet(q)) == 0 {
			// Unrelated to what the user asked; the planner must not
			// invent its own research program.
			slog.Warn("planner_dropped_subquestion", "sub_question", q)
			continue
		}
		sub = append(sub, q)
		if len(sub) == p.maxSubTasks {
			break
		}
	}
	if len(sub) == 0 {
		sub = []string{question}
	}

	return &domain.Plan{
		Reasoning:    payload.Reasoning,
		SubQuestions: sub,
		NeedsVisual:  payload.NeedVisual,
	}, nil
}

func fallbackPlan(question string) *domain.Plan {
	return &domain.Plan{
		Reasoning:    "plan unavailable, using the question as a single sub-task",
		SubQuestions: []string{question},
	}
}
