package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/scimuse/scimuse/internal/core/domain"
)

func TestPlanParsesSubQuestions(t *testing.T) {
	gw := &fakeGateway{
		generateFn: func(context.Context, string) (string, error) {
			return "```json\n" +
				`{"reasoning":"split by method and results","sub_questions":` +
				`["What optimizer does the training method use?","What accuracy does the method reach?"],` +
				`"need_visual":true}` + "\n```", nil
		},
	}
	p := NewPlanner(gw, 6)

	plan, err := p.Plan(context.Background(), "What optimizer does the method use and what accuracy does it reach?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.SubQuestions) != 2 {
		t.Fatalf("expected 2 sub-questions, got %d", len(plan.SubQuestions))
	}
	if !plan.NeedsVisual {
		t.Fatal("expected needs visual flag to carry through")
	}
	if plan.Reasoning == "" {
		t.Fatal("expected plan reasoning to carry through")
	}
}

func TestPlanDropsUnrelatedSubQuestions(t *testing.T) {
	gw := &fakeGateway{
		generateFn: func(context.Context, string) (string, error) {
			return `{"sub_questions":["What dropout rate does the model use?","Summarize the history of France"]}`, nil
		},
	}
	p := NewPlanner(gw, 6)

	plan, err := p.Plan(context.Background(), "What dropout rate does the model use?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.SubQuestions) != 1 {
		t.Fatalf("expected unrelated sub-question dropped, got %v", plan.SubQuestions)
	}
}

func TestPlanCapsSubQuestions(t *testing.T) {
	gw := &fakeGateway{
		generateFn: func(context.Context, string) (string, error) {
			return `{"sub_questions":["model accuracy one","model accuracy two","model accuracy three"]}`, nil
		},
	}
	p := NewPlanner(gw, 2)

	plan, err := p.Plan(context.Background(), "What is the model accuracy?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.SubQuestions) != 2 {
		t.Fatalf("expected plan capped at 2 sub-questions, got %d", len(plan.SubQuestions))
	}
}

func TestPlanFallsBackOnGarbage(t *testing.T) {
	gw := &fakeGateway{
		generateFn: func(context.Context, string) (string, error) {
			return "I cannot help with that.", nil
		},
	}
	p := NewPlanner(gw, 6)

	question := "What datasets were used?"
	plan, err := p.Plan(context.Background(), question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.SubQuestions) != 1 || plan.SubQuestions[0] != question {
		t.Fatalf("expected fallback to the question itself, got %v", plan.SubQuestions)
	}
}

func TestPlanFallsBackOnTransientError(t *testing.T) {
	gw := &fakeGateway{
		generateFn: func(context.Context, string) (string, error) {
			return "", domain.WrapError(domain.ErrTransientBackend, "generate", errors.New("boom"))
		},
	}
	p := NewPlanner(gw, 6)

	plan, err := p.Plan(context.Background(), "What datasets were used?")
	if err != nil {
		t.Fatalf("expected degraded plan, got error: %v", err)
	}
	if len(plan.SubQuestions) != 1 {
		t.Fatalf("expected single fallback sub-question, got %v", plan.SubQuestions)
	}
}

func TestPlanPropagatesQuotaError(t *testing.T) {
	gw := &fakeGateway{
		generateFn: func(context.Context, string) (string, error) {
			return "", domain.WrapError(domain.ErrQuotaExceeded, "generate", errors.New("credits exhausted"))
		},
	}
	p := NewPlanner(gw, 6)

	if _, err := p.Plan(context.Background(), "What datasets were used?"); !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error to propagate, got %v", err)
	}
}
