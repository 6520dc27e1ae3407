package agent

import (
	"fmt"
	"strings"

	"github.com/scimuse/scimuse/internal/core/domain"
)

func buildPlanPrompt(question string, maxSubTasks int) string {
	return fmt.Sprintf(`You are the planning stage of a scientific document QA system.
Break the user question into the minimal set of sub-questions a retriever can answer independently.

Rules:
- A single well-scoped factual question stays as one sub-question, unchanged.
- A question naming several entities, figures or comparison axes gets one sub-question per axis, in the order the question implies.
- Never invent sub-questions about topics the user did not ask about.
- At most %d sub-questions.
- Set "need_visual" to true only if the question refers to charts, plots, figures, tables or other visual results.

Return strict JSON, no markdown:
{"reasoning": "...", "sub_questions": ["..."], "need_visual": false}

USER QUESTION: %s`, maxSubTasks, question)
}

func buildAnswerPrompt(question string, evidence []domain.Evidence, feedback string) string {
	var b strings.Builder
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[E%d] modality=%s document=%s page=%d\n", i+1,
			ev.Chunk.Modality, ev.Chunk.DocumentID, ev.Chunk.Page)
		if ev.Caption != "" {
			fmt.Fprintf(&b, "figure description: %s\n", ev.Caption)
		}
		b.WriteString(ev.Chunk.Content)
		b.WriteString("\n\n")
	}
	context := b.String()
	if context == "" {
		context = "No evidence was found for this question.\n"
	}

	prompt := fmt.Sprintf(`You are an expert scientific researcher. Answer the question using ONLY the evidence below.

Rules:
- Every sentence of the answer must cite its evidence with markers like [E1] or [E2][E3].
- Sentences you cannot ground in the evidence must be omitted entirely.
- If the evidence is insufficient, say so in one cited or uncited sentence; do not invent facts.

Return strict JSON, no markdown:
{"answer": "text with [E#] markers", "reasoning": "..."}

QUESTION: %s

=== EVIDENCE ===
%s=== END EVIDENCE ===`, question, context)

	if feedback != "" {
		prompt += fmt.Sprintf("\n\nA previous draft was reviewed with this feedback, address it:\n%s", feedback)
	}
	return prompt
}

func buildJudgePrompt(question string, answer *domain.Answer, evidence []domain.Evidence) string {
	var b strings.Builder
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[E%d] %s\n", i+1, firstN(ev.Chunk.Content, 400))
	}

	return fmt.Sprintf(`You are the quality reviewer of a scientific QA system.
Judge whether the draft answer is factually supported by the evidence and complete for the question.

Verdicts:
- "pass": accurate, complete, claims supported.
- "revise": a specific aspect is missing or weakly supported; name it in "suggested_fix". If the gap is missing evidence rather than bad writing, put a concrete search query in "retrieval_gap".
- "reject": the answer contradicts the evidence.

Return strict JSON, no markdown:
{"verdict": "pass", "reasons": ["..."], "suggested_fix": "", "retrieval_gap": ""}

QUESTION: %s

=== DRAFT ANSWER ===
%s

=== EVIDENCE ===
%s`, question, answer.Text, b.String())
}

func buildIndexCaptionPrompt(fig *domain.Chunk) string {
	var b strings.Builder
	b.WriteString("Describe this scientific figure in detail: chart type, axis labels, data trends, and any visible text. The description is indexed for search, so name every quantity shown.")
	if fig.Region != "" {
		fmt.Fprintf(&b, "\nThe figure's caption in the paper reads: %s", fig.Region)
	}
	return b.String()
}

func buildQueryCaptionPrompt(question string, fig *domain.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Describe this scientific figure with the following question in mind, focusing on the details needed to answer it.\nQUESTION: %s", question)
	if fig.Region != "" {
		fmt.Fprintf(&b, "\nThe figure's caption in the paper reads: %s", fig.Region)
	}
	return b.String()
}

func buildFormulaCaptionPrompt(question string, formula *domain.Chunk) string {
	var b strings.Builder
	b.WriteString("Explain what this formula from a scientific paper expresses, naming each symbol where inferable.")
	if question != "" {
		fmt.Fprintf(&b, " Focus on what is relevant to the question: %s", question)
	}
	fmt.Fprintf(&b, "\nFORMULA: %s", formula.Content)
	return b.String()
}

func firstN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
