package domain

// Evidence is a chunk matched to a task with its normalized similarity
// score. Caption is the question-conditioned description added for
// image/formula chunks at query time.
type Evidence struct {
	TaskID  string  `json:"task_id"`
	Chunk   Chunk   `json:"chunk"`
	Score   float64 `json:"score"`
	Caption string  `json:"caption,omitempty"`
}

// RetrievalResult carries the fused evidence for one sub-task.
// LowCoverage means the store returned nothing across all modalities;
// the reasoner must still answer, flagged low-confidence.
type RetrievalResult struct {
	Evidence    []Evidence `json:"evidence"`
	LowCoverage bool       `json:"low_coverage"`
}

// Citation points a claim back to the originating chunk. It must
// reference evidence that was actually supplied to the reasoner.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Region     string `json:"region,omitempty"`
}

type Answer struct {
	TaskID     string     `json:"task_id"`
	Text       string     `json:"text"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Caveats    []string   `json:"caveats,omitempty"`
}

type ReviewVerdict string

const (
	VerdictPass   ReviewVerdict = "pass"
	VerdictRevise ReviewVerdict = "revise"
	VerdictReject ReviewVerdict = "reject"
)

// ReviewStage records where the reviewer state machine terminated: a
// rule_checked rejection is a programming defect and is never retried,
// a judged verdict is a quality outcome.
type ReviewStage string

const (
	StageRuleChecked ReviewStage = "rule_checked"
	StageJudged      ReviewStage = "judged"
)

type ReviewResult struct {
	TaskID       string        `json:"task_id"`
	Verdict      ReviewVerdict `json:"verdict"`
	Stage        ReviewStage   `json:"stage"`
	Reasons      []string      `json:"reasons"`
	SuggestedFix string        `json:"suggested_fix,omitempty"`
	// RetrievalGap is the judge's instruction for a supplemental search
	// when the miss is in retrieval rather than synthesis.
	RetrievalGap string `json:"retrieval_gap,omitempty"`
}

// TaskFailure records a sub-task that did not produce an answer.
type TaskFailure struct {
	Question string `json:"question"`
	Reason   string `json:"reason"`
}

// QueryResult is the orchestrator output for one user question.
type QueryResult struct {
	Answer   *Answer       `json:"answer,omitempty"`
	SubTasks []string      `json:"sub_tasks"`
	Failed   []TaskFailure `json:"failed,omitempty"`
	Partial  bool          `json:"partial"`
}
