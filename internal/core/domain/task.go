package domain

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is one unit of question-answering work. The root task is the user
// question; the planner derives child tasks from it. Retries counts
// reviewer-triggered regenerations so the revise loop stays bounded.
type Task struct {
	ID       string     `json:"id"`
	Question string     `json:"question"`
	ParentID string     `json:"parent_id,omitempty"`
	Status   TaskStatus `json:"status"`
	Retries  int        `json:"retries"`
}

// Plan is the planner output: ordered sub-questions plus the visual flag
// that forces image retrieval on regardless of the keyword gate.
type Plan struct {
	Reasoning    string   `json:"reasoning"`
	SubQuestions []string `json:"sub_questions"`
	NeedsVisual  bool     `json:"needs_visual"`
}
