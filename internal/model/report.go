package model

import "time"

// ReportDocument is a generated client briefing. Path is set by the report
// store after a successful save.
type ReportDocument struct {
	ClientName  string    `json:"client_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Markdown    string    `json:"markdown"`
	Path        string    `json:"path,omitempty"`
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StageResult records the outcome of one pipeline stage within a run.
type StageResult struct {
	Name         string        `json:"name"`
	Status       string        `json:"status"`
	Duration     time.Duration `json:"duration_ns"`
	InputTokens  int64         `json:"input_tokens,omitempty"`
	OutputTokens int64         `json:"output_tokens,omitempty"`
	FromCache    bool          `json:"from_cache,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Run is one orchestrator invocation as recorded in the run ledger.
type Run struct {
	ID         string        `json:"id"`
	Client     string        `json:"client"`
	Context    string        `json:"context,omitempty"`
	Status     RunStatus     `json:"status"`
	ReportPath string        `json:"report_path,omitempty"`
	Stages     []StageResult `json:"stages,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
