package model

import "time"

// RunStatus represents the current state of an extraction run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StageStatus represents the state of one pipeline stage within a run.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Error    string      `json:"error,omitempty"`
}

// RunCounts aggregates what a run did: how many documents came in, how
// many survived the gate, and what the dedup index decided.
type RunCounts struct {
	DocsTotal          int     `json:"docs_total"`
	DocsRelevant       int     `json:"docs_relevant"`
	DocsIgnored        int     `json:"docs_ignored"`
	DocsFailed         int     `json:"docs_failed"`
	RecordsKept        int     `json:"records_kept"`
	RecordsSuperseded  int     `json:"records_superseded"`
	AssistCalls        int     `json:"assist_calls"`
	AssistInputTokens  int64   `json:"assist_input_tokens"`
	AssistOutputTokens int64   `json:"assist_output_tokens"`
	AssistCostUSD      float64 `json:"assist_cost_usd"`
}

// Run represents a single batch extraction run over a document source.
type Run struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Status    RunStatus     `json:"status"`
	Stages    []StageResult `json:"stages,omitempty"`
	Counts    *RunCounts    `json:"counts,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
