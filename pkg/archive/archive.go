// Package archive records write-once snapshots of every pipeline stage
// for external audit tooling. Recording must never block or fail the
// pipeline: sink errors are logged and swallowed.
package archive

import (
	"context"
	"time"
)

// Stage names one pipeline checkpoint that gets archived.
type Stage string

const (
	StageOriginal     Stage = "original"
	StageDeduplicated Stage = "deduplicated"
	StageGroups       Stage = "candidate_groups"
	StageBatchPlan    Stage = "batch_plan"
	StageOracleBatch  Stage = "oracle_batch"
	StageFinal        Stage = "final"
	StageSummary      Stage = "summary"
)

// Record is one self-contained archive entry.
type Record struct {
	JobID     string    `json:"job_id"`
	Stage     Stage     `json:"stage"`
	Sequence  int       `json:"sequence,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// OracleExchange is the archived payload for one oracle batch: the prompt
// sent and the decisions or extractions received, both truncated to keep
// records bounded.
type OracleExchange struct {
	BatchIndex int    `json:"batch_index"`
	Prompt     string `json:"prompt"`
	Response   any    `json:"response"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// Recorder is a write-only archive sink. Implementations log and swallow
// their own errors; Write never reports failure to the pipeline.
type Recorder interface {
	Write(ctx context.Context, jobID string, stage Stage, sequence int, payload any)
}

// Noop is a Recorder that discards everything.
type Noop struct{}

func (Noop) Write(ctx context.Context, jobID string, stage Stage, sequence int, payload any) {}
