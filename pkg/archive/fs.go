package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caselens/backend/pkg/logger"
)

// FSRecorder writes archive records as JSON files under a base directory,
// one directory per job.
type FSRecorder struct {
	baseDir string
}

// NewFSRecorder creates a filesystem recorder rooted at baseDir.
func NewFSRecorder(baseDir string) *FSRecorder {
	return &FSRecorder{baseDir: baseDir}
}

func (r *FSRecorder) Write(ctx context.Context, jobID string, stage Stage, sequence int, payload any) {
	record := Record{
		JobID:     jobID,
		Stage:     stage,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		logger.Warn("[Archive] marshal failed", "job", jobID, "stage", stage, "err", err)
		return
	}

	dir := filepath.Join(r.baseDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("[Archive] mkdir failed", "job", jobID, "dir", dir, "err", err)
		return
	}

	name := fmt.Sprintf("%s_%s.json", record.Timestamp.Format("20060102T150405.000"), stageFileName(stage, sequence))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		logger.Warn("[Archive] write failed", "job", jobID, "stage", stage, "err", err)
	}
}

func stageFileName(stage Stage, sequence int) string {
	if stage == StageOracleBatch {
		return fmt.Sprintf("%s_%d", stage, sequence)
	}
	return string(stage)
}
