package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caselens/backend/internal/storage"
	"github.com/caselens/backend/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Recorder writes archive records as JSON objects under a key prefix,
// one folder per job.
type S3Recorder struct {
	client *s3.Client
	prefix string
}

// NewS3Recorder creates an S3-backed recorder. Keys take the form
// <prefix>/<jobID>/<timestamp>_<stage>.json.
func NewS3Recorder(client *s3.Client, prefix string) *S3Recorder {
	if prefix == "" {
		prefix = "archive"
	}
	return &S3Recorder{client: client, prefix: prefix}
}

func (r *S3Recorder) Write(ctx context.Context, jobID string, stage Stage, sequence int, payload any) {
	if r.client == nil {
		return
	}

	record := Record{
		JobID:     jobID,
		Stage:     stage,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(record)
	if err != nil {
		logger.Warn("[Archive] marshal failed", "job", jobID, "stage", stage, "err", err)
		return
	}

	key := fmt.Sprintf("%s/%s/%s_%s.json",
		r.prefix, jobID,
		record.Timestamp.Format("20060102T150405.000"),
		stageFileName(stage, sequence),
	)
	if err := storage.PutJSON(ctx, r.client, key, data); err != nil {
		logger.Warn("[Archive] upload failed", "job", jobID, "stage", stage, "err", err)
	}
}
