package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caselens/backend/internal/storage"
	"github.com/caselens/backend/internal/util"
	"github.com/caselens/backend/pkg/ai"
	"github.com/caselens/backend/pkg/archive"
	"github.com/caselens/backend/pkg/batch"
	"github.com/caselens/backend/pkg/checkpoint"
	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/graph"
	"github.com/caselens/backend/pkg/leaselock"
	"github.com/caselens/backend/pkg/logger"
	storepgx "github.com/caselens/backend/pkg/store/pgx"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

// ProcessExtractMessage runs one graph-extraction job under a per-job
// lease, so two workers never build the same graph concurrently. The
// checkpoint manager makes the run resumable: if a previous attempt died
// partway, this one continues from the first incomplete batch.
func ProcessExtractMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	oracle ai.OracleClient,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(ExtractJobMsg)
	if err := decodeMsg(msg, data); err != nil {
		return err
	}

	raw, err := storage.GetFile(ctx, s3Client, data.ItemsKey)
	if err != nil {
		return fmt.Errorf("failed to load evidence items: %w", err)
	}
	var items []common.EvidenceItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("failed to parse evidence items: %w", err)
	}

	checkpoints, err := checkpoint.NewManager(checkpoint.NewManagerParams{
		Dir:   util.GetEnvString("CHECKPOINT_DIR", "/var/lib/caselens/checkpoints"),
		JobID: data.JobID,
	})
	if err != nil {
		return err
	}

	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Oracle: oracle,
		Scheduler: batch.NewScheduler(batch.NewSchedulerParams{
			MaxBatchCost:  int(util.GetEnvNumeric("EXTRACT_MAX_BATCH_COST", 4000)),
			MaxBatchItems: int(util.GetEnvNumeric("EXTRACT_MAX_BATCH_ITEMS", 10)),
		}),
		Checkpoints: checkpoints,
		Archive:     archive.NewS3Recorder(s3Client, util.GetEnvString("ARCHIVE_PREFIX", "archive")),
		MaxRetries:  int(util.GetEnvNumeric("ORACLE_MAX_RETRIES", 3)),
		BatchDelay:  time.Duration(util.GetEnvNumeric("ORACLE_BATCH_DELAY_MS", 300)) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	lockClient := leaselock.New(conn)
	return lockClient.WithLease(ctx, fmt.Sprintf("job:%s", data.JobID), leaselock.Options{
		TTL:        10 * time.Minute,
		RenewEvery: 4 * time.Minute,
		Wait:       true,
	}, func(leaseCtx context.Context) error {
		start := time.Now()
		result, err := graphClient.BuildGraph(leaseCtx, data.JobID, items)
		if err != nil {
			return fmt.Errorf("graph build failed: %w", err)
		}
		logger.Info("[Queue] Graph build finished",
			"job", data.JobID,
			"entities", len(result.Graph.Entities),
			"relations", len(result.Graph.Relations),
			"coverage", result.Coverage,
			"resumed", result.Resumed,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		storeClient, err := storepgx.NewResultDBStorageWithConnection(conn)
		if err != nil {
			return err
		}
		if err := storeClient.SaveGraph(leaseCtx, data.JobID, result.Graph); err != nil {
			return fmt.Errorf("failed to persist graph: %w", err)
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to serialize graph result: %w", err)
		}
		graphKey := fmt.Sprintf("results/%s/graph.json", data.JobID)
		if err := storage.PutJSON(leaseCtx, s3Client, graphKey, payload); err != nil {
			return fmt.Errorf("failed to upload graph result: %w", err)
		}

		return nil
	})
}
