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
	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/consolidate"
	"github.com/caselens/backend/pkg/logger"
	storepgx "github.com/caselens/backend/pkg/store/pgx"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

// ProcessConsolidateMessage runs one consolidation job: it loads the raw
// evidence from object storage, consolidates it, persists the result, and
// optionally chains a graph-extraction job over the output.
func ProcessConsolidateMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	oracle ai.OracleClient,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(ConsolidateJobMsg)
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

	client, err := consolidate.NewClient(consolidate.NewClientParams{
		Oracle:     oracle,
		Archive:    archive.NewS3Recorder(s3Client, util.GetEnvString("ARCHIVE_PREFIX", "archive")),
		MaxRetries: int(util.GetEnvNumeric("ORACLE_MAX_RETRIES", 3)),
		BatchDelay: time.Duration(util.GetEnvNumeric("ORACLE_BATCH_DELAY_MS", 300)) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := client.Consolidate(ctx, data.JobID, items)
	if err != nil {
		return fmt.Errorf("consolidation failed: %w", err)
	}
	logger.Info("[Queue] Consolidation finished",
		"job", data.JobID,
		"original", result.Stats.Original,
		"final", result.Stats.Final,
		"coverage", result.Coverage,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	storeClient, err := storepgx.NewResultDBStorageWithConnection(conn)
	if err != nil {
		return err
	}
	if err := storeClient.SaveEvidence(ctx, data.JobID, result.Items); err != nil {
		return fmt.Errorf("failed to persist consolidated evidence: %w", err)
	}

	resultKey := fmt.Sprintf("results/%s/consolidated.json", data.JobID)
	payload, err := json.Marshal(result.Items)
	if err != nil {
		return fmt.Errorf("failed to serialize consolidated evidence: %w", err)
	}
	if err := storage.PutJSON(ctx, s3Client, resultKey, payload); err != nil {
		return fmt.Errorf("failed to upload consolidated evidence: %w", err)
	}

	if data.ChainExtraction {
		next := ExtractJobMsg{JobID: data.JobID, ItemsKey: resultKey}
		msgBytes, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal extraction message: %w", err)
		}
		if err := PublishFIFO(ch, ExtractQueue, msgBytes); err != nil {
			return fmt.Errorf("failed to enqueue extraction job: %w", err)
		}
		logger.Info("[Queue] Extraction job enqueued", "job", data.JobID, "items_key", resultKey)
	}

	return nil
}
