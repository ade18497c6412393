package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/caselens/backend/pkg/ai"
	"github.com/caselens/backend/pkg/archive"
	"github.com/caselens/backend/pkg/batch"
	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/logger"
)

// GraphResult is the caller-visible outcome of one graph build. A run
// with failed batches is a valid terminal state: the graph holds what
// the successful batches produced, and FailedBatches names the gaps.
type GraphResult struct {
	Graph         *common.RelationshipGraph `json:"graph"`
	TotalBatches  int                       `json:"total_batches"`
	FailedBatches []int                     `json:"failed_batches"`
	Coverage      float64                   `json:"coverage"`
	Resumed       bool                      `json:"resumed"`
	Summary       []CategorySupport         `json:"summary"`
}

// BuildGraph runs the extraction loop over items. Batches are processed
// strictly sequentially in index order; after every batch the graph
// snapshot is persisted, so killing the process between batches is safe.
// When a prior checkpoint exists for jobID, the run resumes using the
// checkpoint's input snapshot and skips every batch the checkpoint
// records as completed, including completed batches that sit after a
// failed one. Only outstanding batches reach the oracle again.
func (g *GraphClient) BuildGraph(
	ctx context.Context,
	jobID string,
	items []common.EvidenceItem,
) (*GraphResult, error) {
	builder := NewBuilder()
	completed := map[int]bool{}
	resumed := false

	resumable, err := g.checkpoints.HasResumableState()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect checkpoint: %w", err)
	}

	if resumable {
		state, err := g.checkpoints.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if err := builder.Restore(state.SerializedGraph); err != nil {
			return nil, err
		}
		if len(state.InputSnapshot) > 0 {
			items = state.InputSnapshot
		}
		for _, idx := range state.CompletedBatches {
			completed[idx] = true
		}
		resumed = true
		logger.Info("[Graph] Resuming from checkpoint",
			"job", jobID,
			"resume_batch", state.ResumePoint(),
			"completed_batches", len(completed),
			"total_batches", state.TotalBatches,
		)
	}

	quotes, members := indexItems(items)
	units := g.scheduler.Pack(members)

	if !resumed {
		if _, err := g.checkpoints.InitNew(len(units), items); err != nil {
			return nil, fmt.Errorf("failed to initialize checkpoint: %w", err)
		}
	}

	logger.Info("[Graph] Processing",
		"job", jobID,
		"items", len(items),
		"total_batches", len(units),
		"completed_batches", len(completed),
	)

	failed := []int{}
	for _, unit := range units {
		// already durably recorded by a previous run
		if completed[unit.Index] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := g.checkpoints.MarkInProgress(unit.Index); err != nil {
			return nil, fmt.Errorf("failed to mark batch in progress: %w", err)
		}

		batchQuotes := quotesForUnit(unit, quotes)
		res, aiErr := ai.CallExtractionAI(ctx, batchQuotes, g.oracle, g.maxRetries)
		if aiErr != nil {
			logger.Warn("[Graph] Batch failed after retries",
				"job", jobID, "batch", unit.Index, "err", aiErr,
			)
			g.archive.Write(ctx, jobID, archive.StageOracleBatch, unit.Index, archive.OracleExchange{
				BatchIndex: unit.Index,
				Prompt:     ai.BuildExtractionPrompt(batchQuotes),
				Failed:     true,
				Error:      aiErr.Error(),
			})
			if err := g.checkpoints.MarkFailed(unit.Index); err != nil {
				return nil, fmt.Errorf("failed to mark batch failed: %w", err)
			}
			failed = append(failed, unit.Index)
			continue
		}

		applyExtraction(builder, res)

		g.archive.Write(ctx, jobID, archive.StageOracleBatch, unit.Index, archive.OracleExchange{
			BatchIndex: unit.Index,
			Prompt:     ai.BuildExtractionPrompt(batchQuotes),
			Response:   res,
		})

		snapshot, err := builder.Serialize()
		if err != nil {
			return nil, err
		}
		if err := g.checkpoints.SaveBatch(unit.Index, snapshot); err != nil {
			return nil, fmt.Errorf("failed to save batch checkpoint: %w", err)
		}

		if g.batchDelay > 0 && unit.Index < len(units)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.batchDelay):
			}
		}
	}

	state, err := g.checkpoints.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load final checkpoint state: %w", err)
	}
	if state != nil {
		failed = state.FailedBatches
	}

	if len(failed) == 0 {
		if err := g.checkpoints.MarkCompleted(); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("[Graph] Completed with failed batches, checkpoint retained",
			"job", jobID, "failed_batches", failed,
		)
	}

	graph := builder.Graph()
	result := &GraphResult{
		Graph:         graph,
		TotalBatches:  len(units),
		FailedBatches: failed,
		Coverage:      coverage(len(units), len(failed)),
		Resumed:       resumed,
		Summary:       SummarizeSupport(graph, items),
	}

	g.archive.Write(ctx, jobID, archive.StageSummary, 0, result)

	logger.Info("[Graph] Build completed",
		"job", jobID,
		"entities", len(graph.Entities),
		"relations", len(graph.Relations),
		"failed_batches", len(failed),
	)

	return result, nil
}

// indexItems assigns each valid item its job-wide quote index and wraps
// it as a schedulable member. Malformed items are skipped with a warning
// but keep their index positions stable for the rest of the list.
func indexItems(items []common.EvidenceItem) (map[string][]ai.IndexedQuote, []batch.Member) {
	quotes := make(map[string][]ai.IndexedQuote, len(items))
	members := make([]batch.Member, 0, len(items))

	for i, item := range items {
		if item.Text == "" || item.Category == "" {
			logger.Warn("[Graph] Skipping malformed item", "index", i, "id", item.ID)
			continue
		}
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("item-%d", i)
			item.ID = id
		}
		quotes[id] = append(quotes[id], ai.IndexedQuote{Index: i, Text: item.Text})
		members = append(members, batch.Member{
			Single: &common.SingleItem{ID: id, Item: item},
		})
	}

	return quotes, members
}

func quotesForUnit(unit batch.Unit, quotes map[string][]ai.IndexedQuote) []ai.IndexedQuote {
	seen := map[int]bool{}
	out := make([]ai.IndexedQuote, 0, len(unit.Members))
	for _, m := range unit.Members {
		for _, q := range quotes[m.ID()] {
			if seen[q.Index] {
				continue
			}
			seen[q.Index] = true
			out = append(out, q)
		}
	}
	return out
}

// applyExtraction feeds one batch's oracle output into the builder.
// Entities first, then relations, so relation endpoints resolve within
// the same batch.
func applyExtraction(builder *Builder, res *ai.ExtractionResponse) {
	for _, item := range res.Items {
		for _, e := range item.Entities {
			if e.Name == "" {
				continue
			}
			builder.AddEntity(e.Name, e.Type, item.QuoteIdx)
		}
	}
	for _, item := range res.Items {
		for _, r := range item.Relations {
			if r.From == "" || r.To == "" || r.Type == "" {
				continue
			}
			builder.AddRelation(r.From, r.To, r.Type, item.QuoteIdx)
		}
	}
}

func coverage(total, failed int) float64 {
	if total == 0 {
		return 100.0
	}
	return float64(total-failed) / float64(total) * 100.0
}
