package consolidate

import (
	"context"
	"time"

	"github.com/caselens/backend/pkg/ai"
	"github.com/caselens/backend/pkg/archive"
	"github.com/caselens/backend/pkg/batch"
	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/logger"
)

// Result is the caller-visible outcome of one consolidation run. Failed
// batches leave their items untouched rather than dropping them, so Items
// always covers the full deduplicated input.
type Result struct {
	Items         []common.EvidenceItem     `json:"items"`
	Stats         common.ConsolidationStats `json:"stats"`
	TotalBatches  int                       `json:"total_batches"`
	FailedBatches []int                     `json:"failed_batches"`
	Coverage      float64                   `json:"coverage"`
}

// Consolidate runs the full pipeline over items: validation, mechanical
// deduplication, heuristic grouping, batching, sequential oracle review,
// and decision application. Every stage is archived. Oracle failures
// never abort the job; the affected batch falls back to keep/approve.
func (c *Client) Consolidate(
	ctx context.Context,
	jobID string,
	items []common.EvidenceItem,
) (*Result, error) {
	valid := make([]common.EvidenceItem, 0, len(items))
	for i, item := range items {
		if item.Text == "" || item.Category == "" {
			logger.Warn("[Consolidate] Skipping malformed item", "index", i, "id", item.ID)
			continue
		}
		valid = append(valid, item)
	}

	logger.Info("[Consolidate] Starting", "job", jobID, "items", len(valid))
	c.archive.Write(ctx, jobID, archive.StageOriginal, 0, valid)

	deduped, dedupeStats := Deduplicate(valid, c.dedupe)
	c.archive.Write(ctx, jobID, archive.StageDeduplicated, 0, deduped)
	logger.Info("[Consolidate] Deduplicated",
		"job", jobID, "before", dedupeStats.Original, "removed", dedupeStats.Removed,
	)

	groups, singles := c.grouper.Group(deduped)
	c.archive.Write(ctx, jobID, archive.StageGroups, 0, map[string]any{
		"groups":  groups,
		"singles": singles,
	})
	logger.Info("[Consolidate] Grouped",
		"job", jobID, "groups", len(groups), "singles", len(singles),
	)

	members := make([]batch.Member, 0, len(groups)+len(singles))
	for i := range groups {
		members = append(members, batch.Member{Group: &groups[i]})
	}
	for i := range singles {
		members = append(members, batch.Member{Single: &singles[i]})
	}
	units := c.scheduler.Pack(members)
	c.archive.Write(ctx, jobID, archive.StageBatchPlan, 0, units)

	final := []common.EvidenceItem{}
	failed := []int{}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		unitGroups, unitSingles := splitUnit(unit)
		prompt := ai.BuildConsolidationPrompt(unitGroups, unitSingles)

		decisions, err := ai.CallConsolidationAI(ctx, unitGroups, unitSingles, c.oracle, c.maxRetries)
		if err != nil {
			logger.Warn("[Consolidate] Batch failed after retries, keeping items unchanged",
				"job", jobID, "batch", unit.Index, "err", err,
			)
			c.archive.Write(ctx, jobID, archive.StageOracleBatch, unit.Index, archive.OracleExchange{
				BatchIndex: unit.Index,
				Prompt:     prompt,
				Failed:     true,
				Error:      err.Error(),
			})
			failed = append(failed, unit.Index)
			decisions = nil
		} else {
			c.archive.Write(ctx, jobID, archive.StageOracleBatch, unit.Index, archive.OracleExchange{
				BatchIndex: unit.Index,
				Prompt:     prompt,
				Response:   decisions,
			})
		}

		final = append(final, ApplyDecisions(unitGroups, unitSingles, decisions, c.apply)...)

		if c.batchDelay > 0 && unit.Index < len(units)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}
	}

	stats := common.ConsolidationStats{
		Original:   len(valid),
		AfterDedup: len(deduped),
		Removed:    dedupeStats.Removed,
		Final:      len(final),
	}
	if stats.Original > 0 {
		stats.ReductionRate = float64(stats.Original-stats.Final) / float64(stats.Original) * 100.0
	}

	result := &Result{
		Items:         final,
		Stats:         stats,
		TotalBatches:  len(units),
		FailedBatches: failed,
		Coverage:      coverage(len(units), len(failed)),
	}

	c.archive.Write(ctx, jobID, archive.StageFinal, 0, final)
	c.archive.Write(ctx, jobID, archive.StageSummary, 0, result)

	logger.Info("[Consolidate] Completed",
		"job", jobID,
		"original", stats.Original,
		"final", stats.Final,
		"failed_batches", len(failed),
	)

	return result, nil
}

// splitUnit separates a batch unit back into its groups and singles,
// preserving order within each kind.
func splitUnit(unit batch.Unit) ([]common.CandidateGroup, []common.SingleItem) {
	groups := []common.CandidateGroup{}
	singles := []common.SingleItem{}
	for _, m := range unit.Members {
		if m.Group != nil {
			groups = append(groups, *m.Group)
		}
		if m.Single != nil {
			singles = append(singles, *m.Single)
		}
	}
	return groups, singles
}

func coverage(total, failed int) float64 {
	if total == 0 {
		return 100.0
	}
	return float64(total-failed) / float64(total) * 100.0
}
