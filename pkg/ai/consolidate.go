package ai

import (
	"context"
	"fmt"
	"strings"

	gUtil "github.com/caselens/backend/internal/util"
	"github.com/caselens/backend/pkg/common"
)

const quotePreviewLength = 500

// DecisionResultEntry carries replacement text for merge and adjust decisions.
type DecisionResultEntry struct {
	MergedText        string `json:"merged_text,omitempty" jsonschema_description:"Merged text combining all group members, only for merge decisions."`
	MergedRelevance   string `json:"merged_relevance,omitempty" jsonschema_description:"Relevance note for the merged item, only for merge decisions."`
	AdjustedText      string `json:"adjusted_text,omitempty" jsonschema_description:"Cleaned-up text, only for adjust decisions."`
	AdjustedRelevance string `json:"adjusted_relevance,omitempty" jsonschema_description:"Relevance note for the adjusted item, only for adjust decisions."`
}

// DecisionEntry is one oracle verdict for a submitted group or single item.
type DecisionEntry struct {
	ItemID   string               `json:"item_id" jsonschema_description:"The id of the group or single item this decision applies to."`
	Kind     string               `json:"type" jsonschema_description:"Whether the decision targets a 'group' or a 'single'."`
	Decision string               `json:"decision" jsonschema_description:"One of merge, adjust, keep, approve, reject."`
	Reason   string               `json:"reason" jsonschema_description:"Short justification for the decision."`
	Result   *DecisionResultEntry `json:"result,omitempty" jsonschema_description:"Replacement text, required for merge and adjust decisions."`
}

// DecisionsResponse is the oracle's answer to one consolidation batch.
type DecisionsResponse struct {
	Decisions []DecisionEntry `json:"decisions" jsonschema_description:"Exactly one decision per submitted item id."`
}

// BuildConsolidationPrompt renders one batch of groups and singles into the
// consolidation prompt. Texts are truncated to keep the prompt bounded.
func BuildConsolidationPrompt(groups []common.CandidateGroup, singles []common.SingleItem) string {
	var data strings.Builder

	if len(groups) > 0 {
		data.WriteString("Candidate groups:\n")
		for _, g := range groups {
			fmt.Fprintf(&data, "GROUP %s (reason: %s, confidence: %s):\n", g.ID, g.Reason, g.Confidence)
			for _, m := range g.Members {
				fmt.Fprintf(&data, "  - [page %d] %q", m.Page, TruncateText(m.Text, quotePreviewLength))
				if m.RelevanceNote != "" {
					fmt.Fprintf(&data, " (relevance: %s)", TruncateText(m.RelevanceNote, 200))
				}
				data.WriteString("\n")
			}
		}
	}

	if len(singles) > 0 {
		data.WriteString("Standalone quotes:\n")
		for _, s := range singles {
			fmt.Fprintf(&data, "SINGLE %s: [page %d] %q", s.ID, s.Item.Page, TruncateText(s.Item.Text, quotePreviewLength))
			if s.Item.RelevanceNote != "" {
				fmt.Fprintf(&data, " (relevance: %s)", TruncateText(s.Item.RelevanceNote, 200))
			}
			data.WriteString("\n")
		}
	}

	return fmt.Sprintf(ConsolidationPrompt, data.String())
}

// CallConsolidationAI asks the oracle for merge/keep/adjust decisions on the
// given groups and approve/reject/adjust decisions on the given singles.
// The raw response is validated and converted into typed decisions at this
// boundary; downstream components never see untyped oracle output.
func CallConsolidationAI(
	ctx context.Context,
	groups []common.CandidateGroup,
	singles []common.SingleItem,
	oracle OracleClient,
	maxRetries int,
) ([]common.Decision, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle client is nil")
	}
	if len(groups) == 0 && len(singles) == 0 {
		return []common.Decision{}, nil
	}

	prompt := BuildConsolidationPrompt(groups, singles)

	var res DecisionsResponse
	err := gUtil.RetryErrWithContext(ctx, maxRetries, func(ctx context.Context) error {
		res = DecisionsResponse{}
		return oracle.GenerateCompletionWithFormat(
			ctx, "consolidation_decisions", "Merge, keep, adjust, approve, or reject evidence quotes.", prompt, &res,
			WithModel(oracle.DecisionModel()),
		)
	})
	if err != nil {
		return nil, err
	}

	decisions := make([]common.Decision, 0, len(res.Decisions))
	for _, entry := range res.Decisions {
		if entry.ItemID == "" {
			continue
		}
		d := common.Decision{
			ItemID: entry.ItemID,
			Type:   common.DecisionType(strings.ToLower(strings.TrimSpace(entry.Decision))),
			Reason: entry.Reason,
		}
		if entry.Result != nil {
			d.Result = &common.DecisionResult{
				MergedText:        entry.Result.MergedText,
				MergedRelevance:   entry.Result.MergedRelevance,
				AdjustedText:      entry.Result.AdjustedText,
				AdjustedRelevance: entry.Result.AdjustedRelevance,
			}
		}
		decisions = append(decisions, d)
	}

	return decisions, nil
}
