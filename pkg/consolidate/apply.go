package consolidate

import (
	"fmt"
	"strings"

	"github.com/caselens/backend/pkg/ai"
	"github.com/caselens/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ApplyParams configures decision application.
type ApplyParams struct {
	// MaxConsolidatedLength caps the text length of merged items.
	MaxConsolidatedLength int
}

func (p *ApplyParams) applyDefaults() {
	if p.MaxConsolidatedLength <= 0 {
		p.MaxConsolidatedLength = 2000
	}
}

// ApplyDecisions turns oracle decisions plus heuristic groups into the
// final evidence list. The mapping is total and deterministic: groups
// without a decision fall back to keep, singles to approve, and unknown
// decision types are treated as the safe default, never as reject.
func ApplyDecisions(
	groups []common.CandidateGroup,
	singles []common.SingleItem,
	decisions []common.Decision,
	params ApplyParams,
) []common.EvidenceItem {
	params.applyDefaults()

	byID := make(map[string]common.Decision, len(decisions))
	for _, d := range decisions {
		if _, exists := byID[d.ItemID]; exists {
			continue // first decision per id wins
		}
		byID[d.ItemID] = d
	}

	result := []common.EvidenceItem{}

	for _, g := range groups {
		d, ok := byID[g.ID]
		if !ok {
			result = append(result, g.Members...)
			continue
		}
		switch d.Type {
		case common.DecisionMerge:
			result = append(result, mergeGroup(g, d, params))
		case common.DecisionAdjust:
			if d.Result == nil || d.Result.AdjustedText == "" {
				result = append(result, g.Members...)
				continue
			}
			merged := mergeGroup(g, d, params)
			merged.Text = ai.TruncateText(d.Result.AdjustedText, params.MaxConsolidatedLength)
			if d.Result.AdjustedRelevance != "" {
				merged.RelevanceNote = d.Result.AdjustedRelevance
			}
			result = append(result, merged)
		default:
			// keep, or anything unrecognized
			result = append(result, g.Members...)
		}
	}

	for _, s := range singles {
		d, ok := byID[s.ID]
		if !ok {
			result = append(result, s.Item)
			continue
		}
		switch d.Type {
		case common.DecisionReject:
			// dropped
		case common.DecisionAdjust:
			item := s.Item
			if d.Result != nil && d.Result.AdjustedText != "" {
				item.Text = ai.TruncateText(d.Result.AdjustedText, params.MaxConsolidatedLength)
			}
			if d.Result != nil && d.Result.AdjustedRelevance != "" {
				item.RelevanceNote = d.Result.AdjustedRelevance
			}
			result = append(result, item)
		default:
			// approve, or anything unrecognized
			result = append(result, s.Item)
		}
	}

	return result
}

// mergeGroup builds one derived item from a group. The merged item takes
// the minimum page of its members and records how many members it
// consolidates; members spanning pages get a page range.
func mergeGroup(g common.CandidateGroup, d common.Decision, params ApplyParams) common.EvidenceItem {
	first := g.Members[0]

	minPage, maxPage := first.Page, first.Page
	for _, m := range g.Members[1:] {
		if m.Page < minPage {
			minPage = m.Page
		}
		if m.Page > maxPage {
			maxPage = m.Page
		}
	}

	text := ""
	relevance := ""
	if d.Result != nil {
		text = d.Result.MergedText
		relevance = d.Result.MergedRelevance
	}
	if text == "" {
		// oracle said merge but gave no text; join members in reading order
		parts := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			parts = append(parts, strings.TrimSpace(m.Text))
		}
		text = strings.Join(parts, " ")
	}
	if relevance == "" {
		var notes []string
		for _, m := range g.Members {
			if m.RelevanceNote != "" {
				notes = append(notes, m.RelevanceNote)
			}
		}
		relevance = strings.Join(notes, "; ")
	}

	item := common.EvidenceItem{
		ID:                newMergedID(g.ID),
		Text:              ai.TruncateText(text, params.MaxConsolidatedLength),
		Category:          first.Category,
		DocumentID:        first.DocumentID,
		Page:              minPage,
		RelevanceNote:     relevance,
		ConsolidatedCount: len(g.Members),
	}
	if maxPage > minPage {
		item.PageRange = fmt.Sprintf("%d-%d", minPage, maxPage)
	}
	return item
}

func newMergedID(groupID string) string {
	id, err := gonanoid.New()
	if err != nil {
		return "merged-" + groupID
	}
	return id
}
