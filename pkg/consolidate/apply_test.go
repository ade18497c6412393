package consolidate

import (
	"strings"
	"testing"

	"github.com/caselens/backend/pkg/common"
)

func tablePairGroup() common.CandidateGroup {
	return common.CandidateGroup{
		ID: "grp-1",
		Members: []common.EvidenceItem{
			{ID: "a", Text: "ENTITY NAME: X", Category: "facts", DocumentID: "doc-1", Page: 3},
			{ID: "b", Text: "ENTITY TYPE: Y", Category: "facts", DocumentID: "doc-1", Page: 3},
		},
		Reason:     common.ReasonTablePair,
		Confidence: common.ConfidenceHigh,
	}
}

func TestApplyMergeDecision(t *testing.T) {
	group := tablePairGroup()
	decisions := []common.Decision{{
		ItemID: "grp-1",
		Type:   common.DecisionMerge,
		Result: &common.DecisionResult{MergedText: "ENTITY NAME: X: ENTITY TYPE: Y"},
	}}

	out := ApplyDecisions([]common.CandidateGroup{group}, nil, decisions, ApplyParams{})

	if len(out) != 1 {
		t.Fatalf("output = %d items, want 1", len(out))
	}
	if out[0].Text != "ENTITY NAME: X: ENTITY TYPE: Y" {
		t.Errorf("text = %q, want merged text", out[0].Text)
	}
	if out[0].ConsolidatedCount != 2 {
		t.Errorf("consolidatedCount = %d, want 2", out[0].ConsolidatedCount)
	}
	if out[0].Page != 3 {
		t.Errorf("page = %d, want 3", out[0].Page)
	}
}

func TestApplyMergeAcrossPagesSetsRange(t *testing.T) {
	group := common.CandidateGroup{
		ID: "grp-1",
		Members: []common.EvidenceItem{
			{ID: "a", Text: "first half of the sentence", Category: "facts", Page: 4},
			{ID: "b", Text: "second half of the sentence", Category: "facts", Page: 5},
		},
		Reason: common.ReasonAdjacentPage,
	}
	decisions := []common.Decision{{
		ItemID: "grp-1",
		Type:   common.DecisionMerge,
		Result: &common.DecisionResult{MergedText: "first half of the sentence second half of the sentence"},
	}}

	out := ApplyDecisions([]common.CandidateGroup{group}, nil, decisions, ApplyParams{})

	if len(out) != 1 {
		t.Fatalf("output = %d items, want 1", len(out))
	}
	if out[0].Page != 4 {
		t.Errorf("page = %d, want minimum 4", out[0].Page)
	}
	if out[0].PageRange != "4-5" {
		t.Errorf("pageRange = %q, want 4-5", out[0].PageRange)
	}
}

func TestApplyMergeWithoutResultJoinsMembers(t *testing.T) {
	group := tablePairGroup()
	decisions := []common.Decision{{ItemID: "grp-1", Type: common.DecisionMerge}}

	out := ApplyDecisions([]common.CandidateGroup{group}, nil, decisions, ApplyParams{})

	if len(out) != 1 {
		t.Fatalf("output = %d items, want 1", len(out))
	}
	if out[0].Text != "ENTITY NAME: X ENTITY TYPE: Y" {
		t.Errorf("text = %q, want member texts joined", out[0].Text)
	}
}

func TestApplyEmptyDecisionList(t *testing.T) {
	group := tablePairGroup()
	singles := []common.SingleItem{
		{ID: "sgl-1", Item: common.EvidenceItem{ID: "c", Text: "standalone quote", Category: "facts"}},
	}

	out := ApplyDecisions([]common.CandidateGroup{group}, singles, nil, ApplyParams{})

	// every group member and single survives unchanged
	if len(out) != 3 {
		t.Fatalf("output = %d items, want 3", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "b" || out[2].ID != "c" {
		t.Errorf("output ids = %v, want originals in order", []string{out[0].ID, out[1].ID, out[2].ID})
	}
}

func TestApplyUnknownDecisionTypeIsSafe(t *testing.T) {
	group := tablePairGroup()
	singles := []common.SingleItem{
		{ID: "sgl-1", Item: common.EvidenceItem{ID: "c", Text: "standalone quote", Category: "facts"}},
	}
	decisions := []common.Decision{
		{ItemID: "grp-1", Type: common.DecisionType("discard")},
		{ItemID: "sgl-1", Type: common.DecisionType("remove")},
	}

	out := ApplyDecisions([]common.CandidateGroup{group}, singles, decisions, ApplyParams{})

	// unknown types fall back to keep/approve, never reject
	if len(out) != 3 {
		t.Fatalf("output = %d items, want 3", len(out))
	}
}

func TestApplyRejectDropsSingle(t *testing.T) {
	singles := []common.SingleItem{
		{ID: "sgl-1", Item: common.EvidenceItem{ID: "a", Text: "irrelevant aside", Category: "facts"}},
		{ID: "sgl-2", Item: common.EvidenceItem{ID: "b", Text: "material statement", Category: "facts"}},
	}
	decisions := []common.Decision{
		{ItemID: "sgl-1", Type: common.DecisionReject},
		{ItemID: "sgl-2", Type: common.DecisionApprove},
	}

	out := ApplyDecisions(nil, singles, decisions, ApplyParams{})

	if len(out) != 1 {
		t.Fatalf("output = %d items, want 1", len(out))
	}
	if out[0].ID != "b" {
		t.Errorf("survivor = %q, want b", out[0].ID)
	}
}

func TestApplyAdjustSingle(t *testing.T) {
	singles := []common.SingleItem{
		{ID: "sgl-1", Item: common.EvidenceItem{ID: "a", Text: "statment with a typo", Category: "facts", RelevanceNote: "old"}},
	}
	decisions := []common.Decision{{
		ItemID: "sgl-1",
		Type:   common.DecisionAdjust,
		Result: &common.DecisionResult{AdjustedText: "statement without a typo", AdjustedRelevance: "new"},
	}}

	out := ApplyDecisions(nil, singles, decisions, ApplyParams{})

	if len(out) != 1 {
		t.Fatalf("output = %d items, want 1", len(out))
	}
	if out[0].Text != "statement without a typo" {
		t.Errorf("text = %q, want adjusted text", out[0].Text)
	}
	if out[0].RelevanceNote != "new" {
		t.Errorf("relevance = %q, want new", out[0].RelevanceNote)
	}
}

func TestApplyAdjustGroupWithoutResultFallsBackToKeep(t *testing.T) {
	group := tablePairGroup()
	decisions := []common.Decision{{ItemID: "grp-1", Type: common.DecisionAdjust}}

	out := ApplyDecisions([]common.CandidateGroup{group}, nil, decisions, ApplyParams{})

	if len(out) != 2 {
		t.Fatalf("output = %d items, want both members kept", len(out))
	}
}

func TestApplyTruncatesOverlongMergedText(t *testing.T) {
	group := common.CandidateGroup{
		ID: "grp-1",
		Members: []common.EvidenceItem{
			{ID: "a", Text: "first", Category: "facts", Page: 1},
			{ID: "b", Text: "second", Category: "facts", Page: 1},
		},
	}
	decisions := []common.Decision{{
		ItemID: "grp-1",
		Type:   common.DecisionMerge,
		Result: &common.DecisionResult{MergedText: strings.Repeat("x", 3000)},
	}}

	out := ApplyDecisions([]common.CandidateGroup{group}, nil, decisions, ApplyParams{})

	if len(out) != 1 {
		t.Fatalf("output = %d items, want 1", len(out))
	}
	// cap plus the ellipsis marker
	if got := len([]rune(out[0].Text)); got > 2003 {
		t.Errorf("merged text length = %d, want capped near 2000", got)
	}
}
