package consolidate

import (
	"testing"

	"github.com/caselens/backend/pkg/common"
)

func boxed(id, text, category string, page int, box common.BoundingBox) common.EvidenceItem {
	return common.EvidenceItem{
		ID: id, Text: text, Category: category,
		DocumentID: "doc-1", Page: page, Box: &box,
	}
}

func countMembers(groups []common.CandidateGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Members)
	}
	return n
}

func TestGroupCoverageInvariant(t *testing.T) {
	items := []common.EvidenceItem{
		boxed("a", "ENTITY NAME: X", "facts", 1, common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}),
		boxed("b", "ENTITY TYPE: Y", "facts", 1, common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}),
		boxed("c", "an unrelated paragraph about procedure.", "facts", 7, common.BoundingBox{X1: 100, Y1: 500, X2: 500, Y2: 530}),
		evidence("d", "a quote without box data.", "other"),
		evidence("e", "another distinct quote, also boxless.", "other"),
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if got := countMembers(groups) + len(singles); got != len(items) {
		t.Fatalf("coverage: %d grouped members + singles, want %d", got, len(items))
	}
}

func TestGroupTablePairSharedBlock(t *testing.T) {
	box := common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}
	items := []common.EvidenceItem{
		boxed("a", "ENTITY NAME: X", "facts", 1, box),
		boxed("b", "ENTITY TYPE: Y", "facts", 1, box),
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if len(groups) != 1 || len(singles) != 0 {
		t.Fatalf("groups = %d, singles = %d; want 1 group, 0 singles", len(groups), len(singles))
	}
	if groups[0].Reason != common.ReasonTablePair {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonTablePair)
	}
	if len(groups[0].Members) != 2 {
		t.Errorf("group size = %d, want 2", len(groups[0].Members))
	}
}

func TestGroupTablePairSideBySideBoxes(t *testing.T) {
	// label and value sit next to each other in the same table row, so
	// their boxes neither coincide nor stack vertically
	items := []common.EvidenceItem{
		boxed("a", "Total Employees", "facts", 1, common.BoundingBox{X1: 100, Y1: 200, X2: 260, Y2: 230}),
		boxed("b", "42", "facts", 1, common.BoundingBox{X1: 300, Y1: 200, X2: 340, Y2: 230}),
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if len(groups) != 1 || len(singles) != 0 {
		t.Fatalf("groups = %d, singles = %d; want 1 group, 0 singles", len(groups), len(singles))
	}
	if groups[0].Reason != common.ReasonTablePair {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonTablePair)
	}
	if groups[0].Confidence != common.ConfidenceHigh {
		t.Errorf("confidence = %q, want %q", groups[0].Confidence, common.ConfidenceHigh)
	}
}

func TestGroupSameTextBlockWithinTolerance(t *testing.T) {
	items := []common.EvidenceItem{
		boxed("a", "The witness testified that the agreement was signed before noon", "facts", 1,
			common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}),
		boxed("b", "on the fourteenth of March under supervision of counsel", "facts", 1,
			common.BoundingBox{X1: 103, Y1: 202, X2: 498, Y2: 228}),
	}

	g := NewGrouper(GrouperParams{})
	groups, _ := g.Group(items)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].Reason != common.ReasonSameTextBlock {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonSameTextBlock)
	}
	if groups[0].Confidence != common.ConfidenceVeryHigh {
		t.Errorf("confidence = %q, want %q", groups[0].Confidence, common.ConfidenceVeryHigh)
	}
}

func TestGroupSameVisualBlock(t *testing.T) {
	items := []common.EvidenceItem{
		boxed("a", "The board convened its annual meeting to review", "facts", 1,
			common.BoundingBox{X1: 100, Y1: 250, X2: 500, Y2: 300}),
		boxed("b", "the budget proposals submitted by all departments.", "facts", 1,
			common.BoundingBox{X1: 120, Y1: 320, X2: 480, Y2: 360}),
	}

	g := NewGrouper(GrouperParams{})
	groups, _ := g.Group(items)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].Reason != common.ReasonSameVisualBlock {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonSameVisualBlock)
	}
}

func TestGroupAdjacentPage(t *testing.T) {
	items := []common.EvidenceItem{
		boxed("a", "The agreement remains binding on all successors", "facts", 1,
			common.BoundingBox{X1: 100, Y1: 820, X2: 500, Y2: 850}),
		boxed("b", "and assigns of the contracting parties named above.", "facts", 2,
			common.BoundingBox{X1: 110, Y1: 100, X2: 500, Y2: 130}),
	}

	g := NewGrouper(GrouperParams{})
	groups, _ := g.Group(items)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].Reason != common.ReasonAdjacentPage {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonAdjacentPage)
	}
	if groups[0].Confidence != common.ConfidenceMedium {
		t.Errorf("confidence = %q, want %q", groups[0].Confidence, common.ConfidenceMedium)
	}
}

func TestGroupSentenceContinuation(t *testing.T) {
	items := []common.EvidenceItem{
		evidence("a", "The committee reviewed the submitted evidence and", "facts"),
		evidence("b", "Concluded that the claims were fully substantiated.", "facts"),
	}

	g := NewGrouper(GrouperParams{})
	groups, _ := g.Group(items)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].Reason != common.ReasonSentenceContinuation {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonSentenceContinuation)
	}
}

func TestGroupTerminalPunctuationBlocksContinuation(t *testing.T) {
	items := []common.EvidenceItem{
		boxed("a", "The court ruled against the motion in its entirety.", "facts", 1,
			common.BoundingBox{X1: 100, Y1: 100, X2: 500, Y2: 130}),
		boxed("b", "A separate filing addressed the question of costs and sanctions.", "facts", 1,
			common.BoundingBox{X1: 100, Y1: 700, X2: 500, Y2: 730}),
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if len(groups) != 0 || len(singles) != 2 {
		t.Fatalf("groups = %d, singles = %d; want 0 groups, 2 singles", len(groups), len(singles))
	}
}

func TestGroupComponentKeepsStrongestReason(t *testing.T) {
	// a and d share one text block (very_high); b, c, and d chain in via
	// sentence continuation (medium). The late union of d's component
	// into b's re-parents the root that recorded the very_high edge, so
	// the merged component must still report the strongest reason.
	items := []common.EvidenceItem{
		boxed("a", "The plaintiff rested its case on the first morning.", "facts", 1,
			common.BoundingBox{X1: 100, Y1: 100, X2: 300, Y2: 130}),
		boxed("b", "The defense opened with a lengthy procedural motion", "facts", 1,
			common.BoundingBox{X1: 500, Y1: 100, X2: 700, Y2: 130}),
		boxed("c", "the court reporter noted several exhibits were missing", "facts", 1,
			common.BoundingBox{X1: 900, Y1: 100, X2: 1000, Y2: 130}),
		boxed("d", "which were later recovered from the clerks office", "facts", 1,
			common.BoundingBox{X1: 101, Y1: 100, X2: 301, Y2: 131}),
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if len(groups) != 1 || len(singles) != 0 {
		t.Fatalf("groups = %d, singles = %d; want one merged component", len(groups), len(singles))
	}
	if groups[0].Reason != common.ReasonSameTextBlock {
		t.Errorf("reason = %q, want %q", groups[0].Reason, common.ReasonSameTextBlock)
	}
	if groups[0].Confidence != common.ConfidenceVeryHigh {
		t.Errorf("confidence = %q, want %q", groups[0].Confidence, common.ConfidenceVeryHigh)
	}
}

func TestGroupNeverCrossesDocuments(t *testing.T) {
	box := common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}
	a := boxed("a", "identical position on the page", "facts", 1, box)
	b := boxed("b", "identical position, other document", "facts", 1, box)
	b.DocumentID = "doc-2"

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group([]common.EvidenceItem{a, b})

	if len(groups) != 0 || len(singles) != 2 {
		t.Fatalf("groups = %d, singles = %d; want cross-document items kept separate", len(groups), len(singles))
	}
}

func TestGroupNeverCrossesCategories(t *testing.T) {
	box := common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}
	items := []common.EvidenceItem{
		boxed("a", "shared block, category one", "facts", 1, box),
		boxed("b", "shared block, category two", "background", 1, box),
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if len(groups) != 0 || len(singles) != 2 {
		t.Fatalf("groups = %d, singles = %d; want cross-category items kept separate", len(groups), len(singles))
	}
}

func TestGroupSplitsOversizedComponents(t *testing.T) {
	box := common.BoundingBox{X1: 100, Y1: 200, X2: 500, Y2: 230}
	items := make([]common.EvidenceItem, 0, 7)
	for i := 0; i < 7; i++ {
		items = append(items, boxed(
			string(rune('a'+i)),
			"fragment sharing one text block with its neighbors",
			"facts", 1, box,
		))
	}

	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(items)

	if got := countMembers(groups) + len(singles); got != 7 {
		t.Fatalf("coverage: %d, want 7", got)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2 after splitting", len(groups))
	}
	for _, grp := range groups {
		if len(grp.Members) > 5 {
			t.Errorf("group size = %d, exceeds max of 5", len(grp.Members))
		}
	}
}

func TestGroupEmptyInput(t *testing.T) {
	g := NewGrouper(GrouperParams{})
	groups, singles := g.Group(nil)
	if len(groups) != 0 || len(singles) != 0 {
		t.Fatalf("empty input produced groups=%d singles=%d", len(groups), len(singles))
	}
}
