package consolidate

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/caselens/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GrouperParams holds the spatial and textual adjacency thresholds. All
// coordinates are in the normalized 0-1000 page space. The defaults were
// tuned against OCR output from scanned exhibits and should be re-tuned
// per document source.
type GrouperParams struct {
	// MaxGroupSize caps the number of members per candidate group;
	// larger connected components are split.
	MaxGroupSize int
	// LookaheadWindow bounds how many sort-order neighbors each item is
	// compared against.
	LookaheadWindow int
	// BoxTolerance is the per-coordinate tolerance under which two
	// bounding boxes count as the same text block.
	BoxTolerance float64
	// YAdjacentThreshold is the max vertical gap for same-page visual
	// adjacency.
	YAdjacentThreshold float64
	// XOverlapThreshold is the min horizontal overlap for same-page
	// visual adjacency.
	XOverlapThreshold float64
	// SameColumnXDiff is the max horizontal offset for cross-page
	// column alignment.
	SameColumnXDiff float64
	// PageBottomY and PageTopY delimit the bottom and top page bands
	// used for cross-page adjacency.
	PageBottomY float64
	PageTopY    float64
}

func (p *GrouperParams) applyDefaults() {
	if p.MaxGroupSize <= 0 {
		p.MaxGroupSize = 5
	}
	if p.LookaheadWindow <= 0 {
		p.LookaheadWindow = 10
	}
	if p.BoxTolerance <= 0 {
		p.BoxTolerance = 5
	}
	if p.YAdjacentThreshold <= 0 {
		p.YAdjacentThreshold = 50
	}
	if p.XOverlapThreshold <= 0 {
		p.XOverlapThreshold = 100
	}
	if p.SameColumnXDiff <= 0 {
		p.SameColumnXDiff = 200
	}
	if p.PageBottomY <= 0 {
		p.PageBottomY = 800
	}
	if p.PageTopY <= 0 {
		p.PageTopY = 200
	}
}

// Grouper builds candidate groups from deduplicated evidence items using
// spatial and textual adjacency heuristics. Grouping is deliberately
// conservative on precision and generous on recall: a wrong group costs
// one oracle "keep" decision, a missed group loses a merge forever.
type Grouper struct {
	params GrouperParams
}

// NewGrouper creates a Grouper with the given parameters. Zero-valued
// fields fall back to defaults.
func NewGrouper(params GrouperParams) *Grouper {
	params.applyDefaults()
	return &Grouper{params: params}
}

var (
	continuationChars = []string{",", "，", ";", "；", ":", "：", "-", "–", "—"}
	continuationWords = map[string]bool{
		"and": true, "or": true, "the": true, "a": true, "an": true,
		"of": true, "in": true, "to": true, "for": true, "with": true, "by": true,
	}
	numericValuePattern = regexp.MustCompile(`^[\d,.$%\s\-()]+$`)
)

type adjacency struct {
	reason     common.GroupingReason
	confidence common.Confidence
}

// Group partitions items into candidate groups and single items. Every
// input item lands in exactly one of the two outputs.
func (g *Grouper) Group(items []common.EvidenceItem) ([]common.CandidateGroup, []common.SingleItem) {
	groups := []common.CandidateGroup{}
	singles := []common.SingleItem{}
	if len(items) == 0 {
		return groups, singles
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := items[order[a]], items[order[b]]
		if ia.DocumentID != ib.DocumentID {
			return ia.DocumentID < ib.DocumentID
		}
		if ia.Page != ib.Page {
			return ia.Page < ib.Page
		}
		return boxY1(ia) < boxY1(ib)
	})

	uf := newUnionFind(len(items))
	type edge struct {
		item int
		adj  adjacency
	}
	edges := []edge{}

	for pi := 0; pi < len(order); pi++ {
		limit := pi + g.params.LookaheadWindow
		if limit > len(order)-1 {
			limit = len(order) - 1
		}
		for pj := pi + 1; pj <= limit; pj++ {
			a, b := items[order[pi]], items[order[pj]]
			if a.Category != b.Category || a.DocumentID != b.DocumentID {
				continue
			}
			adj, ok := g.adjacent(a, b)
			if !ok {
				continue
			}
			uf.union(order[pi], order[pj])
			edges = append(edges, edge{order[pi], adj})
		}
	}

	// resolve edge reasons only after all unions: a root recorded
	// mid-pass can be re-parented by a later union, which would strand
	// the component's strongest reason
	edgeInfo := make(map[int]adjacency)
	for _, e := range edges {
		root := uf.find(e.item)
		if prev, exists := edgeInfo[root]; !exists || confidenceRank(e.adj.confidence) > confidenceRank(prev.confidence) {
			edgeInfo[root] = e.adj
		}
	}

	// collect components in sorted-order of their first member
	components := make(map[int][]int)
	for _, idx := range order {
		root := uf.find(idx)
		components[root] = append(components[root], idx)
	}
	var roots []int
	seen := make(map[int]bool)
	for _, idx := range order {
		root := uf.find(idx)
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	for _, root := range roots {
		member := components[root]
		if len(member) < 2 {
			singles = append(singles, newSingle(items[member[0]]))
			continue
		}

		adj := edgeInfo[root]
		if adj.reason == "" {
			adj = adjacency{reason: common.ReasonProximity, confidence: common.ConfidenceLow}
		}

		// split oversized components into sub-groups in reading order
		for start := 0; start < len(member); start += g.params.MaxGroupSize {
			end := start + g.params.MaxGroupSize
			if end > len(member) {
				end = len(member)
			}
			chunk := member[start:end]
			if len(chunk) == 1 {
				singles = append(singles, newSingle(items[chunk[0]]))
				continue
			}
			group := common.CandidateGroup{
				ID:         newGroupID(),
				Reason:     adj.reason,
				Confidence: adj.confidence,
			}
			for _, idx := range chunk {
				group.Members = append(group.Members, items[idx])
			}
			groups = append(groups, group)
		}
	}

	return groups, singles
}

func (g *Grouper) adjacent(a, b common.EvidenceItem) (adjacency, bool) {
	if g.sameTextBlock(a, b) {
		// a label/value pair sharing one block is the more specific signal
		if isTablePair(a.Text, b.Text) {
			return adjacency{common.ReasonTablePair, common.ConfidenceHigh}, true
		}
		return adjacency{common.ReasonSameTextBlock, common.ConfidenceVeryHigh}, true
	}
	if g.sameVisualBlock(a, b) {
		return adjacency{common.ReasonSameVisualBlock, common.ConfidenceHigh}, true
	}
	if g.adjacentPage(a, b) {
		return adjacency{common.ReasonAdjacentPage, common.ConfidenceMedium}, true
	}
	if conf, ok := sentenceContinuation(a.Text, b.Text); ok {
		return adjacency{common.ReasonSentenceContinuation, conf}, true
	}
	// table pairing is position-free: the sort already places a label
	// right before its value, whatever the OCR boxes look like
	if isTablePair(a.Text, b.Text) {
		return adjacency{common.ReasonTablePair, common.ConfidenceHigh}, true
	}
	return adjacency{}, false
}

func (g *Grouper) sameTextBlock(a, b common.EvidenceItem) bool {
	if a.Box == nil || b.Box == nil || a.Page != b.Page {
		return false
	}
	t := g.params.BoxTolerance
	return math.Abs(a.Box.X1-b.Box.X1) <= t &&
		math.Abs(a.Box.Y1-b.Box.Y1) <= t &&
		math.Abs(a.Box.X2-b.Box.X2) <= t &&
		math.Abs(a.Box.Y2-b.Box.Y2) <= t
}

func (g *Grouper) sameVisualBlock(a, b common.EvidenceItem) bool {
	if a.Box == nil || b.Box == nil || a.Page != b.Page {
		return false
	}
	yGap := b.Box.Y1 - a.Box.Y2
	if yGap < -g.params.BoxTolerance || yGap > g.params.YAdjacentThreshold {
		return false
	}
	overlap := math.Min(a.Box.X2, b.Box.X2) - math.Max(a.Box.X1, b.Box.X1)
	return overlap >= g.params.XOverlapThreshold
}

func (g *Grouper) adjacentPage(a, b common.EvidenceItem) bool {
	if a.Box == nil || b.Box == nil || b.Page != a.Page+1 {
		return false
	}
	if a.Box.Y2 < g.params.PageBottomY || b.Box.Y1 > g.params.PageTopY {
		return false
	}
	return math.Abs(a.Box.X1-b.Box.X1) <= g.params.SameColumnXDiff
}

// sentenceContinuation reports whether b's text reads like a continuation
// of a's: a ends without terminal punctuation and either ends with a
// continuation character, ends with a conjunction or preposition, or b
// starts lowercase.
func sentenceContinuation(a, b string) (common.Confidence, bool) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", false
	}

	if strings.HasSuffix(a, ".") || strings.HasSuffix(a, "!") || strings.HasSuffix(a, "?") ||
		strings.HasSuffix(a, "。") || strings.HasSuffix(a, "！") || strings.HasSuffix(a, "？") {
		return "", false
	}

	for _, c := range continuationChars {
		if strings.HasSuffix(a, c) {
			return common.ConfidenceHigh, true
		}
	}

	words := strings.Fields(strings.ToLower(a))
	if len(words) > 0 && continuationWords[words[len(words)-1]] {
		return common.ConfidenceHigh, true
	}

	first := []rune(b)[0]
	if unicode.IsLower(first) {
		return common.ConfidenceMedium, true
	}

	return "", false
}

// isTablePair reports whether a looks like a field label (ends with a
// colon, or short and digit-free) and b looks like its value (numeric or
// short).
func isTablePair(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" || len([]rune(a)) > 50 {
		return false
	}

	labelLike := strings.HasSuffix(a, ":") || strings.HasSuffix(a, "：") ||
		(!strings.ContainsFunc(a, unicode.IsDigit) && len([]rune(a)) < 30)
	if !labelLike {
		return false
	}

	return numericValuePattern.MatchString(b) || len([]rune(b)) <= 50
}

func confidenceRank(c common.Confidence) int {
	switch c {
	case common.ConfidenceVeryHigh:
		return 4
	case common.ConfidenceHigh:
		return 3
	case common.ConfidenceMedium:
		return 2
	case common.ConfidenceLow:
		return 1
	}
	return 0
}

func boxY1(item common.EvidenceItem) float64 {
	if item.Box == nil {
		return 0
	}
	return item.Box.Y1
}

func newSingle(item common.EvidenceItem) common.SingleItem {
	id, err := gonanoid.New()
	if err != nil {
		id = "sgl-" + item.ID
	}
	return common.SingleItem{ID: id, Item: item}
}

func newGroupID() string {
	id, err := gonanoid.New()
	if err != nil {
		return "grp"
	}
	return id
}

// unionFind is an explicit, iterative disjoint-set over item indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]] // path halving
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
