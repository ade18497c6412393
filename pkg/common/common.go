package common

// BoundingBox is the approximate location of an evidence item on its page,
// in a normalized 0-1000 coordinate space with the origin at the top left.
// Coordinates come from an upstream OCR stage and are rough by nature.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// EvidenceItem is a short text fragment extracted from a scanned document,
// tagged with a category and a rough source location.
//
// Items are immutable values: consolidation never mutates an item in place,
// it produces new derived items instead.
type EvidenceItem struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Category      string       `json:"category"`
	DocumentID    string       `json:"document_id"`
	Page          int          `json:"page"`
	Box           *BoundingBox `json:"box,omitempty"`
	RelevanceNote string       `json:"relevance_note,omitempty"`

	// PageRange is set on merged items whose members span pages, e.g. "3-4".
	PageRange string `json:"page_range,omitempty"`
	// ConsolidatedCount records how many members were merged into this item.
	ConsolidatedCount int `json:"consolidated_count,omitempty"`
	// AbsorbedCount records how many near-duplicates this item absorbed
	// during deduplication.
	AbsorbedCount int `json:"absorbed_count,omitempty"`
}

// GroupingReason describes why two or more evidence items were grouped
// into one candidate group.
type GroupingReason string

const (
	ReasonSameTextBlock        GroupingReason = "same_text_block"
	ReasonSameVisualBlock      GroupingReason = "same_visual_block"
	ReasonAdjacentPage         GroupingReason = "adjacent_page"
	ReasonSentenceContinuation GroupingReason = "sentence_continuation"
	ReasonTablePair            GroupingReason = "table_pair"
	ReasonProximity            GroupingReason = "proximity"
)

// Confidence is the heuristic confidence attached to a candidate group.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// CandidateGroup is a set of two or more evidence items suspected to
// represent one underlying fact. All members share a category and a
// source document.
type CandidateGroup struct {
	ID         string         `json:"id"`
	Members    []EvidenceItem `json:"members"`
	Reason     GroupingReason `json:"reason"`
	Confidence Confidence     `json:"confidence"`
}

// SingleItem wraps exactly one evidence item not assigned to any group.
type SingleItem struct {
	ID   string       `json:"id"`
	Item EvidenceItem `json:"item"`
}

// DecisionType is the oracle's verdict for one submitted group or single.
// Merge and keep apply to groups, approve and reject to singles, adjust
// to either.
type DecisionType string

const (
	DecisionMerge   DecisionType = "merge"
	DecisionAdjust  DecisionType = "adjust"
	DecisionKeep    DecisionType = "keep"
	DecisionApprove DecisionType = "approve"
	DecisionReject  DecisionType = "reject"
)

// DecisionResult carries the oracle-produced replacement text for merge
// and adjust decisions.
type DecisionResult struct {
	MergedText        string `json:"merged_text,omitempty"`
	MergedRelevance   string `json:"merged_relevance,omitempty"`
	AdjustedText      string `json:"adjusted_text,omitempty"`
	AdjustedRelevance string `json:"adjusted_relevance,omitempty"`
}

// Decision is one oracle verdict for a submitted group or single item.
type Decision struct {
	ItemID string          `json:"item_id"`
	Type   DecisionType    `json:"type"`
	Reason string          `json:"reason,omitempty"`
	Result *DecisionResult `json:"result,omitempty"`
}

// Entity is a node in the relationship graph: a person, organization,
// award, or any other concept named by the evidence. A canonical name is
// fixed when the entity is first seen; later surface forms accumulate as
// aliases.
type Entity struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	Type          string   `json:"type"`
	Aliases       []string `json:"aliases"`
	EvidenceRefs  []int    `json:"evidence_refs"`
}

// Relation is a directional edge between two entities. At most one
// relation exists per (from, to, type) triple; repeats merge their
// evidence references.
type Relation struct {
	ID           string `json:"id"`
	FromEntityID string `json:"from_entity_id"`
	ToEntityID   string `json:"to_entity_id"`
	Type         string `json:"type"`
	EvidenceRefs []int  `json:"evidence_refs"`
}

// RelationshipGraph owns all entities and relations for one job.
// It is mutated only by the graph builder and is serializable for
// checkpoint snapshots.
type RelationshipGraph struct {
	Entities  []*Entity   `json:"entities"`
	Relations []*Relation `json:"relations"`
}

// ConsolidationStats summarizes what deduplication and consolidation did
// to the evidence list.
type ConsolidationStats struct {
	Original      int     `json:"original"`
	AfterDedup    int     `json:"after_dedup"`
	Removed       int     `json:"removed"`
	Final         int     `json:"final"`
	ReductionRate float64 `json:"reduction_rate"`
}
