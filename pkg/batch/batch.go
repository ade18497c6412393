// Package batch packs candidate groups and single items into ordered
// batches bounded by an estimated token cost and an item count. The same
// scheduler serves both the consolidation and the relationship-extraction
// paths, parameterized with different ceilings by the caller.
package batch

import (
	"github.com/caselens/backend/pkg/common"
)

// Member is one schedulable element: either a candidate group or a single
// item, never both.
type Member struct {
	Group  *common.CandidateGroup `json:"group,omitempty"`
	Single *common.SingleItem     `json:"single,omitempty"`
}

// ID returns the member's group or single id.
func (m Member) ID() string {
	if m.Group != nil {
		return m.Group.ID
	}
	if m.Single != nil {
		return m.Single.ID
	}
	return ""
}

// Items returns the evidence items carried by the member.
func (m Member) Items() []common.EvidenceItem {
	if m.Group != nil {
		return m.Group.Members
	}
	if m.Single != nil {
		return []common.EvidenceItem{m.Single.Item}
	}
	return nil
}

// Unit is one ordered batch of members whose total estimated cost stays
// under the scheduler's ceilings.
type Unit struct {
	Index   int      `json:"index"`
	Members []Member `json:"members"`
	Cost    int      `json:"cost"`
}

// Scheduler packs members into units with a single greedy left-to-right
// pass, preserving input order. Packing is deterministic for a given
// input order.
type Scheduler struct {
	maxBatchCost  int
	maxBatchItems int
	itemOverhead  int
	estimator     CostEstimator
}

// NewSchedulerParams configures a Scheduler. Zero values fall back to
// defaults suited to the consolidation path.
type NewSchedulerParams struct {
	// MaxBatchCost is the estimated token budget per batch.
	MaxBatchCost int
	// MaxBatchItems caps the number of members per batch.
	MaxBatchItems int
	// ItemOverhead is a fixed per-item cost covering serialization and
	// prompt scaffolding.
	ItemOverhead int
	// Estimator converts text into cost units. Defaults to the character
	// heuristic.
	Estimator CostEstimator
}

const (
	defaultMaxBatchCost  = 8000
	defaultMaxBatchItems = 20
	defaultItemOverhead  = 200
)

// NewScheduler creates a Scheduler with the given parameters.
func NewScheduler(params NewSchedulerParams) *Scheduler {
	if params.MaxBatchCost <= 0 {
		params.MaxBatchCost = defaultMaxBatchCost
	}
	if params.MaxBatchItems <= 0 {
		params.MaxBatchItems = defaultMaxBatchItems
	}
	if params.ItemOverhead <= 0 {
		params.ItemOverhead = defaultItemOverhead
	}
	if params.Estimator == nil {
		params.Estimator = HeuristicEstimator{}
	}
	return &Scheduler{
		maxBatchCost:  params.MaxBatchCost,
		maxBatchItems: params.MaxBatchItems,
		itemOverhead:  params.ItemOverhead,
		estimator:     params.Estimator,
	}
}

// MemberCost returns the estimated cost of one member: the sum of its
// items' text costs plus the fixed per-member overhead.
func (s *Scheduler) MemberCost(m Member) int {
	cost := s.itemOverhead
	for _, item := range m.Items() {
		cost += s.estimator.Estimate(item.Text)
	}
	return cost
}

// Pack splits members into ordered units. Every member lands in exactly
// one unit; relative order is preserved. A member whose own cost exceeds
// the batch budget still gets a unit of its own.
func (s *Scheduler) Pack(members []Member) []Unit {
	units := []Unit{}
	if len(members) == 0 {
		return units
	}

	current := Unit{Index: 0}
	for _, m := range members {
		cost := s.MemberCost(m)

		fitsCost := current.Cost+cost <= s.maxBatchCost
		fitsCount := len(current.Members) < s.maxBatchItems
		if len(current.Members) > 0 && (!fitsCost || !fitsCount) {
			units = append(units, current)
			current = Unit{Index: len(units)}
		}

		current.Members = append(current.Members, m)
		current.Cost += cost
	}
	if len(current.Members) > 0 {
		units = append(units, current)
	}

	return units
}
