package consolidate

import (
	"sort"

	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/textmatch"
)

// DedupeParams holds the thresholds for near-duplicate removal.
type DedupeParams struct {
	// ContainmentThreshold is the word-overlap fraction above which a
	// shorter text counts as contained in a longer one.
	ContainmentThreshold float64
	// DuplicateThreshold is the Jaccard similarity above which two texts
	// count as duplicates.
	DuplicateThreshold float64
}

const (
	defaultContainmentThreshold = 0.9
	defaultDuplicateThreshold   = 0.85
)

func (p *DedupeParams) applyDefaults() {
	if p.ContainmentThreshold <= 0 {
		p.ContainmentThreshold = defaultContainmentThreshold
	}
	if p.DuplicateThreshold <= 0 {
		p.DuplicateThreshold = defaultDuplicateThreshold
	}
}

// DedupeStats reports what deduplication removed.
type DedupeStats struct {
	Original int `json:"original"`
	Removed  int `json:"removed"`
	Final    int `json:"final"`
}

// Deduplicate removes evidence items that are wholly subsumed by, or
// near-duplicates of, another item in the same category. Longer items are
// processed first and absorb shorter ones; an item absorbed once is never
// reconsidered as a keeper (first-match-wins, not exhaustive pairwise
// re-evaluation). Survivors keep their input order and carry an
// AbsorbedCount annotation.
//
// This step never calls the oracle and never fails; it is a pure,
// idempotent filter.
func Deduplicate(items []common.EvidenceItem, params DedupeParams) ([]common.EvidenceItem, DedupeStats) {
	params.applyDefaults()

	stats := DedupeStats{Original: len(items)}
	if len(items) == 0 {
		return []common.EvidenceItem{}, stats
	}

	// index items per category, longest text first
	byCategory := make(map[string][]int)
	var categories []string
	for i, item := range items {
		if _, seen := byCategory[item.Category]; !seen {
			categories = append(categories, item.Category)
		}
		byCategory[item.Category] = append(byCategory[item.Category], i)
	}

	removed := make(map[int]bool, len(items))
	absorbed := make(map[int]int, len(items))

	for _, cat := range categories {
		order := append([]int(nil), byCategory[cat]...)
		sort.SliceStable(order, func(a, b int) bool {
			return len(items[order[a]].Text) > len(items[order[b]].Text)
		})

		for pi, i := range order {
			if removed[i] {
				continue
			}
			for _, j := range order[pi+1:] {
				if removed[j] {
					continue
				}
				if textmatch.Contains(items[i].Text, items[j].Text, params.ContainmentThreshold) ||
					textmatch.Similarity(items[i].Text, items[j].Text) >= params.DuplicateThreshold {
					removed[j] = true
					absorbed[i]++
				}
			}
		}
	}

	survivors := make([]common.EvidenceItem, 0, len(items))
	for i, item := range items {
		if removed[i] {
			continue
		}
		if n := absorbed[i]; n > 0 {
			item.AbsorbedCount = n
		}
		survivors = append(survivors, item)
	}

	stats.Removed = len(items) - len(survivors)
	stats.Final = len(survivors)
	return survivors, stats
}
