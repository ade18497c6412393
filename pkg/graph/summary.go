package graph

import (
	"sort"

	"github.com/caselens/backend/pkg/common"
)

// CategorySupport tallies, per evidence category, how well-supported the
// extracted entities are. An entity counts as strongly supported in a
// category when at least three of its evidence references point to items
// of that category, moderately when at least one does.
type CategorySupport struct {
	Category string `json:"category"`
	Strong   int    `json:"strong"`
	Moderate int    `json:"moderate"`
	Entities int    `json:"entities"`
}

const strongSupportRefs = 3

// SummarizeSupport computes per-category support tallies for a graph,
// resolving evidence references through the item list they index into.
// Categories appear in first-seen item order.
func SummarizeSupport(graph *common.RelationshipGraph, items []common.EvidenceItem) []CategorySupport {
	if graph == nil {
		return []CategorySupport{}
	}

	order := []string{}
	byCategory := map[string]*CategorySupport{}
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		if _, ok := byCategory[item.Category]; !ok {
			byCategory[item.Category] = &CategorySupport{Category: item.Category}
			order = append(order, item.Category)
		}
	}

	for _, e := range graph.Entities {
		refsPerCategory := map[string]int{}
		for _, ref := range e.EvidenceRefs {
			if ref < 0 || ref >= len(items) {
				continue
			}
			cat := items[ref].Category
			if cat == "" {
				continue
			}
			refsPerCategory[cat]++
		}
		for cat, refs := range refsPerCategory {
			s, ok := byCategory[cat]
			if !ok {
				continue
			}
			s.Entities++
			if refs >= strongSupportRefs {
				s.Strong++
			} else {
				s.Moderate++
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return byCategory[order[i]].Entities > byCategory[order[j]].Entities
	})

	out := make([]CategorySupport, 0, len(order))
	for _, cat := range order {
		out = append(out, *byCategory[cat])
	}
	return out
}
