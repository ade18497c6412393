// Package graph builds an incremental entity/relationship graph from
// evidence quotes. Names are resolved with fuzzy merge-on-insert, so
// "Dr. John Smith" and "John Smith" land on one entity with two aliases.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/textmatch"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Builder owns the graph of one job. It is the single place where graph
// invariants are enforced: one entity per normalized name, no duplicate
// (from, to, type) relations. Not safe for concurrent use.
type Builder struct {
	entities  []*common.Entity
	relations []*common.Relation

	// normalized name (canonical or alias) -> entity
	byName map[string]*common.Entity
}

func NewBuilder() *Builder {
	return &Builder{
		entities:  []*common.Entity{},
		relations: []*common.Relation{},
		byName:    map[string]*common.Entity{},
	}
}

// FindEntity resolves a surface name to an existing entity. Exact match
// on the normalized name wins; otherwise the first entity whose
// normalized name contains, or is contained by, the candidate matches.
func (b *Builder) FindEntity(name string) *common.Entity {
	norm := textmatch.Normalize(name)
	if norm == "" {
		return nil
	}
	if e, ok := b.byName[norm]; ok {
		return e
	}
	for _, e := range b.entities {
		for _, known := range b.entityNames(e) {
			if substringMatch(norm, known) {
				return e
			}
		}
	}
	return nil
}

// AddEntity records a surface name. An existing entity gains the name as
// an alias and the evidence reference; an unknown name creates a new
// entity.
func (b *Builder) AddEntity(name, entityType string, evidenceRef int) *common.Entity {
	norm := textmatch.Normalize(name)
	if norm == "" {
		return nil
	}

	if e := b.FindEntity(name); e != nil {
		if !containsString(e.Aliases, name) && name != e.CanonicalName {
			e.Aliases = append(e.Aliases, name)
		}
		if !containsInt(e.EvidenceRefs, evidenceRef) {
			e.EvidenceRefs = append(e.EvidenceRefs, evidenceRef)
		}
		b.byName[norm] = e
		return e
	}

	e := &common.Entity{
		ID:            newEntityID(),
		CanonicalName: name,
		Type:          entityType,
		Aliases:       []string{},
		EvidenceRefs:  []int{evidenceRef},
	}
	b.entities = append(b.entities, e)
	b.byName[norm] = e
	return e
}

// AddRelation links two surface names. A no-op when either side does not
// resolve to a known entity; repeats of the same (from, to, type) triple
// merge their evidence references.
func (b *Builder) AddRelation(fromName, toName, relationType string, evidenceRef int) {
	from := b.FindEntity(fromName)
	to := b.FindEntity(toName)
	if from == nil || to == nil {
		return
	}

	for _, r := range b.relations {
		if r.FromEntityID == from.ID && r.ToEntityID == to.ID && r.Type == relationType {
			if !containsInt(r.EvidenceRefs, evidenceRef) {
				r.EvidenceRefs = append(r.EvidenceRefs, evidenceRef)
			}
			return
		}
	}

	b.relations = append(b.relations, &common.Relation{
		ID:           newEntityID(),
		FromEntityID: from.ID,
		ToEntityID:   to.ID,
		Type:         relationType,
		EvidenceRefs: []int{evidenceRef},
	})
}

// Graph returns the current graph. The returned value shares state with
// the builder; callers must not mutate it.
func (b *Builder) Graph() *common.RelationshipGraph {
	return &common.RelationshipGraph{
		Entities:  b.entities,
		Relations: b.relations,
	}
}

// Serialize snapshots the graph for checkpointing.
func (b *Builder) Serialize() (json.RawMessage, error) {
	data, err := json.Marshal(b.Graph())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph: %w", err)
	}
	return data, nil
}

// Restore replaces the builder state with a checkpoint snapshot.
func (b *Builder) Restore(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}

	var g common.RelationshipGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("failed to restore graph: %w", err)
	}

	b.entities = g.Entities
	if b.entities == nil {
		b.entities = []*common.Entity{}
	}
	b.relations = g.Relations
	if b.relations == nil {
		b.relations = []*common.Relation{}
	}
	b.byName = make(map[string]*common.Entity, len(b.entities))
	for _, e := range b.entities {
		for _, name := range b.entityNames(e) {
			b.byName[name] = e
		}
	}
	return nil
}

func (b *Builder) entityNames(e *common.Entity) []string {
	names := make([]string, 0, len(e.Aliases)+1)
	if n := textmatch.Normalize(e.CanonicalName); n != "" {
		names = append(names, n)
	}
	for _, alias := range e.Aliases {
		if n := textmatch.Normalize(alias); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// substringMatch reports whether one normalized name contains the other.
// Both sides are checked so "john smith" matches "dr john smith" no
// matter which was seen first.
func substringMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

func newEntityID() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("ent-%d", time.Now().UnixNano())
	}
	return id
}
