// Package pgx implements store.ResultStorage on PostgreSQL.
package pgx

import (
	"context"
	"fmt"
	"sync"

	"github.com/caselens/backend/internal/util"
	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/logger"
	"github.com/caselens/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// ResultDBStorage implements store.ResultStorage using PostgreSQL. Writes
// for one job are serialized with a mutex; concurrent jobs should use
// separate instances or rely on the queue's one-job-at-a-time dispatch.
type ResultDBStorage struct {
	conn   pgxIConn
	dbLock sync.Mutex
}

// NewResultDBStorageWithConnection creates a ResultDBStorage using an
// existing database connection or pool.
func NewResultDBStorageWithConnection(conn pgxIConn) (*ResultDBStorage, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &ResultDBStorage{conn: conn}, nil
}

const insertChunkSize = 1000

// SaveEvidence replaces the stored evidence list of a job with items.
func (s *ResultDBStorage) SaveEvidence(ctx context.Context, jobID string, items []common.EvidenceItem) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	logger.Debug("[Store][SaveEvidence] Writing evidence items", "job", jobID, "items", len(items))

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM evidence_items WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to clear previous evidence: %w", err)
	}

	err = store.ChunkRange(len(items), insertChunkSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for pos, item := range items[start:end] {
			batch.Queue(`
				INSERT INTO evidence_items
					(job_id, public_id, position, text, category, document_id,
					 page, page_range, relevance_note, consolidated_count, absorbed_count)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				jobID,
				item.ID,
				start+pos,
				util.SanitizePostgresText(item.Text),
				item.Category,
				item.DocumentID,
				item.Page,
				item.PageRange,
				util.SanitizePostgresText(item.RelevanceNote),
				item.ConsolidatedCount,
				item.AbsorbedCount,
			)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert evidence item: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SaveGraph replaces the stored graph of a job.
func (s *ResultDBStorage) SaveGraph(ctx context.Context, jobID string, graph *common.RelationshipGraph) error {
	if graph == nil {
		return fmt.Errorf("graph is nil")
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	logger.Debug("[Store][SaveGraph] Writing graph",
		"job", jobID, "entities", len(graph.Entities), "relations", len(graph.Relations),
	)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM graph_relations WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to clear previous relations: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_entities WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to clear previous entities: %w", err)
	}

	for _, e := range graph.Entities {
		aliases := store.DedupeStrings(e.Aliases)
		if aliases == nil {
			aliases = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO graph_entities
				(job_id, public_id, canonical_name, entity_type, aliases, evidence_refs)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			jobID,
			e.ID,
			util.SanitizePostgresText(e.CanonicalName),
			e.Type,
			aliases,
			e.EvidenceRefs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", e.ID, err)
		}
	}

	for _, r := range graph.Relations {
		_, err := tx.Exec(ctx, `
			INSERT INTO graph_relations
				(job_id, public_id, from_entity_id, to_entity_id, relation_type, evidence_refs)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			jobID,
			r.ID,
			r.FromEntityID,
			r.ToEntityID,
			r.Type,
			r.EvidenceRefs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert relation %s: %w", r.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteJob removes all stored results of a job.
func (s *ResultDBStorage) DeleteJob(ctx context.Context, jobID string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"graph_relations", "graph_entities", "evidence_items"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE job_id = $1`, table), jobID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}
