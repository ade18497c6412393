package store

import (
	"context"

	"github.com/caselens/backend/pkg/common"
)

// ResultStorage persists the outputs of a finished pipeline run: the
// consolidated evidence list and the relationship graph. Reading them
// back is the job of the surrounding application; the pipeline only
// writes.
type ResultStorage interface {
	SaveEvidence(ctx context.Context, jobID string, items []common.EvidenceItem) error
	SaveGraph(ctx context.Context, jobID string, graph *common.RelationshipGraph) error
	DeleteJob(ctx context.Context, jobID string) error
}
