package graph

import (
	"fmt"
	"time"

	"github.com/caselens/backend/pkg/ai"
	"github.com/caselens/backend/pkg/archive"
	"github.com/caselens/backend/pkg/batch"
	"github.com/caselens/backend/pkg/checkpoint"
)

// GraphClient drives the checkpointed extraction loop: it batches evidence
// items, asks the oracle for entities and relations per batch, and applies
// the results to a Builder in strict batch order.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	oracle      ai.OracleClient
	scheduler   *batch.Scheduler
	checkpoints *checkpoint.Manager
	archive     archive.Recorder
	maxRetries  int
	batchDelay  time.Duration
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Scheduler defaults to one tuned for the extraction path. Checkpoints is
// required; the client refuses to run without durable progress tracking.
// BatchDelay is the pause between successful batches, used to respect
// oracle rate limits.
type NewGraphClientParams struct {
	Oracle      ai.OracleClient
	Scheduler   *batch.Scheduler
	Checkpoints *checkpoint.Manager
	Archive     archive.Recorder
	MaxRetries  int
	BatchDelay  time.Duration
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Oracle == nil {
		return nil, fmt.Errorf("oracle client is required")
	}
	if params.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint manager is required")
	}

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	scheduler := params.Scheduler
	if scheduler == nil {
		scheduler = batch.NewScheduler(batch.NewSchedulerParams{
			MaxBatchCost:  4000,
			MaxBatchItems: 10,
		})
	}
	recorder := params.Archive
	if recorder == nil {
		recorder = archive.Noop{}
	}
	batchDelay := params.BatchDelay
	if batchDelay < 0 {
		batchDelay = 0
	}

	g := &GraphClient{
		oracle:      params.Oracle,
		scheduler:   scheduler,
		checkpoints: params.Checkpoints,
		archive:     recorder,
		maxRetries:  maxRetries,
		batchDelay:  batchDelay,
	}

	return g, nil
}
