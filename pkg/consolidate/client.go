// Package consolidate reduces a raw evidence list to a compact, reviewed
// one: near-duplicates are removed mechanically, heuristically related
// items are grouped, and the oracle decides per group whether to merge,
// adjust, or keep. The pipeline degrades conservatively: when the oracle
// is unreachable, every item survives unchanged.
package consolidate

import (
	"fmt"
	"time"

	"github.com/caselens/backend/pkg/ai"
	"github.com/caselens/backend/pkg/archive"
	"github.com/caselens/backend/pkg/batch"
)

// Client drives the consolidation pipeline for one job at a time.
//
// A Client should be created using NewClient.
type Client struct {
	oracle     ai.OracleClient
	grouper    *Grouper
	scheduler  *batch.Scheduler
	archive    archive.Recorder
	dedupe     DedupeParams
	apply      ApplyParams
	maxRetries int
	batchDelay time.Duration
}

// NewClientParams defines the configuration parameters for creating a
// new Client. Zero-valued thresholds fall back to defaults; Archive
// defaults to a no-op sink.
type NewClientParams struct {
	Oracle     ai.OracleClient
	Grouper    *Grouper
	Scheduler  *batch.Scheduler
	Archive    archive.Recorder
	Dedupe     DedupeParams
	Apply      ApplyParams
	MaxRetries int
	// BatchDelay is the pause between successful oracle batches, used to
	// respect rate limits. Not correctness-critical.
	BatchDelay time.Duration
}

// NewClient creates and returns a new Client configured with the
// provided parameters.
func NewClient(params NewClientParams) (*Client, error) {
	if params.Oracle == nil {
		return nil, fmt.Errorf("oracle client is required")
	}

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	grouper := params.Grouper
	if grouper == nil {
		grouper = NewGrouper(GrouperParams{})
	}
	scheduler := params.Scheduler
	if scheduler == nil {
		scheduler = batch.NewScheduler(batch.NewSchedulerParams{})
	}
	recorder := params.Archive
	if recorder == nil {
		recorder = archive.Noop{}
	}
	batchDelay := params.BatchDelay
	if batchDelay < 0 {
		batchDelay = 0
	}

	c := &Client{
		oracle:     params.Oracle,
		grouper:    grouper,
		scheduler:  scheduler,
		archive:    recorder,
		dedupe:     params.Dedupe,
		apply:      params.Apply,
		maxRetries: maxRetries,
		batchDelay: batchDelay,
	}

	return c, nil
}
