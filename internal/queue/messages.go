package queue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// ConsolidateJobMsg starts a consolidation run. ItemsKey points at the
// raw evidence JSON in object storage.
type ConsolidateJobMsg struct {
	JobID    string `json:"job_id" validate:"required"`
	ItemsKey string `json:"items_key" validate:"required"`
	// ChainExtraction enqueues a graph-extraction job over the
	// consolidated output when the run finishes.
	ChainExtraction bool `json:"chain_extraction"`
}

// ExtractJobMsg starts a graph-extraction run. ItemsKey points at the
// evidence JSON to extract from, normally the consolidated output of a
// prior run.
type ExtractJobMsg struct {
	JobID    string `json:"job_id" validate:"required"`
	ItemsKey string `json:"items_key" validate:"required"`
}

func decodeMsg(body string, out any) error {
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("failed to decode queue message: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid queue message: %w", err)
	}
	return nil
}
