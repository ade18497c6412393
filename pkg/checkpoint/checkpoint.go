// Package checkpoint persists per-batch progress of the graph-building
// loop so an interrupted job resumes from the last durable batch instead
// of restarting. Writes are atomic replace-on-success: a crash mid-write
// never corrupts a previously persisted state.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/caselens/backend/pkg/common"
	"github.com/caselens/backend/pkg/logger"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusCompleted  Status = "completed"
)

// State is the durable progress record for one job. It carries the full
// serialized graph and the original input snapshot so a resumed process
// does not need the caller to re-supply either.
type State struct {
	JobID            string                `json:"job_id"`
	Status           Status                `json:"status"`
	TotalBatches     int                   `json:"total_batches"`
	CompletedBatches []int                 `json:"completed_batches"`
	FailedBatches    []int                 `json:"failed_batches"`
	CurrentBatch     *int                  `json:"current_batch,omitempty"`
	SerializedGraph  json.RawMessage       `json:"serialized_graph,omitempty"`
	InputSnapshot    []common.EvidenceItem `json:"input_snapshot,omitempty"`
}

// IsCompleted reports whether every batch has been attempted and completed.
func (s *State) IsCompleted() bool {
	return len(s.CompletedBatches) >= s.TotalBatches
}

func (s *State) completedSet() map[int]bool {
	set := make(map[int]bool, len(s.CompletedBatches))
	for _, i := range s.CompletedBatches {
		set[i] = true
	}
	return set
}

// ResumePoint returns the first batch index not yet completed.
func (s *State) ResumePoint() int {
	completed := s.completedSet()
	for i := 0; i < s.TotalBatches; i++ {
		if !completed[i] {
			return i
		}
	}
	return s.TotalBatches
}

// Manager owns the checkpoint file of one job. It is not safe for
// concurrent use; a job has exactly one active manager.
type Manager struct {
	dir   string
	jobID string
	state *State
}

type NewManagerParams struct {
	// Dir is the directory holding checkpoint files, one per job.
	Dir string
	// JobID scopes the checkpoint file name.
	JobID string
}

func NewManager(params NewManagerParams) (*Manager, error) {
	if params.Dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if params.JobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if err := os.MkdirAll(params.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Manager{dir: params.Dir, jobID: params.JobID}, nil
}

func (m *Manager) path() string {
	return filepath.Join(m.dir, m.jobID+".checkpoint.json")
}

// Load reads the persisted state for this job. Returns (nil, nil) when no
// checkpoint exists.
func (m *Manager) Load() (*State, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}

	m.state = &state
	return &state, nil
}

// HasResumableState reports whether a prior run left work to resume: a
// checkpoint exists, is not completed, and has batches outstanding.
func (m *Manager) HasResumableState() (bool, error) {
	state, err := m.Load()
	if err != nil {
		return false, err
	}
	if state == nil || state.Status == StatusCompleted {
		return false, nil
	}
	return !state.IsCompleted(), nil
}

// InitNew writes a fresh processing state, discarding any prior checkpoint
// for this job.
func (m *Manager) InitNew(totalBatches int, items []common.EvidenceItem) (*State, error) {
	state := &State{
		JobID:            m.jobID,
		Status:           StatusProcessing,
		TotalBatches:     totalBatches,
		CompletedBatches: []int{},
		FailedBatches:    []int{},
		InputSnapshot:    items,
	}
	if err := m.persist(state); err != nil {
		return nil, err
	}
	m.state = state
	return state, nil
}

// MarkInProgress records that batch index is about to be attempted.
func (m *Manager) MarkInProgress(index int) error {
	if m.state == nil {
		return fmt.Errorf("checkpoint not initialized")
	}
	m.state.CurrentBatch = &index
	m.state.Status = StatusProcessing
	return m.persist(m.state)
}

// SaveBatch records a successful batch along with the graph snapshot
// taken after applying it.
func (m *Manager) SaveBatch(index int, serializedGraph json.RawMessage) error {
	if m.state == nil {
		return fmt.Errorf("checkpoint not initialized")
	}
	m.state.CompletedBatches = appendUnique(m.state.CompletedBatches, index)
	m.state.FailedBatches = removeIndex(m.state.FailedBatches, index)
	m.state.SerializedGraph = serializedGraph
	m.state.CurrentBatch = nil
	return m.persist(m.state)
}

// MarkFailed records an exhausted-retry failure for batch index. The job
// continues with later batches; the index stays resumable.
func (m *Manager) MarkFailed(index int) error {
	if m.state == nil {
		return fmt.Errorf("checkpoint not initialized")
	}
	m.state.FailedBatches = appendUnique(m.state.FailedBatches, index)
	m.state.CurrentBatch = nil
	m.state.Status = StatusFailed
	return m.persist(m.state)
}

// MarkCompleted deletes the checkpoint file; a completed job has nothing
// to resume.
func (m *Manager) MarkCompleted() error {
	if m.state != nil {
		m.state.Status = StatusCompleted
	}
	if err := os.Remove(m.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	logger.Debug("[Checkpoint] completed, checkpoint removed", "job", m.jobID)
	return nil
}

// persist writes state to a temp file and renames it over the previous
// checkpoint so readers never observe a partial write.
func (m *Manager) persist(state *State) error {
	sort.Ints(state.CompletedBatches)
	sort.Ints(state.FailedBatches)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, m.jobID+".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

func appendUnique(indices []int, index int) []int {
	for _, i := range indices {
		if i == index {
			return indices
		}
	}
	return append(indices, index)
}

func removeIndex(indices []int, index int) []int {
	out := indices[:0]
	for _, i := range indices {
		if i != index {
			out = append(out, i)
		}
	}
	return out
}
