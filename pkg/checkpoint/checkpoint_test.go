package checkpoint

import (
	"encoding/json"
	"testing"

	"github.com/caselens/backend/pkg/common"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(NewManagerParams{Dir: t.TempDir(), JobID: "job-1"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestLoadWithoutCheckpoint(t *testing.T) {
	m := newTestManager(t)
	state, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestInitNewAndLoad(t *testing.T) {
	m := newTestManager(t)
	items := []common.EvidenceItem{
		{ID: "a", Text: "first", Category: "education", Page: 1},
		{ID: "b", Text: "second", Category: "education", Page: 2},
	}
	if _, err := m.InitNew(5, items); err != nil {
		t.Fatalf("InitNew: %v", err)
	}

	fresh, err := NewManager(NewManagerParams{Dir: m.dir, JobID: "job-1"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	state, err := fresh.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state == nil {
		t.Fatal("expected persisted state")
	}
	if state.Status != StatusProcessing {
		t.Errorf("status = %q, want %q", state.Status, StatusProcessing)
	}
	if state.TotalBatches != 5 {
		t.Errorf("totalBatches = %d, want 5", state.TotalBatches)
	}
	if len(state.InputSnapshot) != 2 {
		t.Errorf("input snapshot length = %d, want 2", len(state.InputSnapshot))
	}
	if state.ResumePoint() != 0 {
		t.Errorf("resume point = %d, want 0", state.ResumePoint())
	}
}

func TestResumePointSkipsCompleted(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InitNew(5, nil); err != nil {
		t.Fatalf("InitNew: %v", err)
	}

	graph := json.RawMessage(`{"entities":[],"relations":[]}`)
	for _, i := range []int{0, 1, 2} {
		if err := m.MarkInProgress(i); err != nil {
			t.Fatalf("MarkInProgress(%d): %v", i, err)
		}
		if err := m.SaveBatch(i, graph); err != nil {
			t.Fatalf("SaveBatch(%d): %v", i, err)
		}
	}

	state, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := state.ResumePoint(); got != 3 {
		t.Errorf("resume point = %d, want 3", got)
	}
	if state.CurrentBatch != nil {
		t.Errorf("current batch = %v, want nil after SaveBatch", *state.CurrentBatch)
	}
	if string(state.SerializedGraph) != string(graph) {
		t.Errorf("serialized graph = %s, want %s", state.SerializedGraph, graph)
	}
}

func TestMarkFailedKeepsBatchResumable(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InitNew(3, nil); err != nil {
		t.Fatalf("InitNew: %v", err)
	}
	if err := m.SaveBatch(0, nil); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := m.MarkFailed(1); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	state, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Status != StatusFailed {
		t.Errorf("status = %q, want %q", state.Status, StatusFailed)
	}
	if len(state.FailedBatches) != 1 || state.FailedBatches[0] != 1 {
		t.Errorf("failedBatches = %v, want [1]", state.FailedBatches)
	}
	// failed batch is not completed, so it is the resume point
	if got := state.ResumePoint(); got != 1 {
		t.Errorf("resume point = %d, want 1", got)
	}
}

func TestSaveBatchClearsFailure(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InitNew(2, nil); err != nil {
		t.Fatalf("InitNew: %v", err)
	}
	if err := m.MarkFailed(0); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := m.SaveBatch(0, nil); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	state, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.FailedBatches) != 0 {
		t.Errorf("failedBatches = %v, want empty after successful retry", state.FailedBatches)
	}
	if len(state.CompletedBatches) != 1 || state.CompletedBatches[0] != 0 {
		t.Errorf("completedBatches = %v, want [0]", state.CompletedBatches)
	}
}

func TestMarkCompletedDeletesCheckpoint(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InitNew(1, nil); err != nil {
		t.Fatalf("InitNew: %v", err)
	}
	if err := m.SaveBatch(0, nil); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := m.MarkCompleted(); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	state, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Fatalf("expected checkpoint file gone, got %+v", state)
	}

	resumable, err := m.HasResumableState()
	if err != nil {
		t.Fatalf("HasResumableState: %v", err)
	}
	if resumable {
		t.Error("completed job reported as resumable")
	}
}

func TestHasResumableState(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InitNew(4, nil); err != nil {
		t.Fatalf("InitNew: %v", err)
	}
	if err := m.SaveBatch(0, nil); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	resumable, err := m.HasResumableState()
	if err != nil {
		t.Fatalf("HasResumableState: %v", err)
	}
	if !resumable {
		t.Error("partially completed job not reported as resumable")
	}
}

func TestSaveBatchIdempotent(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InitNew(2, nil); err != nil {
		t.Fatalf("InitNew: %v", err)
	}
	if err := m.SaveBatch(0, nil); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := m.SaveBatch(0, nil); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	state, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.CompletedBatches) != 1 {
		t.Errorf("completedBatches = %v, want single entry", state.CompletedBatches)
	}
}
