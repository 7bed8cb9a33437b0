package runner

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

// Status is the lifecycle state of a test run. A run is created
// pending, moves to running when dispatched, and ends in exactly one
// of the four terminal states.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError, StatusSkipped:
		return true
	}
	return false
}

// TestRun aggregates every evaluation produced for one execution of
// one test against one dataset row. Output holds the normalized shape
// the evaluators saw, kept for display and audit.
type TestRun struct {
	ID           string
	TestID       string
	RowID        string
	Status       Status
	PassedCount  int
	FailedCount  int
	TotalCount   int
	ErrorMessage string
	Output       any
	LatencyMs    int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Evaluations  []evaluator.Evaluation
}

// NewTestRun creates a pending run with a fresh ID.
func NewTestRun(testID, rowID string) *TestRun {
	return &TestRun{
		ID:     newRunID(time.Now()),
		TestID: testID,
		RowID:  rowID,
		Status: StatusPending,
	}
}

// RunInput is one unit of evaluation work: a test definition and the
// raw provider payload to judge, already fetched.
type RunInput struct {
	Test  *testdef.Test
	Raw   response.Raw
	RowID string
}

// BatchResult aggregates the runs of one test over one dataset.
type BatchResult struct {
	TestID     string
	TestName   string
	Dataset    string
	Runs       []*TestRun
	Total      int
	Passed     int
	Failed     int
	Errored    int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the batch had no failed and no errored
// runs. Skipped runs do not count against success.
func (b *BatchResult) Succeeded() bool {
	return b != nil && b.Failed == 0 && b.Errored == 0
}

func (b *BatchResult) tally(run *TestRun) {
	b.Runs = append(b.Runs, run)
	b.Total++
	switch run.Status {
	case StatusPassed:
		b.Passed++
	case StatusFailed:
		b.Failed++
	case StatusSkipped:
		b.Skipped++
	default:
		b.Errored++
	}
}

// newRunID returns an identifier that sorts by creation time, e.g.
// run_20260825T101530Z_9f3c0a1d22b4e6f8.
func newRunID(now time.Time) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("run_%s_%x", now.UTC().Format("20060102T150405Z"), buf)
}
