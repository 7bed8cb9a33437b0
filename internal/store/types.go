package store

import (
	"context"
	"time"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

// RunWriter is the persistence contract the harness drives. It is
// declared in the runner package next to its consumer.
type RunWriter = runner.RunWriter

// RunReader defines read access to tests, runs, and evaluations.
type RunReader interface {
	GetTest(ctx context.Context, id string) (*TestRecord, error)
	ListTests(ctx context.Context) ([]*TestRecord, error)
	GetTestRun(ctx context.Context, id string) (*runner.TestRun, error)
	ListTestRuns(ctx context.Context, filter RunFilter) ([]*runner.TestRun, error)
	GetEvaluations(ctx context.Context, runID string) ([]evaluator.Evaluation, error)
}

// Analytics defines query helpers over run history.
type Analytics interface {
	TestRunHistory(ctx context.Context, testID string, limit int) ([]*runner.TestRun, error)
	CompareVersions(ctx context.Context, testName, v1, v2 string) (*VersionComparison, error)
}

// Store defines persistence for tests, runs, and evaluations.
type Store interface {
	RunWriter
	RunReader
	Analytics
	Close() error
}

// TestRecord is the stored view of a test definition, flattened for
// querying by name and prompt version.
type TestRecord struct {
	ID            string
	Name          string
	Description   string
	Mode          string
	Provider      string
	API           string
	Model         string
	PromptName    string
	PromptVersion string
	AssistantID   string
	Dataset       string
	Evaluators    []testdef.EvaluatorConfig
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RunFilter filters run listings.
type RunFilter struct {
	TestID string
	Status string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// VersionComparison pits the latest run per dataset row of one prompt
// version against another for the same test name.
type VersionComparison struct {
	TestName     string
	V1           string
	V2           string
	V1Runs       []*runner.TestRun
	V2Runs       []*runner.TestRun
	Regressions  []string // row IDs that passed on v1 but not on v2
	Improvements []string // row IDs that passed on v2 but not on v1
}
