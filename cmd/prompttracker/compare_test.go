package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/store"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

func TestBuildCompareReport(t *testing.T) {
	t.Parallel()

	cmp := &store.VersionComparison{
		TestName: "capital check",
		V1:       "v1",
		V2:       "v2",
		V1Runs: []*runner.TestRun{
			{RowID: "row-a", Status: runner.StatusPassed},
			{RowID: "row-b", Status: runner.StatusPassed},
		},
		V2Runs: []*runner.TestRun{
			{RowID: "row-b", Status: runner.StatusFailed},
			{RowID: "row-c", Status: runner.StatusPassed},
		},
		Regressions: []string{"row-b"},
	}

	report := buildCompareReport(cmp)
	if report.Test != "capital check" || report.V1 != "v1" || report.V2 != "v2" {
		t.Fatalf("unexpected header: %+v", report)
	}
	if report.Improvements == nil || len(report.Improvements) != 0 {
		t.Fatalf("expected empty improvements slice, got %v", report.Improvements)
	}

	want := []compareRow{
		{RowID: "row-a", V1: "PASSED", V2: "-"},
		{RowID: "row-b", V1: "PASSED", V2: "FAILED", Change: "regression"},
		{RowID: "row-c", V1: "-", V2: "PASSED"},
	}
	if len(report.Rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(report.Rows), len(want), report.Rows)
	}
	for i, row := range report.Rows {
		if row != want[i] {
			t.Fatalf("row %d: got %+v want %+v", i, row, want[i])
		}
	}
}

func seedCompareStore(t *testing.T, dbPath string) {
	t.Helper()

	stor, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer func() { _ = stor.Close() }()

	ctx := context.Background()
	started := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	versions := []struct {
		version string
		rows    map[string]runner.Status
	}{
		{"v1", map[string]runner.Status{"row-france": runner.StatusPassed, "row-japan": runner.StatusFailed}},
		{"v2", map[string]runner.Status{"row-france": runner.StatusPassed, "row-japan": runner.StatusPassed}},
	}
	for _, v := range versions {
		test := &testdef.Test{
			ID:   "capital-check@" + v.version,
			Name: "capital check",
			Mode: testdef.ModeSingleTurn,
			Testable: testdef.Testable{
				Kind:          testdef.KindPromptVersion,
				Provider:      "openai",
				PromptName:    "capital",
				PromptVersion: v.version,
			},
			Dataset:    "capitals",
			Evaluators: []testdef.EvaluatorConfig{{Key: "keyword"}},
		}
		if err := stor.SaveTest(ctx, test); err != nil {
			t.Fatalf("SaveTest %s: %v", v.version, err)
		}

		for rowID, status := range v.rows {
			run := &runner.TestRun{
				ID:         fmt.Sprintf("run_cmp_%s_%s", v.version, rowID),
				TestID:     test.ID,
				RowID:      rowID,
				Status:     status,
				TotalCount: 1,
				StartedAt:  started,
				FinishedAt: started.Add(time.Second),
			}
			if status == runner.StatusPassed {
				run.PassedCount = 1
			} else {
				run.FailedCount = 1
			}
			if err := stor.SaveTestRun(ctx, run); err != nil {
				t.Fatalf("SaveTestRun %s/%s: %v", v.version, rowID, err)
			}
		}
	}
}

func TestRunCompare(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "prompttracker.db")
	seedCompareStore(t, dbPath)

	st := &cliState{
		cfg:    &config.Config{Storage: config.StorageConfig{Type: "sqlite", Path: dbPath}},
		logger: zerolog.Nop(),
	}

	t.Run("improvement only", func(t *testing.T) {
		cmd, buf := newTestCmd(t)
		err := runCompare(cmd, st, &compareOptions{testName: "capital check", v1: "v1", v2: "v2"})
		if err != nil {
			t.Fatalf("runCompare: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "improvement") || !strings.Contains(out, "Improvements: 1") {
			t.Fatalf("expected improvement row, got %q", out)
		}
		if strings.Contains(out, "regression") {
			t.Fatalf("unexpected regression in %q", out)
		}
	})

	t.Run("regression fails", func(t *testing.T) {
		cmd, buf := newTestCmd(t)
		err := runCompare(cmd, st, &compareOptions{testName: "capital check", v1: "v2", v2: "v1"})
		if !errors.Is(err, errRegression) {
			t.Fatalf("expected errRegression, got %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "regression") || !strings.Contains(out, "Regressions: 1") {
			t.Fatalf("expected regression row, got %q", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		cmd, buf := newTestCmd(t)
		err := runCompare(cmd, st, &compareOptions{testName: "capital check", v1: "v1", v2: "v2", output: "json"})
		if err != nil {
			t.Fatalf("runCompare: %v", err)
		}
		var report compareReport
		if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
			t.Fatalf("unmarshal report: %v\n%s", err, buf.String())
		}
		if report.Test != "capital check" || len(report.Rows) != 2 {
			t.Fatalf("unexpected report: %+v", report)
		}
		if len(report.Improvements) != 1 || report.Improvements[0] != "row-japan" {
			t.Fatalf("unexpected improvements: %v", report.Improvements)
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		cmd, _ := newTestCmd(t)
		err := runCompare(cmd, st, &compareOptions{testName: "capital check", v1: "v1", v2: "v9"})
		if err == nil || !strings.Contains(err.Error(), "no runs") {
			t.Fatalf("expected no-runs error, got %v", err)
		}
	})

	t.Run("same versions", func(t *testing.T) {
		cmd, _ := newTestCmd(t)
		err := runCompare(cmd, st, &compareOptions{testName: "capital check", v1: "v1", v2: "v1"})
		if err == nil || !strings.Contains(err.Error(), "must differ") {
			t.Fatalf("expected differ error, got %v", err)
		}
	})

	t.Run("guards", func(t *testing.T) {
		cmd, _ := newTestCmd(t)
		if err := runCompare(cmd, nil, &compareOptions{}); err == nil {
			t.Fatalf("expected error for nil state")
		}
		if err := runCompare(cmd, st, nil); err == nil {
			t.Fatalf("expected error for nil options")
		}
		if err := runCompare(cmd, st, &compareOptions{v1: "v1", v2: "v2"}); err == nil || !strings.Contains(err.Error(), "missing --test") {
			t.Fatalf("expected missing test error, got %v", err)
		}
		err := runCompare(cmd, st, &compareOptions{testName: "x", v1: "v1", v2: "v2", output: "xml"})
		if err == nil || !strings.Contains(err.Error(), "invalid --output") {
			t.Fatalf("expected output error, got %v", err)
		}
	})
}

func TestNewCompareCmd_Wiring(t *testing.T) {
	cmd := newCompareCmd(&cliState{})

	for _, name := range []string{"test", "v1", "v2", "output"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("missing --%s flag", name)
		}
	}

	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "required flag") {
		t.Fatalf("expected required-flag error, got %v", err)
	}
}
