package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return formatTable, nil
	case "json", "jsonl":
		return formatJSON, nil
	default:
		return "", fmt.Errorf("invalid --output %q (expected table|json)", s)
	}
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func statusCell(s runner.Status) string {
	switch s {
	case runner.StatusPassed:
		return colorGreen + "PASS" + colorReset
	case runner.StatusFailed:
		return colorRed + "FAIL" + colorReset
	case runner.StatusError:
		return colorRed + "ERROR" + colorReset
	case runner.StatusSkipped:
		return "SKIP"
	default:
		return strings.ToUpper(string(s))
	}
}

func formatBatchTable(res *runner.BatchResult) string {
	if res == nil {
		return "Test: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Test: %s %s\n", res.TestID, coloredStatus(res.Succeeded()))
	fmt.Fprintf(&buf, "Rows: %d passed=%d failed=%d errored=%d skipped=%d\n",
		res.Total, res.Passed, res.Failed, res.Errored, res.Skipped)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSTATUS\tEVALS\tLAT(ms)\tERROR")
	for _, run := range res.Runs {
		if run == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%s\n",
			run.RowID, statusCell(run.Status), run.PassedCount, run.TotalCount, run.LatencyMs, run.ErrorMessage)
	}
	_ = tw.Flush()
	buf.WriteByte('\n')
	return buf.String()
}

type jsonEvaluation struct {
	EvaluatorKey string  `json:"evaluator_key"`
	Score        float64 `json:"score"`
	ScoreMin     float64 `json:"score_min"`
	ScoreMax     float64 `json:"score_max"`
	Passed       *bool   `json:"passed,omitempty"`
	Feedback     string  `json:"feedback,omitempty"`
}

type jsonRowRun struct {
	RunID       string           `json:"run_id"`
	RowID       string           `json:"row_id"`
	Status      string           `json:"status"`
	PassedCount int              `json:"passed_count"`
	FailedCount int              `json:"failed_count"`
	TotalCount  int              `json:"total_count"`
	LatencyMs   int64            `json:"latency_ms"`
	Error       string           `json:"error,omitempty"`
	Evaluations []jsonEvaluation `json:"evaluations,omitempty"`
}

type jsonBatchResult struct {
	TestID      string       `json:"test_id"`
	TestName    string       `json:"test_name,omitempty"`
	Dataset     string       `json:"dataset,omitempty"`
	Passed      bool         `json:"passed"`
	TotalRows   int          `json:"total_rows"`
	PassedRows  int          `json:"passed_rows"`
	FailedRows  int          `json:"failed_rows"`
	ErroredRows int          `json:"errored_rows"`
	SkippedRows int          `json:"skipped_rows"`
	Rows        []jsonRowRun `json:"rows"`
}

func evaluationToJSON(e evaluator.Evaluation) jsonEvaluation {
	return jsonEvaluation{
		EvaluatorKey: e.EvaluatorKey,
		Score:        e.Score,
		ScoreMin:     e.ScoreMin,
		ScoreMax:     e.ScoreMax,
		Passed:       e.Passed,
		Feedback:     e.Feedback,
	}
}

func batchResultToJSON(res *runner.BatchResult) jsonBatchResult {
	out := jsonBatchResult{
		TestID:      res.TestID,
		TestName:    res.TestName,
		Dataset:     res.Dataset,
		Passed:      res.Succeeded(),
		TotalRows:   res.Total,
		PassedRows:  res.Passed,
		FailedRows:  res.Failed,
		ErroredRows: res.Errored,
		SkippedRows: res.Skipped,
		Rows:        make([]jsonRowRun, 0, len(res.Runs)),
	}

	for _, run := range res.Runs {
		if run == nil {
			continue
		}
		rowOut := jsonRowRun{
			RunID:       run.ID,
			RowID:       run.RowID,
			Status:      string(run.Status),
			PassedCount: run.PassedCount,
			FailedCount: run.FailedCount,
			TotalCount:  run.TotalCount,
			LatencyMs:   run.LatencyMs,
			Error:       run.ErrorMessage,
			Evaluations: make([]jsonEvaluation, 0, len(run.Evaluations)),
		}
		for _, e := range run.Evaluations {
			rowOut.Evaluations = append(rowOut.Evaluations, evaluationToJSON(e))
		}
		out.Rows = append(out.Rows, rowOut)
	}

	return out
}

func formatBatchJSON(res *runner.BatchResult) string {
	if res == nil {
		return "{\"error\":\"nil batch result\"}\n"
	}

	b, err := json.Marshal(batchResultToJSON(res))
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

type runSummary struct {
	totalTests  int
	totalRows   int
	passedRows  int
	failedRows  int
	erroredRows int
	skippedRows int
}

func summarizeBatches(batches []*runner.BatchResult) (anyFailed bool, summary runSummary) {
	summary.totalTests = len(batches)
	for _, b := range batches {
		if b == nil {
			anyFailed = true
			continue
		}
		summary.totalRows += b.Total
		summary.passedRows += b.Passed
		summary.failedRows += b.Failed
		summary.erroredRows += b.Errored
		summary.skippedRows += b.Skipped
		if !b.Succeeded() {
			anyFailed = true
		}
	}
	return anyFailed, summary
}

type jsonRunSummary struct {
	TotalTests  int `json:"total_tests"`
	TotalRows   int `json:"total_rows"`
	PassedRows  int `json:"passed_rows"`
	FailedRows  int `json:"failed_rows"`
	ErroredRows int `json:"errored_rows"`
	SkippedRows int `json:"skipped_rows"`
}

type jsonRunSummaryLine struct {
	Summary jsonRunSummary `json:"summary"`
}

func printRunJSON(cmd *cobra.Command, batches []*runner.BatchResult, summary runSummary) error {
	out := cmd.OutOrStdout()

	for _, b := range batches {
		_, _ = fmt.Fprint(out, formatBatchJSON(b))
	}

	line := jsonRunSummaryLine{
		Summary: jsonRunSummary{
			TotalTests:  summary.totalTests,
			TotalRows:   summary.totalRows,
			PassedRows:  summary.passedRows,
			FailedRows:  summary.failedRows,
			ErroredRows: summary.erroredRows,
			SkippedRows: summary.skippedRows,
		},
	}
	b, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("run: marshal json: %w", err)
	}
	_, _ = fmt.Fprintln(out, string(b))
	return nil
}
