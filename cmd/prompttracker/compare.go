package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/store"
)

var errRegression = errors.New("prompttracker: regression detected")

type compareOptions struct {
	testName string
	v1       string
	v2       string
	output   string
}

func newCompareCmd(st *cliState) *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare stored runs of two prompt versions",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.testName, "test", "", "test name to compare")
	cmd.Flags().StringVar(&opts.v1, "v1", "", "baseline prompt version")
	cmd.Flags().StringVar(&opts.v2, "v2", "", "candidate prompt version")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json")

	_ = cmd.MarkFlagRequired("test")
	_ = cmd.MarkFlagRequired("v1")
	_ = cmd.MarkFlagRequired("v2")

	return cmd
}

type compareRow struct {
	RowID  string `json:"row_id"`
	V1     string `json:"v1"`
	V2     string `json:"v2"`
	Change string `json:"change,omitempty"`
}

type compareReport struct {
	Test         string       `json:"test"`
	V1           string       `json:"v1"`
	V2           string       `json:"v2"`
	Rows         []compareRow `json:"rows"`
	Regressions  []string     `json:"regressions"`
	Improvements []string     `json:"improvements"`
}

func runCompare(cmd *cobra.Command, st *cliState, opts *compareOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("compare: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("compare: nil options")
	}

	testName := strings.TrimSpace(opts.testName)
	if testName == "" {
		return fmt.Errorf("compare: missing --test")
	}
	v1 := strings.TrimSpace(opts.v1)
	v2 := strings.TrimSpace(opts.v2)
	if v1 == "" || v2 == "" {
		return fmt.Errorf("compare: missing --v1/--v2")
	}
	if v1 == v2 {
		return fmt.Errorf("compare: --v1 and --v2 must differ")
	}

	output, err := parseOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	cmp, err := stor.CompareVersions(cmd.Context(), testName, v1, v2)
	if err != nil {
		return err
	}

	report := buildCompareReport(cmp)
	switch output {
	case formatTable:
		printCompareTable(cmd, report)
	case formatJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("compare: marshal output: %w", err)
		}
	default:
		return fmt.Errorf("compare: internal error: unknown output format %q", output)
	}

	if len(report.Regressions) > 0 {
		return errRegression
	}
	return nil
}

// buildCompareReport flattens a version comparison into one line per
// dataset row. Rows present in only one version render "-" for the
// missing side and count as neither regression nor improvement.
func buildCompareReport(cmp *store.VersionComparison) compareReport {
	report := compareReport{
		Test:         cmp.TestName,
		V1:           cmp.V1,
		V2:           cmp.V2,
		Regressions:  cmp.Regressions,
		Improvements: cmp.Improvements,
	}
	if report.Regressions == nil {
		report.Regressions = []string{}
	}
	if report.Improvements == nil {
		report.Improvements = []string{}
	}

	v1ByRow := runsByRow(cmp.V1Runs)
	v2ByRow := runsByRow(cmp.V2Runs)

	rowIDs := make([]string, 0, len(v1ByRow)+len(v2ByRow))
	seen := make(map[string]bool, len(v1ByRow)+len(v2ByRow))
	for rowID := range v1ByRow {
		seen[rowID] = true
		rowIDs = append(rowIDs, rowID)
	}
	for rowID := range v2ByRow {
		if !seen[rowID] {
			rowIDs = append(rowIDs, rowID)
		}
	}
	sort.Strings(rowIDs)

	regressed := make(map[string]bool, len(report.Regressions))
	for _, rowID := range report.Regressions {
		regressed[rowID] = true
	}
	improved := make(map[string]bool, len(report.Improvements))
	for _, rowID := range report.Improvements {
		improved[rowID] = true
	}

	report.Rows = make([]compareRow, 0, len(rowIDs))
	for _, rowID := range rowIDs {
		row := compareRow{RowID: rowID, V1: versionCell(v1ByRow[rowID]), V2: versionCell(v2ByRow[rowID])}
		switch {
		case regressed[rowID]:
			row.Change = "regression"
		case improved[rowID]:
			row.Change = "improvement"
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

func runsByRow(runs []*runner.TestRun) map[string]*runner.TestRun {
	out := make(map[string]*runner.TestRun, len(runs))
	for _, r := range runs {
		if r != nil {
			out[r.RowID] = r
		}
	}
	return out
}

func versionCell(run *runner.TestRun) string {
	if run == nil {
		return "-"
	}
	return strings.ToUpper(string(run.Status))
}

func printCompareTable(cmd *cobra.Command, report compareReport) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Test: %s v1=%s v2=%s\n\n", report.Test, report.V1, report.V2)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tV1\tV2\tCHANGE")
	for _, row := range report.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.RowID, row.V1, row.V2, row.Change)
	}
	_ = tw.Flush()

	_, _ = fmt.Fprintf(out, "\nRegressions: %d Improvements: %d\n", len(report.Regressions), len(report.Improvements))
}
