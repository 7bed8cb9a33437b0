package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/store"
)

type historyOptions struct {
	testID string
	status string
	limit  int
	since  string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show test run history",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.testID, "test", "", "test id to filter")
	cmd.Flags().StringVar(&opts.status, "status", "", "run status to filter (passed|failed|error|skipped)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only runs since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	filter := store.RunFilter{
		TestID: strings.TrimSpace(opts.testID),
		Status: strings.TrimSpace(opts.status),
		Since:  since,
		Limit:  opts.limit,
	}
	runs, err := stor.ListTestRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tTEST\tROW\tSTATUS\tEVALS\tLAT(ms)\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			r.ID,
			r.TestID,
			r.RowID,
			strings.ToUpper(string(r.Status)),
			r.PassedCount,
			r.TotalCount,
			r.LatencyMs,
			formatTime(r.StartedAt),
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, runID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: missing run id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	run, err := stor.GetTestRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: run %q not found", runID)
		}
		return err
	}

	evals, err := stor.GetEvaluations(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Test: %s row=%s\n", run.TestID, run.RowID)
	_, _ = fmt.Fprintf(out, "Status: %s evaluations=%d/%d latency_ms=%d\n",
		strings.ToUpper(string(run.Status)), run.PassedCount, run.TotalCount, run.LatencyMs)
	_, _ = fmt.Fprintf(out, "Started: %s\n", formatTime(run.StartedAt))
	_, _ = fmt.Fprintf(out, "Finished: %s\n", formatTime(run.FinishedAt))
	if run.ErrorMessage != "" {
		_, _ = fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}

	if len(evals) > 0 {
		_, _ = fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "EVALUATOR\tSCORE\tRANGE\tPASSED\tFEEDBACK")
		for _, e := range evals {
			fmt.Fprintf(tw, "%s\t%.1f\t[%.0f,%.0f]\t%s\t%s\n",
				e.EvaluatorKey, e.Score, e.ScoreMin, e.ScoreMax, passedLabel(e.Passed), e.Feedback)
		}
		_ = tw.Flush()
	}

	if run.Output != nil {
		if b, err := json.MarshalIndent(run.Output, "", "  "); err == nil {
			_, _ = fmt.Fprintf(out, "\nOutput:\n%s\n", b)
		}
	}

	return nil
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func passedLabel(passed *bool) string {
	switch {
	case passed == nil:
		return "-"
	case *passed:
		return "PASS"
	default:
		return "FAIL"
	}
}
