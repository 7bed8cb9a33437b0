package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/dataset"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/llm"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/prompt"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/store"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

var errTestsFailed = errors.New("prompttracker: tests failed")

type runOptions struct {
	output       string
	concurrency  int
	recordedPath string
	noSave       bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Run test definitions against their datasets",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runTests(cmd, st, &opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "concurrent dataset rows (overrides config)")
	cmd.Flags().StringVar(&opts.recordedPath, "recorded", "", "JSON file of recorded payloads keyed by row id (single test only)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "skip persisting runs to the store")

	return cmd
}

func runTests(cmd *cobra.Command, st *cliState, opts *runOptions, path string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}

	output, err := parseOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	tests, err := loadTests(path, st.cfg.Paths.Tests)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return fmt.Errorf("run: no tests found")
	}
	sort.Slice(tests, func(i, j int) bool { return strings.ToLower(tests[i].ID) < strings.ToLower(tests[j].ID) })

	recorded, err := loadRecordedPayloads(opts.recordedPath)
	if err != nil {
		return err
	}
	if recorded != nil && len(tests) != 1 {
		return fmt.Errorf("run: --recorded requires a single test, got %d", len(tests))
	}

	prompts, err := prompt.LoadFromDir(st.cfg.Paths.Prompts)
	if err != nil {
		return err
	}
	promptIndex, err := prompt.Index(prompts)
	if err != nil {
		return err
	}

	datasets, err := dataset.LoadFromDir(st.cfg.Paths.Datasets)
	if err != nil {
		return err
	}
	datasetIndex, err := dataset.Index(datasets)
	if err != nil {
		return err
	}
	for _, test := range tests {
		if _, ok := datasetIndex[test.Dataset]; !ok {
			return fmt.Errorf("run: test %q references unknown dataset %q", test.ID, test.Dataset)
		}
	}

	var writer runner.RunWriter
	if !opts.noSave {
		stor, err := store.Open(st.cfg)
		if err != nil {
			return err
		}
		defer stor.Close()
		writer = stor
	}

	h, err := buildHarness(st, promptIndex, writer, opts.concurrency)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	batches := make([]*runner.BatchResult, 0, len(tests))
	for _, test := range tests {
		ds := datasetIndex[test.Dataset]

		var res *runner.BatchResult
		if recorded != nil {
			res, err = h.RunRecorded(ctx, test, ds, recorded)
		} else {
			res, err = h.RunTest(ctx, test, ds)
		}
		if err != nil {
			return fmt.Errorf("run: test %s: %w", test.ID, err)
		}
		batches = append(batches, res)
	}

	anyFailed, summary := summarizeBatches(batches)
	switch output {
	case formatTable:
		for _, b := range batches {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), formatBatchTable(b))
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Summary: tests=%d rows=%d passed=%d failed=%d errored=%d skipped=%d\n",
			summary.totalTests, summary.totalRows, summary.passedRows, summary.failedRows, summary.erroredRows, summary.skippedRows)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overall: %s\n", coloredStatus(!anyFailed))
	case formatJSON:
		if err := printRunJSON(cmd, batches, summary); err != nil {
			return err
		}
	default:
		return fmt.Errorf("run: internal error: unknown output format %q", output)
	}

	if anyFailed {
		return errTestsFailed
	}
	return nil
}

// loadTests accepts either a single test file or a directory of them.
// An empty path falls back to the configured tests directory.
func loadTests(path, defaultDir string) ([]*testdef.Test, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultDir
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("run: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return testdef.LoadFromDir(path)
	}

	t, err := testdef.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return []*testdef.Test{t}, nil
}

// loadRecordedPayloads reads pre-fetched provider payloads keyed by
// dataset row id. Recorded runs evaluate those payloads instead of
// calling a provider, which is the only execution path for APIs
// without a live integration.
func loadRecordedPayloads(path string) (map[string]response.Raw, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("run: read recorded %q: %w", path, err)
	}

	var payloads map[string]map[string]any
	if err := json.Unmarshal(b, &payloads); err != nil {
		return nil, fmt.Errorf("run: parse recorded %q: %w", path, err)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("run: recorded %q holds no payloads", path)
	}

	out := make(map[string]response.Raw, len(payloads))
	for rowID, payload := range payloads {
		out[rowID] = response.RawFromObject(payload)
	}
	return out, nil
}

func buildHarness(st *cliState, prompts map[string]*prompt.Prompt, writer runner.RunWriter, concurrency int) (*runner.Harness, error) {
	providers, err := llm.NewRegistryFromConfig(st.cfg)
	if err != nil {
		return nil, err
	}
	judge, err := llm.JudgeFromConfig(st.cfg, providers)
	if err != nil {
		return nil, err
	}
	var evalJudge evaluator.Judge
	if judge != nil {
		evalJudge = judge
	}

	if concurrency <= 0 {
		concurrency = st.cfg.Runner.Concurrency
	}

	return runner.NewHarness(runner.HarnessConfig{
		Providers:   providers,
		Registry:    evaluator.NewRegistry(evalJudge),
		Store:       writer,
		Prompts:     prompts,
		Logger:      st.logger,
		Concurrency: concurrency,
		Timeout:     st.cfg.Runner.Timeout,
		MaxTokens:   st.cfg.Runner.MaxTokens,
	})
}
