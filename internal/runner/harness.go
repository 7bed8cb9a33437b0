package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/dataset"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/llm"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/prompt"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

// RunWriter persists tests, runs, and evaluations. The store package
// implements it.
type RunWriter interface {
	SaveTest(ctx context.Context, t *testdef.Test) error
	SaveTestRun(ctx context.Context, run *TestRun) error
	SaveEvaluations(ctx context.Context, evals []evaluator.Evaluation) error
}

// Harness drives full test executions: it renders the prompt version
// per dataset row, calls the provider for a raw payload, hands the
// payload to the Runner, and persists what comes back. Rows fan out
// over a bounded worker pool and fail independently.
type Harness struct {
	runner    *Runner
	providers *llm.Registry
	store     RunWriter
	prompts   map[string]*prompt.Prompt
	logger    zerolog.Logger
	timeout   time.Duration
	maxTokens int

	sem chan struct{}
}

// HarnessConfig wires the collaborators a Harness needs. Store may be
// nil, in which case runs are not persisted.
type HarnessConfig struct {
	Providers   *llm.Registry
	Registry    *evaluator.Registry
	Store       RunWriter
	Prompts     map[string]*prompt.Prompt
	Logger      zerolog.Logger
	Concurrency int
	Timeout     time.Duration
	MaxTokens   int
}

// NewHarness creates a Harness with bounded row concurrency.
func NewHarness(cfg HarnessConfig) (*Harness, error) {
	if cfg.Providers == nil {
		return nil, errors.New("runner: nil provider registry")
	}
	if cfg.Registry == nil {
		return nil, errors.New("runner: nil evaluator registry")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Harness{
		runner:    New(cfg.Registry),
		providers: cfg.Providers,
		store:     cfg.Store,
		prompts:   cfg.Prompts,
		logger:    cfg.Logger,
		timeout:   cfg.Timeout,
		maxTokens: maxTokens,
		sem:       make(chan struct{}, concurrency),
	}, nil
}

// RunTest executes a test against every row of a dataset and
// aggregates the outcome. Each row produces exactly one TestRun; a
// provider failure on one row marks that run error and leaves the
// siblings alone. Runs and their evaluations are persisted after the
// batch completes. The BatchResult is returned even when persistence
// fails, alongside the first save error.
func (h *Harness) RunTest(ctx context.Context, test *testdef.Test, ds *dataset.Dataset) (*BatchResult, error) {
	if h == nil {
		return nil, errors.New("runner: nil harness")
	}
	if test == nil {
		return nil, errors.New("runner: nil test")
	}
	if ds == nil {
		return nil, errors.New("runner: nil dataset")
	}
	if err := testdef.Validate(test); err != nil {
		return nil, err
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("runner: dataset %s has no rows", ds.Name)
	}
	testdef.EnsureID(test)

	api := test.Testable.APIType()
	provider, ok := h.providers.ForAPI(api)
	if !ok {
		return nil, fmt.Errorf("runner: no provider registered for %s", api)
	}

	version, err := h.resolveVersion(test)
	if err != nil {
		return nil, err
	}

	if h.store != nil {
		if err := h.store.SaveTest(ctx, test); err != nil {
			return nil, fmt.Errorf("runner: save test %s: %w", test.ID, err)
		}
	}

	result := &BatchResult{
		TestID:    test.ID,
		TestName:  test.Name,
		Dataset:   ds.Name,
		StartedAt: time.Now().UTC(),
	}

	runs := make([]*TestRun, len(ds.Rows))
	var wg sync.WaitGroup
	for i := range ds.Rows {
		idx := i
		row := ds.Rows[i]

		wg.Add(1)
		go func() {
			defer wg.Done()
			runs[idx] = h.runRow(ctx, test, version, provider, row)
		}()
	}
	wg.Wait()

	var saveErr error
	for _, run := range runs {
		result.tally(run)
		if err := h.persistRun(ctx, run); err != nil && saveErr == nil {
			saveErr = err
		}
	}
	result.FinishedAt = time.Now().UTC()

	h.logger.Info().
		Str("test", test.Name).
		Str("dataset", ds.Name).
		Int("total", result.Total).
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Int("errored", result.Errored).
		Int("skipped", result.Skipped).
		Msg("test finished")

	return result, saveErr
}

// RunRecorded evaluates a test against pre-fetched payloads instead of
// calling a provider, one payload per dataset row keyed by row ID.
// Captures from APIs without a registered provider run through the
// same scoring and persistence path this way. Rows without a recorded
// payload produce error runs.
func (h *Harness) RunRecorded(ctx context.Context, test *testdef.Test, ds *dataset.Dataset, recorded map[string]response.Raw) (*BatchResult, error) {
	if h == nil {
		return nil, errors.New("runner: nil harness")
	}
	if test == nil {
		return nil, errors.New("runner: nil test")
	}
	if ds == nil {
		return nil, errors.New("runner: nil dataset")
	}
	if err := testdef.Validate(test); err != nil {
		return nil, err
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("runner: dataset %s has no rows", ds.Name)
	}
	if len(recorded) == 0 {
		return nil, errors.New("runner: no recorded payloads")
	}
	testdef.EnsureID(test)

	if h.store != nil {
		if err := h.store.SaveTest(ctx, test); err != nil {
			return nil, fmt.Errorf("runner: save test %s: %w", test.ID, err)
		}
	}

	result := &BatchResult{
		TestID:    test.ID,
		TestName:  test.Name,
		Dataset:   ds.Name,
		StartedAt: time.Now().UTC(),
	}

	var saveErr error
	for _, row := range ds.Rows {
		var run *TestRun
		if payload, ok := recorded[row.ID]; ok {
			run = h.runner.Run(ctx, RunInput{Test: test, Raw: payload, RowID: row.ID})
		} else {
			run = NewTestRun(test.ID, row.ID)
			run.StartedAt = time.Now().UTC()
			run = errorRun(run, fmt.Errorf("runner: row %s: no recorded payload", row.ID))
		}
		result.tally(run)
		if err := h.persistRun(ctx, run); err != nil && saveErr == nil {
			saveErr = err
		}
	}
	result.FinishedAt = time.Now().UTC()

	h.logger.Info().
		Str("test", test.Name).
		Str("dataset", ds.Name).
		Int("total", result.Total).
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Int("errored", result.Errored).
		Msg("recorded run finished")

	return result, saveErr
}

func (h *Harness) runRow(ctx context.Context, test *testdef.Test, version *prompt.Version, provider llm.Provider, row dataset.Row) *TestRun {
	if err := h.acquire(ctx); err != nil {
		run := NewTestRun(test.ID, row.ID)
		run.StartedAt = time.Now().UTC()
		return errorRun(run, fmt.Errorf("runner: row %s: %w", row.ID, err))
	}
	defer h.release()

	inv, err := buildInvocation(test, version, row, h.maxTokens)
	if err != nil {
		run := NewTestRun(test.ID, row.ID)
		run.StartedAt = time.Now().UTC()
		return errorRun(run, err)
	}

	invokeCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	started := time.Now()
	res, err := provider.Invoke(invokeCtx, inv)
	if err != nil {
		run := NewTestRun(test.ID, row.ID)
		run.StartedAt = started.UTC()
		run.LatencyMs = time.Since(started).Milliseconds()
		h.logger.Error().Err(err).Str("test", test.Name).Str("row", row.ID).Msg("provider call failed")
		return errorRun(run, fmt.Errorf("runner: invoke %s: %w", provider.Name(), err))
	}

	run := h.runner.Run(ctx, RunInput{Test: test, Raw: res.Payload, RowID: row.ID})
	run.LatencyMs = res.LatencyMs

	h.logger.Debug().
		Str("test", test.Name).
		Str("row", row.ID).
		Str("status", string(run.Status)).
		Int("evaluations", run.TotalCount).
		Msg("row evaluated")

	return run
}

// resolveVersion picks the prompt version a test targets. Assistant
// tests carry their configuration inline and resolve to nil.
func (h *Harness) resolveVersion(test *testdef.Test) (*prompt.Version, error) {
	if test.Testable.Kind != testdef.KindPromptVersion {
		return nil, nil
	}

	p, ok := h.prompts[test.Testable.PromptName]
	if !ok || p == nil {
		return nil, fmt.Errorf("runner: prompt %q not found", test.Testable.PromptName)
	}
	if v := strings.TrimSpace(test.Testable.PromptVersion); v != "" {
		return p.FindVersion(v)
	}

	latest := p.Latest()
	if latest == nil {
		return nil, fmt.Errorf("runner: prompt %q has no versions", test.Testable.PromptName)
	}
	return latest, nil
}

// buildInvocation assembles the provider call for one row. The
// rendered template is the user message; a row that carries its own
// user message turns the template output into the system prompt
// instead. Model settings resolve harness default, then prompt
// version, then testable override.
func buildInvocation(test *testdef.Test, version *prompt.Version, row dataset.Row, maxTokens int) (*llm.Invocation, error) {
	inv := &llm.Invocation{
		Model:     test.Testable.Model,
		MaxTokens: maxTokens,
	}

	switch test.Testable.Kind {
	case testdef.KindAssistant:
		user := strings.TrimSpace(row.UserMessage)
		if user == "" {
			return nil, fmt.Errorf("runner: row %s: assistant test needs a user_message", row.ID)
		}
		inv.System = test.Testable.Instructions
		inv.Messages = []llm.Message{{Role: response.RoleUser, Content: user}}
	default:
		if version == nil {
			return nil, fmt.Errorf("runner: row %s: no prompt version resolved", row.ID)
		}
		rendered, err := prompt.Render(version, row.Variables)
		if err != nil {
			return nil, fmt.Errorf("runner: row %s: %w", row.ID, err)
		}
		system, err := prompt.RenderSystem(version, row.Variables)
		if err != nil {
			return nil, fmt.Errorf("runner: row %s: %w", row.ID, err)
		}

		user := rendered
		if msg := strings.TrimSpace(row.UserMessage); msg != "" {
			user = msg
			if system == "" {
				system = rendered
			}
		}
		inv.System = system
		inv.Messages = []llm.Message{{Role: response.RoleUser, Content: user}}
		inv.Tools = toolDefinitions(version.Tools)

		if inv.Model == "" {
			inv.Model = version.Model
		}
		if t, ok := floatOption(version.ModelConfig, "temperature"); ok {
			inv.Temperature = t
		}
		if mt, ok := intOption(version.ModelConfig, "max_tokens"); ok && mt > 0 {
			inv.MaxTokens = mt
		}
	}

	if t, ok := floatOption(test.Testable.ModelConfig, "temperature"); ok {
		inv.Temperature = t
	}
	if mt, ok := intOption(test.Testable.ModelConfig, "max_tokens"); ok && mt > 0 {
		inv.MaxTokens = mt
	}
	return inv, nil
}

func toolDefinitions(tools []prompt.Tool) []llm.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

func floatOption(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intOption(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (h *Harness) persistRun(ctx context.Context, run *TestRun) error {
	if h.store == nil {
		return nil
	}
	if err := h.store.SaveTestRun(ctx, run); err != nil {
		return fmt.Errorf("runner: save run %s: %w", run.ID, err)
	}
	if len(run.Evaluations) == 0 {
		return nil
	}
	if err := h.store.SaveEvaluations(ctx, run.Evaluations); err != nil {
		return fmt.Errorf("runner: save evaluations for %s: %w", run.ID, err)
	}
	return nil
}

func (h *Harness) acquire(ctx context.Context) error {
	if h.sem == nil {
		return errors.New("runner: nil semaphore")
	}
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Harness) release() {
	if h.sem == nil {
		return
	}
	select {
	case <-h.sem:
	default:
	}
}
