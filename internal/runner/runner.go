package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

// Runner executes the evaluation pipeline for one raw payload at a
// time: classify the API, normalize the payload, filter the evaluator
// set, score, and aggregate into a TestRun. It is synchronous and does
// no network or disk work of its own; callers hand in payloads already
// fetched.
type Runner struct {
	registry *evaluator.Registry
}

// New creates a Runner over an evaluator registry.
func New(registry *evaluator.Registry) *Runner {
	return &Runner{registry: registry}
}

// Run evaluates one raw payload against one test and returns the
// terminal TestRun. It never returns an error: pipeline failures
// become runs with status error, so sibling rows in a batch are
// unaffected.
//
// The status law: passed iff every produced evaluation passed, failed
// if any did not, skipped if no configured evaluator applies to the
// test's mode and API, error when an evaluator cannot be built or
// scoring itself breaks. Evaluations collected before an error are
// kept on the run.
func (r *Runner) Run(ctx context.Context, in RunInput) *TestRun {
	if in.Test == nil {
		run := NewTestRun("", in.RowID)
		run.StartedAt = time.Now().UTC()
		return errorRun(run, errors.New("runner: nil test"))
	}

	run := NewTestRun(in.Test.ID, in.RowID)
	run.Status = StatusRunning
	run.StartedAt = time.Now().UTC()

	if r == nil || r.registry == nil {
		return errorRun(run, errors.New("runner: nil evaluator registry"))
	}

	api := in.Test.Testable.APIType()
	norm := response.ForAPI(api)

	applicable := make(map[string]struct{})
	for _, def := range r.registry.ForTest(in.Test.Mode, api) {
		applicable[def.Key] = struct{}{}
	}

	var single *response.SingleResponse
	var conv *response.Conversation
	if in.Test.Mode == testdef.ModeConversational {
		c := norm.Conversation(in.Raw)
		conv = &c
		run.Output = c
	} else {
		s := norm.Single(in.Raw)
		single = &s
		run.Output = s
	}

	for _, cfg := range in.Test.EnabledEvaluators() {
		if err := ctx.Err(); err != nil {
			return errorRun(run, fmt.Errorf("runner: canceled: %w", err))
		}

		def, ok := r.registry.Get(cfg.Key)
		if !ok {
			return errorRun(run, fmt.Errorf("runner: unknown evaluator %q", cfg.Key))
		}
		if _, ok := applicable[def.Key]; !ok {
			continue
		}

		out, err := score(ctx, def, evaluator.Options(cfg.Options), single, conv)
		if err != nil {
			return errorRun(run, err)
		}

		threshold := evaluator.ThresholdFor(cfg, def)
		run.Evaluations = append(run.Evaluations, evaluator.NewEvaluation(run.ID, def.Key, out, threshold))
	}

	return finishRun(run)
}

// score builds the scorer for a definition and applies it to the
// normalized shape matching its family.
func score(ctx context.Context, def evaluator.Definition, opts evaluator.Options, single *response.SingleResponse, conv *response.Conversation) (evaluator.Outcome, error) {
	switch def.Kind {
	case evaluator.KindSingle:
		scorer, err := def.NewSingle(opts)
		if err != nil {
			return evaluator.Outcome{}, err
		}
		return scorer.Score(ctx, single)
	case evaluator.KindConversation:
		scorer, err := def.NewConversation(opts)
		if err != nil {
			return evaluator.Outcome{}, err
		}
		return scorer.Score(ctx, conv)
	}
	return evaluator.Outcome{}, fmt.Errorf("runner: evaluator %s: invalid kind %q", def.Key, def.Kind)
}

func finishRun(run *TestRun) *TestRun {
	tallyEvaluations(run)
	switch {
	case run.TotalCount == 0:
		run.Status = StatusSkipped
	case run.FailedCount == 0:
		run.Status = StatusPassed
	default:
		run.Status = StatusFailed
	}
	run.FinishedAt = time.Now().UTC()
	return run
}

func errorRun(run *TestRun, err error) *TestRun {
	tallyEvaluations(run)
	run.Status = StatusError
	run.ErrorMessage = err.Error()
	run.FinishedAt = time.Now().UTC()
	return run
}

func tallyEvaluations(run *TestRun) {
	run.PassedCount = 0
	run.FailedCount = 0
	for _, e := range run.Evaluations {
		if e.DidPass() {
			run.PassedCount++
		} else {
			run.FailedCount++
		}
	}
	run.TotalCount = len(run.Evaluations)
}
