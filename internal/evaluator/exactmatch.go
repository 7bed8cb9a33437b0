package evaluator

import (
	"context"
	"errors"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// exactMatchScorer compares the trimmed response text to an expected
// string.
type exactMatchScorer struct {
	expected   string
	ignoreCase bool
}

func newExactMatchScorer(opts Options) (SingleScorer, error) {
	expected := opts.String("expected")
	if expected == "" {
		return nil, errors.New("evaluator: exact_match requires expected")
	}
	return &exactMatchScorer{
		expected:   expected,
		ignoreCase: opts.Bool("ignore_case"),
	}, nil
}

func (s *exactMatchScorer) Score(_ context.Context, resp *response.SingleResponse) (Outcome, error) {
	if resp == nil {
		return Outcome{}, errors.New("evaluator: nil response")
	}

	got := strings.TrimSpace(resp.Text)
	equal := got == s.expected
	if !equal && s.ignoreCase {
		equal = strings.EqualFold(got, s.expected)
	}

	if equal {
		return Outcome{Score: 100, Feedback: "exact match"}, nil
	}
	return Outcome{
		Score:    0,
		Feedback: "response does not match expected text",
		Metadata: map[string]any{"expected": s.expected, "got": got},
	}, nil
}
