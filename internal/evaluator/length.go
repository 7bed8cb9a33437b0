package evaluator

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// lengthScorer checks that the response text length falls inside the
// configured bounds. All-or-nothing: 100 inside, 0 outside.
type lengthScorer struct {
	min int
	max int // 0 means unbounded
}

func newLengthScorer(opts Options) (SingleScorer, error) {
	s := &lengthScorer{}
	s.min, _ = opts.Int("min_length")
	s.max, _ = opts.Int("max_length")

	if s.min < 0 || s.max < 0 {
		return nil, errors.New("evaluator: length bounds must be >= 0")
	}
	if s.max > 0 && s.min > s.max {
		return nil, errors.New("evaluator: min_length greater than max_length")
	}
	return s, nil
}

func (s *lengthScorer) Score(_ context.Context, resp *response.SingleResponse) (Outcome, error) {
	if resp == nil {
		return Outcome{}, errors.New("evaluator: nil response")
	}

	n := utf8.RuneCountInString(resp.Text)
	meta := map[string]any{
		"length":     n,
		"min_length": s.min,
		"max_length": s.max,
	}

	switch {
	case n < s.min:
		return Outcome{
			Score:    0,
			Feedback: fmt.Sprintf("response length %d below minimum %d", n, s.min),
			Metadata: meta,
		}, nil
	case s.max > 0 && n > s.max:
		return Outcome{
			Score:    0,
			Feedback: fmt.Sprintf("response length %d exceeds maximum %d", n, s.max),
			Metadata: meta,
		}, nil
	default:
		return Outcome{
			Score:    100,
			Feedback: fmt.Sprintf("response length %d within bounds", n),
			Metadata: meta,
		}, nil
	}
}
