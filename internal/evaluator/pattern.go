package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// patternScorer matches the response text against one or more regular
// expressions and scores proportionally.
type patternScorer struct {
	patterns []*regexp.Regexp
}

func newPatternScorer(opts Options) (SingleScorer, error) {
	raw := opts.Strings("patterns")
	if p := opts.String("pattern"); p != "" {
		raw = append([]string{p}, raw...)
	}
	if len(raw) == 0 {
		return nil, errors.New("evaluator: pattern requires at least one pattern")
	}

	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("evaluator: invalid pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &patternScorer{patterns: patterns}, nil
}

func (s *patternScorer) Score(_ context.Context, resp *response.SingleResponse) (Outcome, error) {
	if resp == nil {
		return Outcome{}, errors.New("evaluator: nil response")
	}

	matched := 0
	missing := make([]string, 0)
	for _, re := range s.patterns {
		if re.MatchString(resp.Text) {
			matched++
		} else {
			missing = append(missing, re.String())
		}
	}

	score := math.Round(float64(matched) / float64(len(s.patterns)) * 100)
	meta := map[string]any{
		"matched": matched,
		"total":   len(s.patterns),
	}
	if len(missing) > 0 {
		meta["missing"] = missing
	}

	msg := fmt.Sprintf("matched %d/%d patterns", matched, len(s.patterns))
	if matched == len(s.patterns) {
		msg = "all patterns match"
	}
	return Outcome{Score: score, Feedback: msg, Metadata: meta}, nil
}
