package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// keywordScorer checks keyword presence in the response text and
// scores proportionally to how many were found.
type keywordScorer struct {
	keywords      []string
	caseSensitive bool
}

func newKeywordScorer(opts Options) (SingleScorer, error) {
	return &keywordScorer{
		keywords:      opts.Strings("keywords"),
		caseSensitive: opts.Bool("case_sensitive"),
	}, nil
}

func (s *keywordScorer) Score(_ context.Context, resp *response.SingleResponse) (Outcome, error) {
	if resp == nil {
		return Outcome{}, errors.New("evaluator: nil response")
	}
	if len(s.keywords) == 0 {
		return Outcome{
			Score:    100,
			Feedback: "no keywords configured",
			Metadata: map[string]any{"matched": 0, "total": 0},
		}, nil
	}

	text := resp.Text
	if !s.caseSensitive {
		text = strings.ToLower(text)
	}

	matched := make([]string, 0, len(s.keywords))
	missing := make([]string, 0)
	for _, kw := range s.keywords {
		needle := kw
		if !s.caseSensitive {
			needle = strings.ToLower(kw)
		}
		if strings.Contains(text, needle) {
			matched = append(matched, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	score := math.Round(float64(len(matched)) / float64(len(s.keywords)) * 100)
	meta := map[string]any{
		"matched": matched,
		"total":   len(s.keywords),
	}
	if len(missing) > 0 {
		meta["missing"] = missing
	}

	msg := fmt.Sprintf("matched %d/%d keywords", len(matched), len(s.keywords))
	if len(missing) == 0 {
		msg = "all keywords present"
	}

	return Outcome{Score: score, Feedback: msg, Metadata: meta}, nil
}
