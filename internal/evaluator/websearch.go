package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// webSearchScorer checks web search behavior: whether searches ran,
// what was queried, which domains were consulted, and how many
// distinct sources were consulted and cited. Each failed criterion
// deducts from a starting score of 100.
type webSearchScorer struct {
	require             bool
	expectedQueries     []string
	expectedDomains     []string
	requireAllQueries   bool
	requireAllDomains   bool
	minSourcesConsulted int
	minSourcesCited     int
}

const webSearchDeduction = 25.0

func newWebSearchScorer(opts Options) (ConversationScorer, error) {
	s := &webSearchScorer{
		require:           opts.Bool("require_web_search"),
		expectedQueries:   opts.Strings("expected_queries"),
		expectedDomains:   opts.Strings("expected_domains"),
		requireAllQueries: opts.Bool("require_all_queries"),
		requireAllDomains: opts.Bool("require_all_domains"),
	}
	s.minSourcesConsulted, _ = opts.Int("min_sources_consulted")
	s.minSourcesCited, _ = opts.Int("min_sources_cited")
	return s, nil
}

func (s *webSearchScorer) Score(_ context.Context, conv *response.Conversation) (Outcome, error) {
	if conv == nil {
		return Outcome{}, errors.New("evaluator: nil conversation")
	}

	searches := conv.WebSearches
	meta := map[string]any{"searches_performed": len(searches)}

	if len(searches) == 0 {
		if s.require {
			return Outcome{Score: 0, Feedback: "no web search performed", Metadata: meta}, nil
		}
		return Outcome{Score: 100, Feedback: "web search not required", Metadata: meta}, nil
	}

	// Providers re-attach the same citation list to every search
	// call, so both counts deduplicate by URL before counting.
	consulted := dedupSources(searches, func(ws response.WebSearchResult) []response.WebSource {
		return ws.Sources
	})
	cited := dedupSources(searches, func(ws response.WebSearchResult) []response.WebSource {
		return ws.Citations
	})
	meta["sources_consulted"] = len(consulted)
	meta["sources_cited"] = len(cited)

	deduction := 0.0
	var problems []string

	if len(s.expectedQueries) > 0 {
		matched, missing := matchQueries(searches, s.expectedQueries)
		meta["matched_queries"] = matched
		if len(missing) > 0 {
			meta["missing_queries"] = missing
			if s.requireAllQueries {
				deduction += webSearchDeduction * float64(len(missing)) / float64(len(s.expectedQueries))
				problems = append(problems, fmt.Sprintf("missing queries: %s", strings.Join(missing, ", ")))
			} else if len(matched) == 0 {
				deduction += webSearchDeduction
				problems = append(problems, "no expected query matched")
			}
		}
	}

	if len(s.expectedDomains) > 0 {
		matched, missing := matchDomains(consulted, s.expectedDomains)
		meta["matched_domains"] = matched
		if len(missing) > 0 {
			meta["missing_domains"] = missing
			if s.requireAllDomains {
				deduction += webSearchDeduction * float64(len(missing)) / float64(len(s.expectedDomains))
				problems = append(problems, fmt.Sprintf("missing domains: %s", strings.Join(missing, ", ")))
			} else if len(matched) == 0 {
				deduction += webSearchDeduction
				problems = append(problems, "no expected domain consulted")
			}
		}
	}

	if s.minSourcesConsulted > 0 && len(consulted) < s.minSourcesConsulted {
		deduction += webSearchDeduction
		problems = append(problems, fmt.Sprintf("consulted %d sources, want at least %d", len(consulted), s.minSourcesConsulted))
	}
	if s.minSourcesCited > 0 && len(cited) < s.minSourcesCited {
		deduction += webSearchDeduction
		problems = append(problems, fmt.Sprintf("cited %d sources, want at least %d", len(cited), s.minSourcesCited))
	}

	score := clampScore(math.Round(100 - deduction))

	feedback := fmt.Sprintf("Performed %d web searches. Sources consulted: %d. Sources cited: %d.",
		len(searches), len(consulted), len(cited))
	if len(problems) > 0 {
		feedback += " " + strings.Join(problems, "; ")
	}
	return Outcome{Score: score, Feedback: feedback, Metadata: meta}, nil
}

// dedupSources collects sources across all searches, keeping the
// first entry per URL.
func dedupSources(searches []response.WebSearchResult, pick func(response.WebSearchResult) []response.WebSource) []response.WebSource {
	seen := make(map[string]struct{})
	out := make([]response.WebSource, 0)
	for _, ws := range searches {
		for _, src := range pick(ws) {
			if _, ok := seen[src.URL]; ok {
				continue
			}
			seen[src.URL] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}

func matchQueries(searches []response.WebSearchResult, expected []string) (matched, missing []string) {
	matched = make([]string, 0, len(expected))
	missing = make([]string, 0)
	for _, want := range expected {
		needle := strings.ToLower(strings.TrimSpace(want))
		found := false
		for _, ws := range searches {
			if strings.Contains(strings.ToLower(ws.Query), needle) {
				found = true
				break
			}
		}
		if found {
			matched = append(matched, want)
		} else {
			missing = append(missing, want)
		}
	}
	return matched, missing
}

func matchDomains(sources []response.WebSource, expected []string) (matched, missing []string) {
	hosts := make([]string, 0, len(sources))
	for _, src := range sources {
		if u, err := url.Parse(src.URL); err == nil && u.Host != "" {
			hosts = append(hosts, strings.ToLower(u.Host))
		} else {
			hosts = append(hosts, strings.ToLower(src.URL))
		}
	}

	matched = make([]string, 0, len(expected))
	missing = make([]string, 0)
	for _, want := range expected {
		needle := strings.ToLower(strings.TrimSpace(want))
		found := false
		for _, h := range hosts {
			if strings.Contains(h, needle) {
				found = true
				break
			}
		}
		if found {
			matched = append(matched, want)
		} else {
			missing = append(missing, want)
		}
	}
	return matched, missing
}
