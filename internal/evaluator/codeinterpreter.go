package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// codeInterpreterScorer checks code execution behavior: that runs
// happened, succeeded, used the right language, and produced the
// expected output. Failed criteria deduct from a starting 100.
type codeInterpreterScorer struct {
	require      bool
	language     string
	outputs      []outputMatcher
	minCodeLines int
	expectFiles  bool
}

// outputMatcher is one expected output check: a plain substring or a
// "regex:"-prefixed pattern.
type outputMatcher struct {
	raw string
	re  *regexp.Regexp
}

func (m outputMatcher) matches(output string) bool {
	if m.re != nil {
		return m.re.MatchString(output)
	}
	return strings.Contains(output, m.raw)
}

func newCodeInterpreterScorer(opts Options) (ConversationScorer, error) {
	s := &codeInterpreterScorer{
		require:     opts.Bool("require_code_execution"),
		language:    opts.String("language"),
		expectFiles: opts.Bool("expect_files_created"),
	}
	s.minCodeLines, _ = opts.Int("min_code_lines")

	for _, raw := range opts.Strings("output_contains") {
		m := outputMatcher{raw: raw}
		if pattern, ok := strings.CutPrefix(raw, "regex:"); ok {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("evaluator: invalid output pattern %q: %w", pattern, err)
			}
			m.re = re
		}
		s.outputs = append(s.outputs, m)
	}
	return s, nil
}

func (s *codeInterpreterScorer) Score(_ context.Context, conv *response.Conversation) (Outcome, error) {
	if conv == nil {
		return Outcome{}, errors.New("evaluator: nil conversation")
	}

	runs := conv.CodeRuns
	meta := map[string]any{"runs": len(runs)}

	if len(runs) == 0 {
		if s.require {
			return Outcome{Score: 0, Feedback: "no code execution", Metadata: meta}, nil
		}
		return Outcome{Score: 100, Feedback: "code execution not required", Metadata: meta}, nil
	}

	deduction := 0.0
	var problems []string

	failed := 0
	for _, run := range runs {
		if run.Status != "" && run.Status != "completed" {
			failed++
		}
	}
	if failed > 0 {
		meta["failed_runs"] = failed
		deduction += 30 * float64(failed) / float64(len(runs))
		problems = append(problems, fmt.Sprintf("%d of %d executions failed", failed, len(runs)))
	}

	if s.language != "" {
		ok := false
		for _, run := range runs {
			if strings.EqualFold(run.Language, s.language) {
				ok = true
				break
			}
		}
		if !ok {
			deduction += 20
			problems = append(problems, fmt.Sprintf("language mismatch: want %s", s.language))
		}
	}

	if len(s.outputs) > 0 {
		var all strings.Builder
		for _, run := range runs {
			all.WriteString(run.Output)
			all.WriteString("\n")
		}
		output := all.String()

		missing := make([]string, 0)
		for _, m := range s.outputs {
			if !m.matches(output) {
				missing = append(missing, m.raw)
			}
		}
		if len(missing) > 0 {
			meta["missing_outputs"] = missing
			deduction += 30 * float64(len(missing)) / float64(len(s.outputs))
			problems = append(problems, fmt.Sprintf("missing outputs: %s", strings.Join(missing, ", ")))
		}
	}

	if s.minCodeLines > 0 {
		lines := 0
		for _, run := range runs {
			lines += countCodeLines(run.Code)
		}
		meta["code_lines"] = lines
		if lines < s.minCodeLines {
			deduction += 10
			problems = append(problems, fmt.Sprintf("%d code lines, want at least %d", lines, s.minCodeLines))
		}
	}

	if s.expectFiles {
		files := 0
		for _, run := range runs {
			files += len(run.FilesCreated)
		}
		meta["files_created"] = files
		if files == 0 {
			deduction += 10
			problems = append(problems, "no files created")
		}
	}

	score := clampScore(math.Round(100 - deduction))

	feedback := fmt.Sprintf("ran %d code executions", len(runs))
	if len(problems) > 0 {
		feedback += ": " + strings.Join(problems, "; ")
	}
	return Outcome{Score: score, Feedback: feedback, Metadata: meta}, nil
}

func countCodeLines(code string) int {
	n := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
