package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// fileSearchScorer checks that file searches happened and surfaced
// the expected files.
type fileSearchScorer struct {
	expectedFiles []string
	require       bool
}

func newFileSearchScorer(opts Options) (ConversationScorer, error) {
	return &fileSearchScorer{
		expectedFiles: opts.Strings("expected_files"),
		require:       opts.Bool("require_file_search"),
	}, nil
}

func (s *fileSearchScorer) Score(_ context.Context, conv *response.Conversation) (Outcome, error) {
	if conv == nil {
		return Outcome{}, errors.New("evaluator: nil conversation")
	}

	searches := conv.FileSearches
	meta := map[string]any{"searches_performed": len(searches)}

	if len(searches) == 0 {
		if s.require {
			return Outcome{Score: 0, Feedback: "no file search performed", Metadata: meta}, nil
		}
		return Outcome{Score: 100, Feedback: "file search not required", Metadata: meta}, nil
	}

	var files []string
	for _, fs := range searches {
		files = append(files, fs.Files...)
	}
	meta["files_found"] = len(files)

	if len(s.expectedFiles) == 0 {
		return Outcome{
			Score:    100,
			Feedback: fmt.Sprintf("performed %d file searches", len(searches)),
			Metadata: meta,
		}, nil
	}

	matched := make([]string, 0, len(s.expectedFiles))
	missing := make([]string, 0)
	for _, want := range s.expectedFiles {
		needle := strings.ToLower(strings.TrimSpace(want))
		found := false
		for _, f := range files {
			if strings.Contains(strings.ToLower(f), needle) {
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

	score := math.Round(float64(len(matched)) / float64(len(s.expectedFiles)) * 100)
	meta["matched_files"] = matched
	if len(missing) > 0 {
		meta["missing_files"] = missing
	}

	msg := fmt.Sprintf("found %d/%d expected files", len(matched), len(s.expectedFiles))
	if len(missing) == 0 {
		msg = "all expected files found"
	}
	return Outcome{Score: score, Feedback: msg, Metadata: meta}, nil
}
