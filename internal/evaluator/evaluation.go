package evaluator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

// Score bounds shared by every evaluator.
const (
	ScoreMin = 0.0
	ScoreMax = 100.0
)

// Outcome is what a scorer produces before thresholding.
type Outcome struct {
	Score    float64
	Feedback string
	Metadata map[string]any
}

// SingleScorer scores one normalized single response.
type SingleScorer interface {
	Score(ctx context.Context, resp *response.SingleResponse) (Outcome, error)
}

// ConversationScorer scores one normalized conversation.
type ConversationScorer interface {
	Score(ctx context.Context, conv *response.Conversation) (Outcome, error)
}

// Evaluation is the persisted outcome of one evaluator on one test
// run.
type Evaluation struct {
	ID           string
	TestRunID    string
	EvaluatorKey string
	Score        float64
	ScoreMin     float64
	ScoreMax     float64
	Passed       *bool
	Feedback     string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// DidPass reports whether the evaluation passed its threshold.
func (e Evaluation) DidPass() bool {
	return e.Passed != nil && *e.Passed
}

// NewEvaluation builds the record for one scored outcome. Passing is
// score >= threshold.
func NewEvaluation(testRunID, key string, out Outcome, threshold float64) Evaluation {
	passed := out.Score >= threshold
	return Evaluation{
		ID:           uuid.NewString(),
		TestRunID:    testRunID,
		EvaluatorKey: key,
		Score:        out.Score,
		ScoreMin:     ScoreMin,
		ScoreMax:     ScoreMax,
		Passed:       &passed,
		Feedback:     out.Feedback,
		Metadata:     out.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
}

// ThresholdFor resolves the pass threshold for a config: scored mode
// uses the configured threshold, binary mode the definition default.
func ThresholdFor(cfg testdef.EvaluatorConfig, def Definition) float64 {
	if cfg.IsScored() && cfg.Threshold > 0 {
		return cfg.Threshold
	}
	return def.DefaultThreshold
}

func clampScore(score float64) float64 {
	if score < ScoreMin {
		return ScoreMin
	}
	if score > ScoreMax {
		return ScoreMax
	}
	return score
}
