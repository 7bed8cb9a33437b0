package evaluator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// Judge produces a quality verdict for one assistant reply. The LLM
// client backing it lives outside this package so scoring stays
// deterministic and mockable.
type Judge interface {
	JudgeMessage(ctx context.Context, req JudgeRequest) (string, error)
}

// JudgeRequest is one message judgment ask.
type JudgeRequest struct {
	Criteria   string
	Transcript string
	Message    string
	Turn       int
}

var judgeScoreRe = regexp.MustCompile(`(?i)score:\s*(\d+(?:\.\d+)?)`)

// conversationJudgeScorer scores each assistant message through the
// judge and averages the per-message scores.
type conversationJudgeScorer struct {
	judge    Judge
	criteria string
}

func newConversationJudgeScorer(judge Judge) func(opts Options) (ConversationScorer, error) {
	return func(opts Options) (ConversationScorer, error) {
		if judge == nil {
			return nil, errors.New("evaluator: conversation judge not configured")
		}
		return &conversationJudgeScorer{
			judge:    judge,
			criteria: opts.String("criteria"),
		}, nil
	}
}

func (s *conversationJudgeScorer) Score(ctx context.Context, conv *response.Conversation) (Outcome, error) {
	if conv == nil {
		return Outcome{}, errors.New("evaluator: nil conversation")
	}
	if len(conv.Messages) == 0 {
		return Outcome{}, errors.New("evaluator: conversation has no messages")
	}
	assistant := conv.AssistantMessages()
	if len(assistant) == 0 {
		return Outcome{}, errors.New("evaluator: no assistant messages found")
	}

	transcript := renderTranscript(conv)
	scores := make([]float64, 0, len(assistant))
	for _, msg := range assistant {
		reply, err := s.judge.JudgeMessage(ctx, JudgeRequest{
			Criteria:   s.criteria,
			Transcript: transcript,
			Message:    msg.Content,
			Turn:       msg.Turn,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("evaluator: judge message %d: %w", msg.Turn, err)
		}
		scores = append(scores, parseJudgeScore(reply))
	}

	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	mean := sum / float64(len(scores))

	return Outcome{
		Score:    mean,
		Feedback: fmt.Sprintf("judged %d assistant messages, average score %.1f", len(scores), mean),
		Metadata: map[string]any{
			"message_scores":  scores,
			"messages_judged": len(scores),
		},
	}, nil
}

// parseJudgeScore extracts "Score: N" from a judge reply, clamped to
// the score bounds. Unparseable replies default to the midpoint 50.
func parseJudgeScore(reply string) float64 {
	m := judgeScoreRe.FindStringSubmatch(reply)
	if m == nil {
		return 50
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 50
	}
	return clampScore(v)
}

func renderTranscript(conv *response.Conversation) string {
	var b strings.Builder
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
