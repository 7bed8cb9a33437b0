package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// fakeJudge replies with canned strings in call order.
type fakeJudge struct {
	replies []string
	err     error
	reqs    []JudgeRequest
}

func (f *fakeJudge) JudgeMessage(_ context.Context, req JudgeRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.reqs) - 1
	if i >= len(f.replies) {
		return "", nil
	}
	return f.replies[i], nil
}

func judgeConv() *response.Conversation {
	return &response.Conversation{
		Messages: []response.Message{
			{Role: response.RoleUser, Content: "hi", Turn: 1},
			{Role: response.RoleAssistant, Content: "hello, how can I help?", Turn: 2},
			{Role: response.RoleUser, Content: "what is the refund window?", Turn: 3},
			{Role: response.RoleAssistant, Content: "30 days from delivery", Turn: 4},
		},
	}
}

func TestConversationJudge_MeanScore(t *testing.T) {
	t.Parallel()

	judge := &fakeJudge{replies: []string{
		"Score: 80\nClear greeting.",
		"Score: 90\nAccurate answer.",
	}}
	s, err := newConversationJudgeScorer(judge)(Options{"criteria": "helpful and accurate"})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	out, err := s.Score(context.Background(), judgeConv())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if out.Score != 85 {
		t.Fatalf("score: got %v want 85", out.Score)
	}
	if out.Feedback != "judged 2 assistant messages, average score 85.0" {
		t.Fatalf("feedback: got %q", out.Feedback)
	}
	if got := out.Metadata["messages_judged"].(int); got != 2 {
		t.Fatalf("messages_judged: got %v", got)
	}

	if len(judge.reqs) != 2 {
		t.Fatalf("judge calls: got %d want 2", len(judge.reqs))
	}
	req := judge.reqs[0]
	if req.Criteria != "helpful and accurate" {
		t.Fatalf("criteria: got %q", req.Criteria)
	}
	if req.Message != "hello, how can I help?" || req.Turn != 2 {
		t.Fatalf("message: got %q turn=%d", req.Message, req.Turn)
	}
	if !strings.Contains(req.Transcript, "user: hi\n") ||
		!strings.Contains(req.Transcript, "assistant: 30 days from delivery\n") {
		t.Fatalf("transcript: got %q", req.Transcript)
	}
}

func TestConversationJudge_UnparseableReply(t *testing.T) {
	t.Parallel()

	judge := &fakeJudge{replies: []string{"great answer", "Score: 90"}}
	s, _ := newConversationJudgeScorer(judge)(Options{})

	out, err := s.Score(context.Background(), judgeConv())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Unparseable reply defaults to 50, so the mean is (50+90)/2.
	if out.Score != 70 {
		t.Fatalf("score: got %v want 70", out.Score)
	}
}

func TestConversationJudge_NoAssistantMessages(t *testing.T) {
	t.Parallel()

	s, _ := newConversationJudgeScorer(&fakeJudge{})(Options{})
	conv := &response.Conversation{
		Messages: []response.Message{
			{Role: response.RoleUser, Content: "anyone there?", Turn: 1},
		},
	}
	_, err := s.Score(context.Background(), conv)
	if err == nil || !strings.Contains(err.Error(), "no assistant messages found") {
		t.Fatalf("err: got %v", err)
	}
}

func TestConversationJudge_EmptyConversation(t *testing.T) {
	t.Parallel()

	s, _ := newConversationJudgeScorer(&fakeJudge{})(Options{})
	_, err := s.Score(context.Background(), &response.Conversation{})
	if err == nil || !strings.Contains(err.Error(), "conversation has no messages") {
		t.Fatalf("err: got %v", err)
	}
}

func TestConversationJudge_NilJudge(t *testing.T) {
	t.Parallel()

	if _, err := newConversationJudgeScorer(nil)(Options{}); err == nil {
		t.Fatalf("nil judge: expected error")
	}
}

func TestConversationJudge_JudgeError(t *testing.T) {
	t.Parallel()

	judge := &fakeJudge{err: errors.New("model overloaded")}
	s, _ := newConversationJudgeScorer(judge)(Options{})

	_, err := s.Score(context.Background(), judgeConv())
	if err == nil || !strings.Contains(err.Error(), "judge message") {
		t.Fatalf("err: got %v", err)
	}
}

func TestParseJudgeScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{name: "Plain", reply: "Score: 85", want: 85},
		{name: "Decimal", reply: "score: 72.5 because of tone", want: 72.5},
		{name: "UpperCase", reply: "SCORE:  90", want: 90},
		{name: "Embedded", reply: "Reasoning first.\nScore: 40\nDone.", want: 40},
		{name: "Missing", reply: "no verdict here", want: 50},
		{name: "OverMax", reply: "Score: 150", want: 100},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseJudgeScore(tt.reply); got != tt.want {
				t.Fatalf("parseJudgeScore(%q): got %v want %v", tt.reply, got, tt.want)
			}
		})
	}
}
