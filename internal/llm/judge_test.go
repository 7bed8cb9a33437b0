package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

type scriptedProvider struct {
	reply   string
	err     error
	lastInv *Invocation
}

func (p *scriptedProvider) Name() string              { return "scripted" }
func (p *scriptedProvider) APIType() response.APIType { return response.APIChatCompletion }

func (p *scriptedProvider) Invoke(_ context.Context, inv *Invocation) (*RawResult, error) {
	p.lastInv = inv
	if p.err != nil {
		return nil, p.err
	}
	return &RawResult{
		Payload: response.RawFromObject(map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"role": "assistant", "content": p.reply},
				},
			},
		}),
	}, nil
}

func TestJudge_JudgeMessage(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{reply: "Score: 85\nClear and correct."}
	j := NewJudge(p, "gpt-4o-mini")

	reply, err := j.JudgeMessage(context.Background(), evaluator.JudgeRequest{
		Criteria:   "helpful and accurate",
		Transcript: "user: hi\nassistant: hello\n",
		Message:    "hello",
		Turn:       2,
	})
	if err != nil {
		t.Fatalf("JudgeMessage: %v", err)
	}
	if !strings.Contains(reply, "Score: 85") {
		t.Fatalf("reply: got %q", reply)
	}

	inv := p.lastInv
	if inv == nil {
		t.Fatalf("invocation: not captured")
	}
	if inv.Model != "gpt-4o-mini" {
		t.Fatalf("model: got %q", inv.Model)
	}
	if inv.MaxTokens != defaultJudgeMaxTokens {
		t.Fatalf("max tokens: got %d want %d", inv.MaxTokens, defaultJudgeMaxTokens)
	}
	if len(inv.Messages) != 1 || inv.Messages[0].Role != "user" {
		t.Fatalf("messages: got %#v", inv.Messages)
	}

	prompt := inv.Messages[0].Content
	for _, want := range []string{
		"helpful and accurate",
		"user: hi\nassistant: hello\n",
		"turn 2",
		`"Score: <number>"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestJudge_DefaultCriteria(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{reply: "Score: 70"}
	j := NewJudge(p, "")

	if _, err := j.JudgeMessage(context.Background(), evaluator.JudgeRequest{Message: "hi", Turn: 1}); err != nil {
		t.Fatalf("JudgeMessage: %v", err)
	}
	if !strings.Contains(p.lastInv.Messages[0].Content, "helpful, accurate") {
		t.Fatalf("prompt missing default criteria:\n%s", p.lastInv.Messages[0].Content)
	}
}

func TestJudge_ProviderError(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{err: errors.New("boom")}
	j := NewJudge(p, "")

	_, err := j.JudgeMessage(context.Background(), evaluator.JudgeRequest{Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "llm: judge: boom") {
		t.Fatalf("error: got %v", err)
	}
}

func TestJudge_EmptyReply(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{reply: ""}
	j := NewJudge(p, "")

	_, err := j.JudgeMessage(context.Background(), evaluator.JudgeRequest{Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "empty reply") {
		t.Fatalf("error: got %v", err)
	}
}

func TestJudge_NilProvider(t *testing.T) {
	t.Parallel()

	j := NewJudge(nil, "")
	if _, err := j.JudgeMessage(context.Background(), evaluator.JudgeRequest{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJudge_SatisfiesEvaluatorContract(t *testing.T) {
	t.Parallel()

	var _ evaluator.Judge = NewJudge(&scriptedProvider{reply: "Score: 50"}, "")
}
