package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

const defaultJudgeMaxTokens = 512

const judgePromptTemplate = `You are an expert evaluator. Assess one assistant message from a conversation.

## Evaluation Criteria
{{.Criteria}}

## Full Conversation Transcript
{{.Transcript}}

## Assistant Message to Evaluate (turn {{.Turn}})
{{.Message}}

## Instructions
Rate the message from 0 to 100 against the criteria.
- 0: completely fails the criteria
- 100: fully meets the criteria

Reply with a line of the form "Score: <number>" followed by one sentence of reasoning.`

var judgePromptTmpl = template.Must(template.New("judge").Parse(judgePromptTemplate))

type judgePromptData struct {
	Criteria   string
	Transcript string
	Message    string
	Turn       int
}

// Judge adapts a Provider into the evaluator judge contract: it renders
// the judgment prompt, invokes the model, and returns the reply text for
// the evaluator to parse.
type Judge struct {
	provider  Provider
	model     string
	maxTokens int
}

func NewJudge(provider Provider, model string) *Judge {
	return &Judge{
		provider:  provider,
		model:     strings.TrimSpace(model),
		maxTokens: defaultJudgeMaxTokens,
	}
}

func (j *Judge) JudgeMessage(ctx context.Context, req evaluator.JudgeRequest) (string, error) {
	if j == nil || j.provider == nil {
		return "", errors.New("llm: judge: nil provider")
	}
	if ctx == nil {
		return "", errors.New("llm: judge: nil context")
	}

	criteria := strings.TrimSpace(req.Criteria)
	if criteria == "" {
		criteria = "The message is helpful, accurate, and responsive to the user."
	}

	var prompt bytes.Buffer
	if err := judgePromptTmpl.Execute(&prompt, judgePromptData{
		Criteria:   criteria,
		Transcript: req.Transcript,
		Message:    req.Message,
		Turn:       req.Turn,
	}); err != nil {
		return "", fmt.Errorf("llm: judge: render prompt: %w", err)
	}

	res, err := j.provider.Invoke(ctx, &Invocation{
		Model:     j.model,
		Messages:  []Message{{Role: response.RoleUser, Content: prompt.String()}},
		MaxTokens: j.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: judge: %w", err)
	}
	if res == nil {
		return "", errors.New("llm: judge: nil result")
	}

	single := response.ForAPI(j.provider.APIType()).Single(res.Payload)
	reply := strings.TrimSpace(single.Text)
	if reply == "" {
		return "", errors.New("llm: judge: empty reply")
	}
	return reply, nil
}
