package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

func TestNormalizeOpenAIRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"system", openai.ChatMessageRoleSystem},
		{"user", openai.ChatMessageRoleUser},
		{"assistant", openai.ChatMessageRoleAssistant},
		{"tool", openai.ChatMessageRoleTool},
		{"developer", openai.ChatMessageRoleDeveloper},
		{"  USER ", openai.ChatMessageRoleUser},
		{"unknown", openai.ChatMessageRoleUser},
		{"", openai.ChatMessageRoleUser},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := normalizeOpenAIRole(tt.in); got != tt.want {
				t.Fatalf("normalizeOpenAIRole(%q): got %q want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpenAIHelpers(t *testing.T) {
	t.Parallel()

	if got := clampMaxTokens(-1); got != 0 {
		t.Fatalf("clampMaxTokens(-1): got %d want %d", got, 0)
	}
	if got := clampMaxTokens(3); got != 3 {
		t.Fatalf("clampMaxTokens(3): got %d want %d", got, 3)
	}

	if got := toOpenAITools(nil); got != nil {
		t.Fatalf("toOpenAITools(nil): expected nil")
	}

	tools := toOpenAITools([]ToolDefinition{
		{Name: " ", Description: "ignored"},
		{Name: " fn ", Description: " d ", InputSchema: nil},
	})
	if len(tools) != 1 {
		t.Fatalf("len(tools): got %d want %d", len(tools), 1)
	}
	if tools[0].Type != openai.ToolTypeFunction {
		t.Fatalf("tools[0].Type: got %q want %q", tools[0].Type, openai.ToolTypeFunction)
	}
	if tools[0].Function == nil || tools[0].Function.Name != "fn" {
		t.Fatalf("tools[0].Function: got %#v", tools[0].Function)
	}
	if tools[0].Function.Parameters == nil {
		t.Fatalf("tools[0].Function.Parameters: nil")
	}
}

func TestOpenAIProvider_Invoke_Errors(t *testing.T) {
	t.Parallel()

	var pnil *OpenAIProvider
	if _, err := pnil.Invoke(context.Background(), &Invocation{}); err == nil {
		t.Fatalf("Invoke(nil provider): expected error")
	}

	srvErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.Body.Close()
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srvErr.Close)

	p := NewOpenAIProvider("k", srvErr.URL+"/v1", "")
	if _, err := p.Invoke(nil, &Invocation{}); err == nil || !strings.Contains(err.Error(), "nil context") {
		t.Fatalf("Invoke(nil ctx): got %v", err)
	}
	if _, err := p.Invoke(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "nil invocation") {
		t.Fatalf("Invoke(nil invocation): got %v", err)
	}
	if _, err := p.Invoke(context.Background(), &Invocation{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err == nil || !strings.Contains(err.Error(), "llm: openai") {
		t.Fatalf("Invoke(http error): got %v", err)
	}
}

func TestOpenAIProvider_Invoke(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Body != nil {
			defer r.Body.Close()
		}
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:      "chatcmpl_1",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   openai.GPT4o,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				FinishReason: openai.FinishReasonStop,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: "hello",
					ToolCalls: []openai.ToolCall{{
						ID:   "call_1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "get_weather",
							Arguments: `{"city":"Paris"}`,
						},
					}},
				},
			}},
			Usage: openai.Usage{
				PromptTokens:     10,
				CompletionTokens: 20,
				TotalTokens:      30,
			},
		})
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider("k", srv.URL+"/v1", "gpt-4o")
	if p.APIType() != response.APIChatCompletion {
		t.Fatalf("APIType: got %q", p.APIType())
	}

	res, err := p.Invoke(context.Background(), &Invocation{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "weather in Paris?"}},
		Tools: []ToolDefinition{
			{Name: "get_weather", Description: "current weather"},
		},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path: got %q want %q", gotPath, "/v1/chat/completions")
	}

	body := string(gotBody)
	for _, want := range []string{`"role":"system"`, `"tool_choice":"auto"`, `"get_weather"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body missing %s:\n%s", want, body)
		}
	}

	if res.InputTokens != 10 || res.OutputTokens != 20 {
		t.Fatalf("tokens: got in=%d out=%d", res.InputTokens, res.OutputTokens)
	}
	if res.LatencyMs < 0 {
		t.Fatalf("latency: got %d", res.LatencyMs)
	}
	if res.Payload.Kind != response.RawKindObject {
		t.Fatalf("payload kind: got %v", res.Payload.Kind)
	}

	single := response.ForAPI(p.APIType()).Single(res.Payload)
	if single.Text != "hello" {
		t.Fatalf("normalized text: got %q", single.Text)
	}
	if len(single.ToolCalls) != 1 || single.ToolCalls[0].Name != "get_weather" {
		t.Fatalf("normalized tool calls: got %#v", single.ToolCalls)
	}
	if single.ToolCalls[0].Arguments["city"] != "Paris" {
		t.Fatalf("tool arguments: got %#v", single.ToolCalls[0].Arguments)
	}
}
