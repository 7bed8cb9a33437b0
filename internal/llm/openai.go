package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIProvider speaks the chat completion API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey string, baseURL string, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultOpenAIModel
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  m,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) APIType() response.APIType {
	return response.APIChatCompletion
}

func (p *OpenAIProvider) Invoke(ctx context.Context, inv *Invocation) (*RawResult, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: openai: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: openai: nil context")
	}
	if inv == nil {
		return nil, errors.New("llm: openai: nil invocation")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(inv.Messages)+1)
	if system := strings.TrimSpace(inv.System); system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range inv.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    normalizeOpenAIRole(m.Role),
			Content: m.Content,
		})
	}

	tools := toOpenAITools(inv.Tools)

	req := openai.ChatCompletionRequest{
		Model:       p.resolveModel(inv.Model),
		Messages:    msgs,
		MaxTokens:   clampMaxTokens(inv.MaxTokens),
		Temperature: float32(inv.Temperature),
		Tools:       tools,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("llm: openai: %w", err)
	}

	payload, err := marshalPayload(resp)
	if err != nil {
		return nil, fmt.Errorf("llm: openai: encode response: %w", err)
	}

	return &RawResult{
		Payload:      payload,
		LatencyMs:    latency,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) resolveModel(override string) string {
	if m := strings.TrimSpace(override); m != "" {
		return m
	}
	return p.model
}

func normalizeOpenAIRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleTool,
		openai.ChatMessageRoleDeveloper:
		return role
	default:
		return openai.ChatMessageRoleUser
	}
}

func clampMaxTokens(n int) int {
	if n <= 0 {
		return 0
	}
	return n
}

func toOpenAITools(in []ToolDefinition) []openai.Tool {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(in))
	for _, t := range in {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: strings.TrimSpace(t.Description),
				Parameters:  schema,
			},
		})
	}
	return out
}
