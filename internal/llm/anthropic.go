package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey string, baseURL string, model string) *AnthropicProvider {
	opts := make([]option.RequestOption, 0, 2)
	if key := strings.TrimSpace(apiKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(sdkBaseURL(base)))
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultAnthropicModel
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		client: &client,
		model:  m,
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) APIType() response.APIType {
	return response.APIAnthropicMessages
}

func (p *AnthropicProvider) Invoke(ctx context.Context, inv *Invocation) (*RawResult, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: anthropic: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: anthropic: nil context")
	}
	if inv == nil {
		return nil, errors.New("llm: anthropic: nil invocation")
	}
	if len(inv.Messages) == 0 {
		return nil, errors.New("llm: anthropic: no messages")
	}

	params := p.buildParams(inv)

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic: %w", err)
	}

	payload, err := marshalPayload(msg)
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic: encode response: %w", err)
	}

	return &RawResult{
		Payload:      payload,
		LatencyMs:    latency,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (p *AnthropicProvider) buildParams(inv *Invocation) anthropic.MessageNewParams {
	maxTokens := inv.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	model := strings.TrimSpace(inv.Model)
	if model == "" {
		model = p.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(inv.Messages),
	}

	if system := strings.TrimSpace(inv.System); system != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: system,
			Type: "text",
		}}
	}
	if inv.Temperature != 0 {
		params.Temperature = param.NewOpt(inv.Temperature)
	}
	if len(inv.Tools) > 0 {
		params.Tools = toAnthropicTools(inv.Tools)
	}
	return params
}

// sdkBaseURL strips a trailing /v1 so configs can use the same form
// of base URL for both providers; the SDK appends the version itself.
func sdkBaseURL(base string) string {
	base = strings.TrimSpace(strings.TrimRight(base, "/"))
	if strings.HasSuffix(base, "/v1") {
		base = strings.TrimSuffix(base, "/v1")
	}
	return base
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, anthropic.MessageParam{
			Role: toAnthropicRole(m.Role),
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(m.Content),
			},
		})
	}
	return out
}

func toAnthropicRole(role string) anthropic.MessageParamRole {
	if strings.EqualFold(strings.TrimSpace(role), "assistant") {
		return anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParamRoleUser
}

func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			InputSchema: toAnthropicToolSchema(t.InputSchema),
		}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			tool.Description = param.NewOpt(desc)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func toAnthropicToolSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	out := anthropic.ToolInputSchemaParam{Type: "object"}
	if schema == nil {
		return out
	}

	if props, ok := schema["properties"]; ok {
		out.Properties = props
	}
	if required, ok := schema["required"]; ok {
		out.Required = toStringSlice(required)
	}

	extra := make(map[string]any)
	for k, v := range schema {
		if k == "properties" || k == "required" || k == "type" {
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		out.ExtraFields = extra
	}

	return out
}

func toStringSlice(v any) []string {
	switch value := v.(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
