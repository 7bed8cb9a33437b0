package llm

import (
	"context"
	"encoding/json"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// Provider executes one model invocation against a single provider API
// and hands back the wire payload untouched. Normalizing the payload is
// the response package's job, so the rest of the system exercises the
// same code paths for live calls and recorded fixtures.
type Provider interface {
	Name() string
	APIType() response.APIType
	Invoke(ctx context.Context, inv *Invocation) (*RawResult, error)
}

// Message is one input turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a function tool exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Invocation is a provider-agnostic model call. Model overrides the
// provider's configured default when set.
type Invocation struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// RawResult is the provider's response still in wire shape, plus the
// call metadata the harness records.
type RawResult struct {
	Payload      response.Raw
	LatencyMs    int64
	InputTokens  int
	OutputTokens int
}

// marshalPayload round-trips an SDK response through JSON so the
// normalizers see the same map shapes the wire carries.
func marshalPayload(v any) (response.Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return response.Raw{}, err
	}
	return response.RawFromBytes(b), nil
}
