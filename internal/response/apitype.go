package response

import "strings"

// APIType identifies which provider API shape a testable speaks and
// therefore which normalizer understands its raw responses.
type APIType string

const (
	APIChatCompletion    APIType = "openai_chat_completion"
	APIResponses         APIType = "openai_response_api"
	APIAssistants        APIType = "openai_assistants_api"
	APIAnthropicMessages APIType = "anthropic_messages"
)

// Target carries the configuration fields classification reads.
type Target struct {
	Provider  string
	API       string
	Assistant bool
}

// Classify maps a target's provider configuration to an APIType.
// First match wins; unknown providers (and the empty provider) fall
// back to chat completion semantics.
func Classify(t Target) APIType {
	provider := strings.ToLower(strings.TrimSpace(t.Provider))
	api := strings.ToLower(strings.TrimSpace(t.API))

	switch {
	case provider == "openai_responses" || api == "responses":
		return APIResponses
	case provider == "openai_assistants" || t.Assistant:
		return APIAssistants
	case provider == "anthropic":
		return APIAnthropicMessages
	default:
		return APIChatCompletion
	}
}

// KnownProvider reports whether a provider string is one the
// classifier recognizes, so validation can warn before the silent
// chat completion fallback kicks in at run time.
func KnownProvider(provider string) bool {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai", "openai_responses", "openai_assistants", "anthropic":
		return true
	default:
		return false
	}
}
