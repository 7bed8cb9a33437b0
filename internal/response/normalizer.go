package response

// Normalizer converts one provider API shape into the two canonical
// forms. Normalizers are total: any Raw value, including the absent
// one, yields a well-formed shape with non-nil slices.
type Normalizer interface {
	Single(raw Raw) SingleResponse
	Conversation(raw Raw) Conversation
}

var normalizers = map[APIType]Normalizer{
	APIChatCompletion:    chatCompletionNormalizer{},
	APIResponses:         responseAPINormalizer{},
	APIAssistants:        assistantsNormalizer{},
	APIAnthropicMessages: anthropicNormalizer{},
}

// ForAPI returns the normalizer for an API type. Unknown types get
// chat completion semantics, mirroring the classifier fallback.
func ForAPI(api APIType) Normalizer {
	if n, ok := normalizers[api]; ok {
		return n
	}
	return chatCompletionNormalizer{}
}
