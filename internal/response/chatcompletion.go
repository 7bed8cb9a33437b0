package response

// chatCompletionNormalizer handles OpenAI chat completion payloads.
type chatCompletionNormalizer struct{}

func (chatCompletionNormalizer) Single(raw Raw) SingleResponse {
	resp := emptySingle()

	switch raw.Kind {
	case RawKindText:
		resp.Text = raw.Text
		return resp
	case RawKindObject:
	default:
		return resp
	}

	obj := raw.Object
	if id := stringField(obj, "id"); id != "" {
		resp.Metadata["id"] = id
	}
	if model := stringField(obj, "model"); model != "" {
		resp.Metadata["model"] = model
	}
	if usage, ok := mapField(obj, "usage"); ok {
		resp.Metadata["usage"] = usage
	}

	choices, ok := sliceField(obj, "choices")
	if !ok || len(choices) == 0 {
		return resp
	}
	first, ok := asMap(choices[0])
	if !ok {
		return resp
	}
	if reason := stringField(first, "finish_reason"); reason != "" {
		resp.Metadata["finish_reason"] = reason
	}

	msg, ok := mapField(first, "message")
	if !ok {
		return resp
	}
	resp.Text = stringField(msg, "content")
	resp.ToolCalls = chatToolCalls(msg)
	return resp
}

// Conversation wraps the single response as a one-message assistant
// turn. The absent raw stays an empty conversation.
func (n chatCompletionNormalizer) Conversation(raw Raw) Conversation {
	conv := emptyConversation()
	if raw.IsEmpty() {
		return conv
	}

	single := n.Single(raw)
	conv.Messages = append(conv.Messages, Message{
		Role:      RoleAssistant,
		Content:   single.Text,
		ToolCalls: single.ToolCalls,
		Turn:      1,
	})
	return conv
}

func chatToolCalls(msg map[string]any) []ToolCall {
	items, ok := sliceField(msg, "tool_calls")
	if !ok {
		return []ToolCall{}
	}

	out := make([]ToolCall, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		call := ToolCall{
			ID:        stringField(m, "id"),
			Type:      stringField(m, "type"),
			Arguments: map[string]any{},
		}
		if fn, ok := mapField(m, "function"); ok {
			call.Name = stringField(fn, "name")
			call.Arguments = parseArguments(fn["arguments"])
		}
		out = append(out, call)
	}
	return out
}
