package response

import "strings"

// anthropicNormalizer handles Anthropic Messages API payloads.
type anthropicNormalizer struct{}

func (anthropicNormalizer) Single(raw Raw) SingleResponse {
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
	for _, key := range []string{"id", "model", "stop_reason"} {
		if v := stringField(obj, key); v != "" {
			resp.Metadata[key] = v
		}
	}
	if usage, ok := mapField(obj, "usage"); ok {
		resp.Metadata["usage"] = usage
	}

	var text strings.Builder
	blocks, _ := sliceField(obj, "content")
	for _, v := range blocks {
		block, ok := asMap(v)
		if !ok {
			continue
		}
		switch stringField(block, "type") {
		case "text":
			text.WriteString(stringField(block, "text"))
		case "tool_use":
			args, _ := mapField(block, "input")
			if args == nil {
				args = map[string]any{}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        stringField(block, "id"),
				Type:      "tool_use",
				Name:      stringField(block, "name"),
				Arguments: args,
			})
		}
	}
	resp.Text = text.String()
	return resp
}

// Conversation wraps the single response as a one-message assistant
// turn, same as the chat completion shape.
func (n anthropicNormalizer) Conversation(raw Raw) Conversation {
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
