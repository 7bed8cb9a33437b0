package response

import "testing"

func TestChatCompletionSingle(t *testing.T) {
	t.Parallel()

	n := ForAPI(APIChatCompletion)

	{
		raw := RawFromBytes([]byte(`{"choices":[{"message":{"content":"Hi there"}}]}`))
		got := n.Single(raw)
		if got.Text != "Hi there" {
			t.Fatalf("text: got %q want %q", got.Text, "Hi there")
		}
		if got.ToolCalls == nil || len(got.ToolCalls) != 0 {
			t.Fatalf("tool calls: got %#v want empty non-nil", got.ToolCalls)
		}
		if got.Metadata == nil {
			t.Fatalf("metadata: nil")
		}
	}
	{
		raw := RawFromBytes([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"choices": [{
				"finish_reason": "tool_calls",
				"message": {
					"content": null,
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\",\"days\":3}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5}
		}`))
		got := n.Single(raw)
		if got.Text != "" {
			t.Fatalf("text: got %q want empty", got.Text)
		}
		if len(got.ToolCalls) != 1 {
			t.Fatalf("tool calls: got %d want 1", len(got.ToolCalls))
		}
		call := got.ToolCalls[0]
		if call.ID != "call_1" || call.Name != "get_weather" {
			t.Fatalf("call: got id=%q name=%q", call.ID, call.Name)
		}
		if city, _ := call.Arguments["city"].(string); city != "Paris" {
			t.Fatalf("arguments: got %#v", call.Arguments)
		}
		if days, _ := call.Arguments["days"].(float64); days != 3 {
			t.Fatalf("arguments: got %#v", call.Arguments)
		}
		if got.Metadata["model"] != "gpt-4o" || got.Metadata["finish_reason"] != "tool_calls" {
			t.Fatalf("metadata: got %#v", got.Metadata)
		}
	}
}

func TestChatCompletionMalformedArguments(t *testing.T) {
	t.Parallel()

	raw := RawFromBytes([]byte(`{"choices":[{"message":{"tool_calls":[{
		"id": "call_1",
		"type": "function",
		"function": {"name": "broken", "arguments": "{not json"}
	}]}}]}`))

	got := ForAPI(APIChatCompletion).Single(raw)
	if len(got.ToolCalls) != 1 {
		t.Fatalf("tool calls: got %d want 1", len(got.ToolCalls))
	}
	args := got.ToolCalls[0].Arguments
	if args == nil || len(args) != 0 {
		t.Fatalf("arguments: got %#v want empty map", args)
	}
}

func TestChatCompletionConversation(t *testing.T) {
	t.Parallel()

	n := ForAPI(APIChatCompletion)

	raw := RawFromBytes([]byte(`{"choices":[{"message":{
		"content": "done",
		"tool_calls": [{"id":"call_9","type":"function","function":{"name":"lookup","arguments":"{}"}}]
	}}]}`))

	conv := n.Conversation(raw)
	if len(conv.Messages) != 1 {
		t.Fatalf("messages: got %d want 1", len(conv.Messages))
	}
	msg := conv.Messages[0]
	if msg.Role != RoleAssistant || msg.Turn != 1 || msg.Content != "done" {
		t.Fatalf("message: got %+v", msg)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Name != "lookup" {
		t.Fatalf("message tool calls: got %#v", msg.ToolCalls)
	}
	if conv.ToolUsage == nil || conv.FileSearches == nil || conv.WebSearches == nil || conv.CodeRuns == nil {
		t.Fatalf("conversation slices must be non-nil")
	}
}

func TestChatCompletionEmptyAndText(t *testing.T) {
	t.Parallel()

	n := ForAPI(APIChatCompletion)

	{
		got := n.Single(Raw{})
		if got.Text != "" || got.ToolCalls == nil || len(got.ToolCalls) != 0 || got.Metadata == nil {
			t.Fatalf("empty single: got %+v", got)
		}
		conv := n.Conversation(Raw{})
		if len(conv.Messages) != 0 || conv.Messages == nil {
			t.Fatalf("empty conversation: got %+v", conv)
		}
	}
	{
		got := n.Single(RawFromText("plain"))
		if got.Text != "plain" || len(got.ToolCalls) != 0 {
			t.Fatalf("text single: got %+v", got)
		}
		conv := n.Conversation(RawFromText("plain"))
		if len(conv.Messages) != 1 || conv.Messages[0].Content != "plain" {
			t.Fatalf("text conversation: got %+v", conv)
		}
	}
}
