package response

import "testing"

func TestForAPI(t *testing.T) {
	t.Parallel()

	for _, api := range []APIType{APIChatCompletion, APIResponses, APIAssistants, APIAnthropicMessages} {
		if ForAPI(api) == nil {
			t.Fatalf("ForAPI(%q) = nil", api)
		}
	}

	// Unknown API types normalize like chat completions.
	n := ForAPI(APIType("made_up"))
	got := n.Single(RawFromBytes([]byte(`{"choices":[{"message":{"content":"fallback"}}]}`)))
	if got.Text != "fallback" {
		t.Fatalf("fallback: got %q", got.Text)
	}
}

func TestNormalizersShapeInvariants(t *testing.T) {
	t.Parallel()

	raws := map[string]Raw{
		"Empty":  {},
		"Text":   RawFromText("plain"),
		"Object": RawFromObject(map[string]any{"unexpected": true}),
	}

	for _, api := range []APIType{APIChatCompletion, APIResponses, APIAssistants, APIAnthropicMessages} {
		n := ForAPI(api)
		for name, raw := range raws {
			single := n.Single(raw)
			if single.ToolCalls == nil {
				t.Fatalf("%s/%s: single tool calls nil", api, name)
			}
			if single.Metadata == nil {
				t.Fatalf("%s/%s: single metadata nil", api, name)
			}

			conv := n.Conversation(raw)
			if conv.Messages == nil || conv.ToolUsage == nil {
				t.Fatalf("%s/%s: conversation messages/tool usage nil", api, name)
			}
			if conv.FileSearches == nil || conv.WebSearches == nil || conv.CodeRuns == nil {
				t.Fatalf("%s/%s: conversation result slices nil", api, name)
			}
			for _, m := range conv.Messages {
				if m.ToolCalls == nil {
					t.Fatalf("%s/%s: message tool calls nil", api, name)
				}
			}
		}
	}
}

func TestConversationHelpers(t *testing.T) {
	t.Parallel()

	conv := Conversation{
		Messages: []Message{
			{Role: RoleUser, Content: "q", Turn: 1},
			{Role: RoleAssistant, Content: "a", Turn: 2, ToolCalls: []ToolCall{{ID: "call_1", Name: "f"}}},
			{Role: RoleAssistant, Content: "b", Turn: 3},
		},
		ToolUsage: []ToolCall{
			{ID: "call_1", Name: "f", Output: "joined"},
			{ID: "call_2", Name: "g"},
			{Name: "anonymous"},
		},
	}

	if got := len(conv.AssistantMessages()); got != 2 {
		t.Fatalf("assistant messages: got %d want 2", got)
	}
	if got := len(conv.UserMessages()); got != 1 {
		t.Fatalf("user messages: got %d want 1", got)
	}

	all := conv.AllToolCalls()
	if len(all) != 3 {
		t.Fatalf("all tool calls: got %d want 3", len(all))
	}
	// The message copy of call_1 wins over the usage copy.
	if all[0].ID != "call_1" || all[0].Output != "" {
		t.Fatalf("dedup order: got %+v", all[0])
	}
}
