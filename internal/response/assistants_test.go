package response

import "testing"

func TestAssistantsConversation(t *testing.T) {
	t.Parallel()

	raw := RawFromBytes([]byte(`{
		"messages": [
			{"role": "user", "content": "What is the weather?"},
			{"role": "assistant", "content": [{"type": "text", "text": {"value": "Let me check."}}],
			 "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Lyon\"}"}}]},
			{"role": "assistant", "content": [{"type": "text", "text": {"value": "It is sunny."}}]}
		],
		"run_steps": [{
			"id": "step_1",
			"status": "completed",
			"step_details": {
				"type": "tool_calls",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "get_weather", "arguments": "{\"city\":\"Lyon\"}", "output": "{\"temp\":28}"}
				}]
			}
		}]
	}`))

	conv := ForAPI(APIAssistants).Conversation(raw)
	if len(conv.Messages) != 3 {
		t.Fatalf("messages: got %d want 3", len(conv.Messages))
	}
	if conv.Messages[0].Role != RoleUser || conv.Messages[0].Turn != 1 {
		t.Fatalf("first message: got %+v", conv.Messages[0])
	}
	if conv.Messages[1].Content != "Let me check." {
		t.Fatalf("block content: got %q", conv.Messages[1].Content)
	}

	// The message tool call is joined with its run step output.
	if len(conv.ToolUsage) != 1 {
		t.Fatalf("tool usage: got %d want 1", len(conv.ToolUsage))
	}
	call := conv.ToolUsage[0]
	if call.ID != "call_1" || call.Name != "get_weather" {
		t.Fatalf("call: got %+v", call)
	}
	if call.Output != `{"temp":28}` {
		t.Fatalf("output: got %q", call.Output)
	}
	if city, _ := call.Arguments["city"].(string); city != "Lyon" {
		t.Fatalf("arguments: got %#v", call.Arguments)
	}
}

func TestAssistantsRunStepOnlyCall(t *testing.T) {
	t.Parallel()

	// A function call present only in run steps still lands in tool
	// usage, without duplicating joined calls.
	raw := RawFromBytes([]byte(`{
		"messages": [
			{"role": "assistant", "content": "done",
			 "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "first", "arguments": "{}"}}]}
		],
		"run_steps": [{
			"id": "step_1",
			"status": "completed",
			"step_details": {"type": "tool_calls", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "first", "arguments": "{}", "output": "ok"}},
				{"id": "call_2", "type": "function", "function": {"name": "second", "arguments": "{\"n\":1}"}}
			]}
		}]
	}`))

	conv := ForAPI(APIAssistants).Conversation(raw)
	if len(conv.ToolUsage) != 2 {
		t.Fatalf("tool usage: got %d want 2", len(conv.ToolUsage))
	}
	if conv.ToolUsage[0].Name != "first" || conv.ToolUsage[0].Output != "ok" {
		t.Fatalf("joined call: got %+v", conv.ToolUsage[0])
	}
	if conv.ToolUsage[1].Name != "second" || conv.ToolUsage[1].ID != "call_2" {
		t.Fatalf("step-only call: got %+v", conv.ToolUsage[1])
	}
}

func TestAssistantsFileSearch(t *testing.T) {
	t.Parallel()

	raw := RawFromBytes([]byte(`{
		"messages": [{"role": "assistant", "content": "see attached"}],
		"run_steps": [
			{
				"id": "step_1",
				"status": "completed",
				"step_details": {"type": "tool_calls", "tool_calls": [{
					"id": "fs_call_1",
					"type": "file_search",
					"file_search": {"results": [
						{"file_name": "handbook.pdf", "score": 0.88},
						{"file_name": "notes.txt", "score": 0.4}
					]}
				}]}
			},
			{
				"id": "step_2",
				"status": "completed",
				"file_search_results": [{"query": "vacation days", "files": ["handbook.pdf"], "scores": [0.88]}]
			}
		]
	}`))

	conv := ForAPI(APIAssistants).Conversation(raw)
	if len(conv.FileSearches) != 2 {
		t.Fatalf("file searches: got %d want 2", len(conv.FileSearches))
	}
	step := conv.FileSearches[0]
	if step.CallID != "fs_call_1" || len(step.Files) != 2 || step.Files[0] != "handbook.pdf" {
		t.Fatalf("step form: got %+v", step)
	}
	if len(step.Scores) != 2 || step.Scores[0] != 0.88 {
		t.Fatalf("step scores: got %#v", step.Scores)
	}
	flat := conv.FileSearches[1]
	if flat.Query != "vacation days" || len(flat.Files) != 1 {
		t.Fatalf("flat form: got %+v", flat)
	}
}

func TestAssistantsCodeInterpreter(t *testing.T) {
	t.Parallel()

	raw := RawFromBytes([]byte(`{
		"messages": [{"role": "assistant", "content": "computed"}],
		"run_steps": [{
			"id": "step_1",
			"status": "completed",
			"step_details": {"type": "tool_calls", "tool_calls": [{
				"id": "ci_call_1",
				"type": "code_interpreter",
				"code_interpreter": {
					"input": "import math\nprint(math.pi)",
					"outputs": [
						{"type": "logs", "logs": "3.141592653589793\n"},
						{"type": "image", "image": {"file_id": "file_plot_1"}}
					]
				}
			}]}
		}]
	}`))

	conv := ForAPI(APIAssistants).Conversation(raw)
	if len(conv.CodeRuns) != 1 {
		t.Fatalf("code runs: got %d want 1", len(conv.CodeRuns))
	}
	run := conv.CodeRuns[0]
	if run.CallID != "ci_call_1" || run.Status != "completed" {
		t.Fatalf("run: got %+v", run)
	}
	if run.Code == "" || run.Output != "3.141592653589793\n" {
		t.Fatalf("run code/output: got %q %q", run.Code, run.Output)
	}
	if len(run.FilesCreated) != 1 || run.FilesCreated[0] != "file_plot_1" {
		t.Fatalf("files created: got %#v", run.FilesCreated)
	}
}

func TestAssistantsSingle(t *testing.T) {
	t.Parallel()

	raw := RawFromBytes([]byte(`{
		"messages": [
			{"role": "user", "content": "hello"},
			{"role": "assistant", "content": [{"type": "text", "text": {"value": "first"}}]},
			{"role": "assistant", "content": [{"type": "text", "text": {"value": "second"}}]}
		],
		"run_steps": []
	}`))

	got := ForAPI(APIAssistants).Single(raw)
	if got.Text != "first\nsecond" {
		t.Fatalf("text: got %q", got.Text)
	}
	if got.ToolCalls == nil || len(got.ToolCalls) != 0 {
		t.Fatalf("tool calls: got %#v", got.ToolCalls)
	}
	if got.Metadata["message_count"] != 3 {
		t.Fatalf("metadata: got %#v", got.Metadata)
	}
}
