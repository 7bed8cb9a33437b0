package response

import "strings"

// assistantsNormalizer handles OpenAI Assistants API payloads: the
// thread messages plus the run steps that produced them.
type assistantsNormalizer struct{}

// stepToolCall pairs a run step tool call with its enclosing step so
// step-level status stays reachable.
type stepToolCall struct {
	step map[string]any
	call map[string]any
}

func (n assistantsNormalizer) Single(raw Raw) SingleResponse {
	resp := emptySingle()

	switch raw.Kind {
	case RawKindText:
		resp.Text = raw.Text
		return resp
	case RawKindObject:
	default:
		return resp
	}

	conv := n.Conversation(raw)

	var texts []string
	for _, m := range conv.AssistantMessages() {
		if m.Content != "" {
			texts = append(texts, m.Content)
		}
	}
	resp.Text = strings.Join(texts, "\n")
	resp.ToolCalls = conv.AllToolCalls()
	resp.Metadata["message_count"] = len(conv.Messages)
	return resp
}

func (assistantsNormalizer) Conversation(raw Raw) Conversation {
	conv := emptyConversation()

	switch raw.Kind {
	case RawKindText:
		conv.Messages = append(conv.Messages, Message{
			Role:      RoleAssistant,
			Content:   raw.Text,
			ToolCalls: []ToolCall{},
			Turn:      1,
		})
		return conv
	case RawKindObject:
	default:
		return conv
	}

	obj := raw.Object

	msgs, _ := sliceField(obj, "messages")
	for i, v := range msgs {
		m, ok := asMap(v)
		if !ok {
			continue
		}
		role := stringField(m, "role")
		if role == "" {
			role = RoleAssistant
		}
		conv.Messages = append(conv.Messages, Message{
			Role:      role,
			Content:   assistantContent(m),
			ToolCalls: chatToolCalls(m),
			Turn:      i + 1,
		})
	}

	steps, _ := sliceField(obj, "run_steps")
	stepCalls := runStepToolCalls(steps)

	outputs := make(map[string]string)
	for _, sc := range stepCalls {
		if stringField(sc.call, "type") != "function" {
			continue
		}
		id := callID(sc.call)
		if id == "" {
			continue
		}
		if fn, ok := mapField(sc.call, "function"); ok {
			if out := stringField(fn, "output"); out != "" {
				outputs[id] = out
			}
		}
	}

	// Tool usage joins the calls recorded on messages with the
	// outputs reported by run steps, matched by call ID.
	seen := make(map[string]struct{})
	for _, msg := range conv.Messages {
		for _, call := range msg.ToolCalls {
			if out, ok := outputs[call.ID]; ok && call.Output == "" {
				call.Output = out
			}
			if call.ID != "" {
				seen[call.ID] = struct{}{}
			}
			conv.ToolUsage = append(conv.ToolUsage, call)
		}
	}

	for _, sc := range stepCalls {
		switch stringField(sc.call, "type") {
		case "function":
			id := callID(sc.call)
			if id != "" {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
			}
			fn, _ := mapField(sc.call, "function")
			conv.ToolUsage = append(conv.ToolUsage, ToolCall{
				ID:        id,
				Type:      "function",
				Name:      stringField(fn, "name"),
				Arguments: parseArguments(fn["arguments"]),
				Output:    stringField(fn, "output"),
			})
		case "file_search":
			conv.FileSearches = append(conv.FileSearches, stepFileSearch(sc))
		case "code_interpreter":
			conv.CodeRuns = append(conv.CodeRuns, stepCodeRun(sc))
		}
	}

	// Some payloads report file searches as a flat list on the step
	// instead of a tool call entry.
	for _, v := range steps {
		step, ok := asMap(v)
		if !ok {
			continue
		}
		results, ok := sliceField(step, "file_search_results")
		if !ok {
			continue
		}
		for _, r := range results {
			entry, ok := asMap(r)
			if !ok {
				continue
			}
			conv.FileSearches = append(conv.FileSearches, flatFileSearch(step, entry))
		}
	}
	return conv
}

// assistantContent extracts message text from either a plain string
// or the Assistants block list form.
func assistantContent(msg map[string]any) string {
	if s, ok := msg["content"].(string); ok {
		return s
	}
	blocks, ok := sliceField(msg, "content")
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, v := range blocks {
		block, ok := asMap(v)
		if !ok {
			continue
		}
		if stringField(block, "type") != "text" {
			continue
		}
		if inner, ok := mapField(block, "text"); ok {
			b.WriteString(stringField(inner, "value"))
		} else {
			b.WriteString(stringField(block, "text"))
		}
	}
	return b.String()
}

func runStepToolCalls(steps []any) []stepToolCall {
	var out []stepToolCall
	for _, v := range steps {
		step, ok := asMap(v)
		if !ok {
			continue
		}
		details, ok := mapField(step, "step_details")
		if !ok {
			continue
		}
		calls, ok := sliceField(details, "tool_calls")
		if !ok {
			continue
		}
		for _, c := range calls {
			call, ok := asMap(c)
			if !ok {
				continue
			}
			out = append(out, stepToolCall{step: step, call: call})
		}
	}
	return out
}

func callID(call map[string]any) string {
	if id := stringField(call, "call_id"); id != "" {
		return id
	}
	return stringField(call, "id")
}

func stepFileSearch(sc stepToolCall) FileSearchResult {
	fs := FileSearchResult{
		CallID: stringField(sc.call, "id"),
		Status: stringField(sc.step, "status"),
		Files:  []string{},
		Scores: []float64{},
	}

	details, ok := mapField(sc.call, "file_search")
	if !ok {
		return fs
	}
	fs.Query = stringField(details, "query")

	results, _ := sliceField(details, "results")
	for _, r := range results {
		m, ok := asMap(r)
		if !ok {
			continue
		}
		name := stringField(m, "file_name")
		if name == "" {
			name = stringField(m, "filename")
		}
		score, _ := floatField(m, "score")
		fs.Files = append(fs.Files, name)
		fs.Scores = append(fs.Scores, score)
	}
	return fs
}

func stepCodeRun(sc stepToolCall) CodeInterpreterResult {
	run := CodeInterpreterResult{
		CallID:       stringField(sc.call, "id"),
		Status:       stringField(sc.step, "status"),
		FilesCreated: []string{},
	}

	details, ok := mapField(sc.call, "code_interpreter")
	if !ok {
		return run
	}
	run.Code = stringField(details, "input")
	run.Language = stringField(details, "language")

	var out strings.Builder
	outputs, _ := sliceField(details, "outputs")
	for _, o := range outputs {
		m, ok := asMap(o)
		if !ok {
			continue
		}
		switch stringField(m, "type") {
		case "logs":
			out.WriteString(stringField(m, "logs"))
		case "image":
			if img, ok := mapField(m, "image"); ok {
				if id := stringField(img, "file_id"); id != "" {
					run.FilesCreated = append(run.FilesCreated, id)
				}
			}
		}
	}
	run.Output = out.String()
	return run
}

func flatFileSearch(step, entry map[string]any) FileSearchResult {
	fs := FileSearchResult{
		CallID: stringField(entry, "call_id"),
		Status: stringField(step, "status"),
		Query:  stringField(entry, "query"),
		Files:  []string{},
		Scores: []float64{},
	}
	if fs.CallID == "" {
		fs.CallID = stringField(step, "id")
	}

	fs.Files = append(fs.Files, stringSliceField(entry, "files")...)
	if scores, ok := sliceField(entry, "scores"); ok {
		for _, s := range scores {
			if f, ok := s.(float64); ok {
				fs.Scores = append(fs.Scores, f)
			}
		}
	}
	if name := stringField(entry, "file_name"); name != "" {
		fs.Files = append(fs.Files, name)
		if score, ok := floatField(entry, "score"); ok {
			fs.Scores = append(fs.Scores, score)
		}
	}
	return fs
}
