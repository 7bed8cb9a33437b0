package response

import "strings"

// responseAPINormalizer handles OpenAI Response API payloads, which
// carry everything the model produced in one flat output array.
type responseAPINormalizer struct{}

func (responseAPINormalizer) Single(raw Raw) SingleResponse {
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
	for _, key := range []string{"id", "model", "status"} {
		if v := stringField(obj, key); v != "" {
			resp.Metadata[key] = v
		}
	}
	if usage, ok := mapField(obj, "usage"); ok {
		resp.Metadata["usage"] = usage
	}

	var text strings.Builder
	items, _ := sliceField(obj, "output")
	for _, v := range items {
		item, ok := asMap(v)
		if !ok {
			continue
		}
		switch stringField(item, "type") {
		case "message":
			text.WriteString(outputText(item))
		case "function_call":
			resp.ToolCalls = append(resp.ToolCalls, outputFunctionCall(item))
		}
	}
	resp.Text = text.String()
	return resp
}

func (responseAPINormalizer) Conversation(raw Raw) Conversation {
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

	var citations []WebSource
	turn := 0
	items, _ := sliceField(raw.Object, "output")
	for _, v := range items {
		item, ok := asMap(v)
		if !ok {
			continue
		}
		switch stringField(item, "type") {
		case "message":
			turn++
			role := stringField(item, "role")
			if role == "" {
				role = RoleAssistant
			}
			conv.Messages = append(conv.Messages, Message{
				Role:      role,
				Content:   outputText(item),
				ToolCalls: []ToolCall{},
				Turn:      turn,
			})
			citations = append(citations, messageCitations(item)...)
		case "function_call":
			conv.ToolUsage = append(conv.ToolUsage, outputFunctionCall(item))
		case "file_search_call":
			conv.FileSearches = append(conv.FileSearches, outputFileSearch(item))
		case "web_search_call":
			conv.WebSearches = append(conv.WebSearches, outputWebSearch(item))
		case "code_interpreter_call":
			conv.CodeRuns = append(conv.CodeRuns, outputCodeRun(item))
		}
	}

	// Citations arrive as url_citation annotations on the answer
	// message, not on the search call items, so every search entry
	// carries the full list. Consumers counting across entries must
	// deduplicate by URL.
	if len(citations) > 0 {
		for i := range conv.WebSearches {
			if len(conv.WebSearches[i].Citations) == 0 {
				conv.WebSearches[i].Citations = citations
			}
		}
	}
	return conv
}

// outputText concatenates the output_text parts of a message item.
func outputText(item map[string]any) string {
	parts, ok := sliceField(item, "content")
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, p := range parts {
		part, ok := asMap(p)
		if !ok {
			continue
		}
		if stringField(part, "type") == "output_text" {
			b.WriteString(stringField(part, "text"))
		}
	}
	return b.String()
}

func messageCitations(item map[string]any) []WebSource {
	parts, ok := sliceField(item, "content")
	if !ok {
		return nil
	}

	var out []WebSource
	for _, p := range parts {
		part, ok := asMap(p)
		if !ok {
			continue
		}
		annotations, ok := sliceField(part, "annotations")
		if !ok {
			continue
		}
		for _, a := range annotations {
			ann, ok := asMap(a)
			if !ok || stringField(ann, "type") != "url_citation" {
				continue
			}
			out = append(out, WebSource{
				Title: stringField(ann, "title"),
				URL:   stringField(ann, "url"),
			})
		}
	}
	return out
}

func outputFunctionCall(item map[string]any) ToolCall {
	id := stringField(item, "call_id")
	if id == "" {
		id = stringField(item, "id")
	}
	return ToolCall{
		ID:        id,
		Type:      "function",
		Name:      stringField(item, "name"),
		Arguments: parseArguments(item["arguments"]),
	}
}

func outputFileSearch(item map[string]any) FileSearchResult {
	fs := FileSearchResult{
		CallID: stringField(item, "id"),
		Status: stringField(item, "status"),
		Query:  searchQuery(item),
		Files:  []string{},
		Scores: []float64{},
	}

	results, _ := sliceField(item, "results")
	for _, r := range results {
		m, ok := asMap(r)
		if !ok {
			continue
		}
		name := stringField(m, "filename")
		if name == "" {
			name = stringField(m, "file_name")
		}
		score, _ := floatField(m, "score")
		fs.Files = append(fs.Files, name)
		fs.Scores = append(fs.Scores, score)
	}
	return fs
}

func outputWebSearch(item map[string]any) WebSearchResult {
	ws := WebSearchResult{
		CallID:    stringField(item, "id"),
		Status:    stringField(item, "status"),
		Sources:   []WebSource{},
		Citations: []WebSource{},
	}

	if action, ok := mapField(item, "action"); ok {
		ws.Query = stringField(action, "query")
		ws.Sources = append(ws.Sources, webSourceList(action, "sources")...)
	}
	ws.Citations = append(ws.Citations, webSourceList(item, "citations")...)
	return ws
}

func webSourceList(m map[string]any, key string) []WebSource {
	items, ok := sliceField(m, key)
	if !ok {
		return nil
	}

	out := make([]WebSource, 0, len(items))
	for _, v := range items {
		s, ok := asMap(v)
		if !ok {
			continue
		}
		out = append(out, WebSource{
			Title:   stringField(s, "title"),
			URL:     stringField(s, "url"),
			Snippet: stringField(s, "snippet"),
		})
	}
	return out
}

func outputCodeRun(item map[string]any) CodeInterpreterResult {
	run := CodeInterpreterResult{
		CallID:       stringField(item, "id"),
		Status:       stringField(item, "status"),
		Code:         stringField(item, "code"),
		Language:     stringField(item, "language"),
		FilesCreated: []string{},
	}

	var out strings.Builder
	outputs, _ := sliceField(item, "outputs")
	for _, o := range outputs {
		m, ok := asMap(o)
		if !ok {
			continue
		}
		switch stringField(m, "type") {
		case "logs":
			out.WriteString(stringField(m, "logs"))
		case "image":
			if id := stringField(m, "file_id"); id != "" {
				run.FilesCreated = append(run.FilesCreated, id)
			} else if url := stringField(m, "url"); url != "" {
				run.FilesCreated = append(run.FilesCreated, url)
			}
		case "files":
			files, _ := sliceField(m, "files")
			for _, f := range files {
				fm, ok := asMap(f)
				if !ok {
					continue
				}
				if name := stringField(fm, "filename"); name != "" {
					run.FilesCreated = append(run.FilesCreated, name)
				} else if id := stringField(fm, "file_id"); id != "" {
					run.FilesCreated = append(run.FilesCreated, id)
				}
			}
		}
	}
	run.Output = out.String()

	run.FilesCreated = append(run.FilesCreated, stringSliceField(item, "files_created")...)
	return run
}

// searchQuery finds the query of a search call item, which providers
// place either on the item, under its action, or as a queries list.
func searchQuery(item map[string]any) string {
	if q := stringField(item, "query"); q != "" {
		return q
	}
	if action, ok := mapField(item, "action"); ok {
		if q := stringField(action, "query"); q != "" {
			return q
		}
	}
	if queries, ok := sliceField(item, "queries"); ok && len(queries) > 0 {
		if q, ok := queries[0].(string); ok {
			return q
		}
	}
	return ""
}
