package response

// Roles used in normalized messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// SingleResponse is the canonical single-turn shape: one model turn
// reduced to its text, tool calls, and provider metadata.
type SingleResponse struct {
	Text      string
	ToolCalls []ToolCall
	Metadata  map[string]any
}

// ToolCall is one function or tool invocation made by the model.
// Arguments are always a decoded map; Output is filled only by APIs
// that report tool results (assistants run steps).
type ToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments map[string]any
	Output    string
}

// Conversation is the canonical multi-turn shape. A single-turn
// exchange is represented uniformly as a one-message conversation.
type Conversation struct {
	Messages     []Message
	ToolUsage    []ToolCall
	FileSearches []FileSearchResult
	WebSearches  []WebSearchResult
	CodeRuns     []CodeInterpreterResult
}

// Message is one turn of a conversation.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
	Turn      int
}

// FileSearchResult is one file-search tool invocation. Files and
// Scores are index-aligned.
type FileSearchResult struct {
	CallID string
	Status string
	Query  string
	Files  []string
	Scores []float64
}

// WebSearchResult is one web-search tool invocation. Sources are the
// pages the search consulted; Citations are the pages the answer
// cites. Providers repeat the same citation list on every call, so
// consumers counting across calls must deduplicate by URL.
type WebSearchResult struct {
	CallID    string
	Status    string
	Query     string
	Sources   []WebSource
	Citations []WebSource
}

// WebSource is one consulted or cited web page.
type WebSource struct {
	Title   string
	URL     string
	Snippet string
}

// CodeInterpreterResult is one code-interpreter tool invocation.
type CodeInterpreterResult struct {
	CallID       string
	Status       string
	Code         string
	Language     string
	Output       string
	FilesCreated []string
}

// AssistantMessages returns the conversation's assistant-role messages.
func (c *Conversation) AssistantMessages() []Message {
	return c.messagesByRole(RoleAssistant)
}

// UserMessages returns the conversation's user-role messages.
func (c *Conversation) UserMessages() []Message {
	return c.messagesByRole(RoleUser)
}

func (c *Conversation) messagesByRole(role string) []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// AllToolCalls returns the union of message tool calls and tool usage,
// deduplicated by call ID. Calls without an ID are kept as-is.
func (c *Conversation) AllToolCalls() []ToolCall {
	seen := make(map[string]struct{})
	out := make([]ToolCall, 0, len(c.ToolUsage))

	add := func(call ToolCall) {
		if call.ID != "" {
			if _, ok := seen[call.ID]; ok {
				return
			}
			seen[call.ID] = struct{}{}
		}
		out = append(out, call)
	}

	for _, m := range c.Messages {
		for _, call := range m.ToolCalls {
			add(call)
		}
	}
	for _, call := range c.ToolUsage {
		add(call)
	}
	return out
}

func emptySingle() SingleResponse {
	return SingleResponse{
		ToolCalls: []ToolCall{},
		Metadata:  map[string]any{},
	}
}

func emptyConversation() Conversation {
	return Conversation{
		Messages:     []Message{},
		ToolUsage:    []ToolCall{},
		FileSearches: []FileSearchResult{},
		WebSearches:  []WebSearchResult{},
		CodeRuns:     []CodeInterpreterResult{},
	}
}
