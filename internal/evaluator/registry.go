package evaluator

import (
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

// Kind is the evaluator family: which canonical shape it consumes.
type Kind string

const (
	KindSingle       Kind = "single_response"
	KindConversation Kind = "conversational"
)

// Definition describes one registered evaluator: its key, family, API
// compatibility, default pass threshold, and factory. Exactly one of
// NewSingle and NewConversation is set, matching Kind.
type Definition struct {
	Key              string
	Kind             Kind
	APIs             []response.APIType // nil means all APIs
	DefaultThreshold float64
	NewSingle        func(opts Options) (SingleScorer, error)
	NewConversation  func(opts Options) (ConversationScorer, error)
}

// CompatibleWith reports whether the definition supports an API type.
func (d Definition) CompatibleWith(api response.APIType) bool {
	if len(d.APIs) == 0 {
		return true
	}
	for _, a := range d.APIs {
		if a == api {
			return true
		}
	}
	return false
}

// Registry holds evaluator definitions in registration order.
type Registry struct {
	defs  []Definition
	byKey map[string]int
}

// NewRegistry builds the registry of built-in evaluators. The judge
// backs the conversation judge; it may be nil, in which case that
// evaluator reports a configuration error when constructed.
func NewRegistry(judge Judge) *Registry {
	r := &Registry{byKey: make(map[string]int)}
	for _, def := range builtinDefinitions(judge) {
		r.Register(def)
	}
	return r
}

// Register adds a definition. Definitions are static program
// configuration, so invalid ones are programmer errors.
func (r *Registry) Register(def Definition) {
	if r == nil {
		panic("evaluator: register on nil registry")
	}
	key := strings.TrimSpace(def.Key)
	if key == "" {
		panic("evaluator: definition has empty key")
	}
	if r.byKey == nil {
		r.byKey = make(map[string]int)
	}
	if _, ok := r.byKey[key]; ok {
		panic("evaluator: duplicate definition " + key)
	}
	switch def.Kind {
	case KindSingle:
		if def.NewSingle == nil {
			panic("evaluator: " + key + ": nil single factory")
		}
	case KindConversation:
		if def.NewConversation == nil {
			panic("evaluator: " + key + ": nil conversation factory")
		}
	default:
		panic("evaluator: " + key + ": invalid kind")
	}

	r.byKey[key] = len(r.defs)
	r.defs = append(r.defs, def)
}

// Get returns a definition by key.
func (r *Registry) Get(key string) (Definition, bool) {
	if r == nil || r.byKey == nil {
		return Definition{}, false
	}
	i, ok := r.byKey[strings.TrimSpace(key)]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// ForTest returns the definitions applicable to a test: family must
// match the test mode and the definition must support the API type.
// Order is registration order, so the filtered set is deterministic.
func (r *Registry) ForTest(mode testdef.Mode, api response.APIType) []Definition {
	if r == nil {
		return nil
	}

	want := KindSingle
	if mode == testdef.ModeConversational {
		want = KindConversation
	}

	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		if def.Kind != want {
			continue
		}
		if !def.CompatibleWith(api) {
			continue
		}
		out = append(out, def)
	}
	return out
}

// builtinDefinitions is the static evaluator table. Order here is the
// order ForTest returns.
func builtinDefinitions(judge Judge) []Definition {
	return []Definition{
		{
			Key:              "length",
			Kind:             KindSingle,
			DefaultThreshold: 100,
			NewSingle:        newLengthScorer,
		},
		{
			Key:              "keyword",
			Kind:             KindSingle,
			DefaultThreshold: 70,
			NewSingle:        newKeywordScorer,
		},
		{
			Key:              "exact_match",
			Kind:             KindSingle,
			DefaultThreshold: 100,
			NewSingle:        newExactMatchScorer,
		},
		{
			Key:              "pattern",
			Kind:             KindSingle,
			DefaultThreshold: 100,
			NewSingle:        newPatternScorer,
		},
		{
			Key:              "json_schema",
			Kind:             KindSingle,
			DefaultThreshold: 100,
			NewSingle:        newJSONSchemaScorer,
		},
		{
			Key:              "function_call",
			Kind:             KindConversation,
			DefaultThreshold: 70,
			NewConversation:  newFunctionCallScorer,
		},
		{
			Key:              "file_search",
			Kind:             KindConversation,
			APIs:             []response.APIType{response.APIAssistants},
			DefaultThreshold: 70,
			NewConversation:  newFileSearchScorer,
		},
		{
			Key:              "web_search",
			Kind:             KindConversation,
			APIs:             []response.APIType{response.APIResponses, response.APIAssistants},
			DefaultThreshold: 70,
			NewConversation:  newWebSearchScorer,
		},
		{
			Key:              "code_interpreter",
			Kind:             KindConversation,
			APIs:             []response.APIType{response.APIResponses, response.APIAssistants},
			DefaultThreshold: 70,
			NewConversation:  newCodeInterpreterScorer,
		},
		{
			Key:              "conversation_judge",
			Kind:             KindConversation,
			DefaultThreshold: 70,
			NewConversation:  newConversationJudgeScorer(judge),
		},
	}
}
