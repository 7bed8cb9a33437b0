package testdef

import (
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// Mode selects which canonical shape a test evaluates.
type Mode string

const (
	ModeSingleTurn     Mode = "single_turn"
	ModeConversational Mode = "conversational"
)

// EvalMode selects how an evaluator verdict is derived. Scored mode
// compares against a configured threshold; binary mode uses the
// evaluator's default.
type EvalMode string

const (
	EvalScored EvalMode = "scored"
	EvalBinary EvalMode = "binary"
)

// TestableKind discriminates what a test exercises.
type TestableKind string

const (
	KindPromptVersion TestableKind = "prompt_version"
	KindAssistant     TestableKind = "assistant"
)

// Testable describes the prompt version or assistant under test.
type Testable struct {
	Kind          TestableKind   `yaml:"kind"`
	Provider      string         `yaml:"provider,omitempty"`
	API           string         `yaml:"api,omitempty"`
	Model         string         `yaml:"model,omitempty"`
	ModelConfig   map[string]any `yaml:"model_config,omitempty"`
	Instructions  string         `yaml:"instructions,omitempty"`
	PromptName    string         `yaml:"prompt,omitempty"`  // prompt_version kind
	PromptVersion string         `yaml:"version,omitempty"` // prompt_version kind
	AssistantID   string         `yaml:"assistant_id,omitempty"`
}

// APIType classifies the testable by its provider configuration.
func (t Testable) APIType() response.APIType {
	return response.Classify(response.Target{
		Provider:  t.Provider,
		API:       t.API,
		Assistant: t.Kind == KindAssistant || t.AssistantID != "",
	})
}

// EvaluatorConfig attaches one evaluator to a test.
type EvaluatorConfig struct {
	Key       string         `yaml:"key"`
	Mode      EvalMode       `yaml:"mode,omitempty"` // empty means binary
	Threshold float64        `yaml:"threshold,omitempty"`
	Options   map[string]any `yaml:"options,omitempty"`
	Enabled   *bool          `yaml:"enabled,omitempty"` // nil means enabled
}

// IsEnabled reports whether the config participates in runs.
func (c EvaluatorConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IsScored reports whether the config uses scored mode.
func (c EvaluatorConfig) IsScored() bool {
	return c.Mode == EvalScored
}

// Test binds a testable, a dataset, and an evaluator set.
type Test struct {
	ID          string            `yaml:"id,omitempty"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Mode        Mode              `yaml:"mode"`
	Testable    Testable          `yaml:"testable"`
	Dataset     string            `yaml:"dataset"`
	Evaluators  []EvaluatorConfig `yaml:"evaluators"`
}

// EnabledEvaluators returns the evaluator configs that participate in
// runs.
func (t *Test) EnabledEvaluators() []EvaluatorConfig {
	out := make([]EvaluatorConfig, 0, len(t.Evaluators))
	for _, e := range t.Evaluators {
		if e.IsEnabled() {
			out = append(out, e)
		}
	}
	return out
}
