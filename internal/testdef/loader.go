package testdef

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// LoadFromFile loads and validates a test definition from a YAML file.
func LoadFromFile(path string) (*Test, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testdef: read %q: %w", path, err)
	}

	var t Test
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("testdef: parse %q: %w", path, err)
	}
	if err := Validate(&t); err != nil {
		return nil, fmt.Errorf("testdef: validate %q: %w", path, err)
	}
	EnsureID(&t)

	return &t, nil
}

// EnsureID assigns the test's stable identifier when the definition
// does not set one: the slugged test name, qualified by the prompt
// version under test so each version keeps its own run history.
func EnsureID(t *Test) {
	if t == nil || strings.TrimSpace(t.ID) != "" {
		return
	}
	id := strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(t.Name)), "-"))
	if v := strings.TrimSpace(t.Testable.PromptVersion); v != "" {
		id += "@" + v
	}
	t.ID = id
}

// LoadFromDir loads and validates all test definitions from a directory.
func LoadFromDir(dir string) ([]*Test, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("testdef: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	out := make([]*Test, 0, len(paths))
	for _, path := range paths {
		t, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Validate checks a test definition for consistency.
func Validate(t *Test) error {
	if t == nil {
		return fmt.Errorf("nil test")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("test: missing name")
	}
	switch t.Mode {
	case ModeSingleTurn, ModeConversational:
	default:
		return fmt.Errorf("test %s: invalid mode %q", t.Name, t.Mode)
	}
	if err := validateTestable(t.Name, t.Testable); err != nil {
		return err
	}
	if strings.TrimSpace(t.Dataset) == "" {
		return fmt.Errorf("test %s: missing dataset", t.Name)
	}
	if len(t.Evaluators) == 0 {
		return fmt.Errorf("test %s: no evaluators", t.Name)
	}

	for i, e := range t.Evaluators {
		if err := validateEvaluator(t.Name, i, e); err != nil {
			return err
		}
	}
	return nil
}

func validateTestable(testName string, testable Testable) error {
	switch testable.Kind {
	case KindPromptVersion:
		if strings.TrimSpace(testable.PromptName) == "" {
			return fmt.Errorf("test %s: testable: missing prompt", testName)
		}
	case KindAssistant:
		if strings.TrimSpace(testable.AssistantID) == "" {
			return fmt.Errorf("test %s: testable: missing assistant_id", testName)
		}
	default:
		return fmt.Errorf("test %s: testable: invalid kind %q", testName, testable.Kind)
	}
	return nil
}

func validateEvaluator(testName string, i int, e EvaluatorConfig) error {
	key := strings.TrimSpace(e.Key)
	if key == "" {
		return fmt.Errorf("test %s: evaluators[%d]: missing key", testName, i)
	}
	switch e.Mode {
	case "", EvalScored, EvalBinary:
	default:
		return fmt.Errorf("test %s: evaluators[%d] (%s): invalid mode %q", testName, i, key, e.Mode)
	}
	if e.Threshold < 0 || e.Threshold > 100 {
		return fmt.Errorf("test %s: evaluators[%d] (%s): threshold must be 0-100", testName, i, key)
	}
	if e.Mode == EvalScored && e.Threshold == 0 {
		return fmt.Errorf("test %s: evaluators[%d] (%s): scored mode requires a threshold", testName, i, key)
	}
	return nil
}

// Warnings reports config-time notices that do not block a run, such
// as a provider the classifier will silently default.
func Warnings(t *Test) []string {
	if t == nil {
		return nil
	}

	var out []string
	if !response.KnownProvider(t.Testable.Provider) {
		out = append(out, fmt.Sprintf("unknown provider %q classifies as %s",
			t.Testable.Provider, response.APIChatCompletion))
	}
	return out
}
