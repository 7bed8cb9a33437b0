package prompt

import (
	"fmt"
	"strings"
)

// Prompt is a named prompt with its version history. Versions are
// ordered oldest first; the last entry is the current one.
type Prompt struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Versions    []Version `yaml:"versions"`
}

// Version is one iteration of a prompt: the template text plus the
// provider and model settings it was authored against.
type Version struct {
	Version     string         `yaml:"version"`
	Template    string         `yaml:"template"`
	System      string         `yaml:"system,omitempty"`
	Variables   []Variable     `yaml:"variables,omitempty"`
	Tools       []Tool         `yaml:"tools,omitempty"`
	Provider    string         `yaml:"provider,omitempty"`
	API         string         `yaml:"api,omitempty"`
	Model       string         `yaml:"model,omitempty"`
	ModelConfig map[string]any `yaml:"model_config,omitempty"`
}

// Variable declares a template variable and its defaults.
type Variable struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Default  string `yaml:"default,omitempty"`
}

// Tool describes a tool available to a prompt version.
type Tool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	InputSchema map[string]any `yaml:"input_schema,omitempty"`
}

// Latest returns the newest version, or nil when there are none.
func (p *Prompt) Latest() *Version {
	if p == nil || len(p.Versions) == 0 {
		return nil
	}
	return &p.Versions[len(p.Versions)-1]
}

// FindVersion returns the named version. An empty name selects the
// latest.
func (p *Prompt) FindVersion(version string) (*Version, error) {
	if p == nil {
		return nil, fmt.Errorf("prompt: nil prompt")
	}
	version = strings.TrimSpace(version)
	if version == "" {
		v := p.Latest()
		if v == nil {
			return nil, fmt.Errorf("prompt: %s: no versions", p.Name)
		}
		return v, nil
	}
	for i := range p.Versions {
		if p.Versions[i].Version == version {
			return &p.Versions[i], nil
		}
	}
	return nil, fmt.Errorf("prompt: %s: unknown version %q", p.Name, version)
}
