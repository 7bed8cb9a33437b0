package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads and validates a prompt definition from a YAML
// file.
func LoadFromFile(path string) (*Prompt, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read %q: %w", path, err)
	}

	var p Prompt
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("prompt: parse %q: %w", path, err)
	}
	if err := Validate(&p); err != nil {
		return nil, fmt.Errorf("prompt: validate %q: %w", path, err)
	}
	return &p, nil
}

// LoadFromDir loads all prompt definitions from a directory.
func LoadFromDir(dir string) ([]*Prompt, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: read dir %q: %w", dir, err)
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

	out := make([]*Prompt, 0, len(paths))
	for _, path := range paths {
		p, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Index maps prompts by name, rejecting duplicates.
func Index(prompts []*Prompt) (map[string]*Prompt, error) {
	out := make(map[string]*Prompt, len(prompts))
	for _, p := range prompts {
		if p == nil {
			return nil, fmt.Errorf("prompt: nil prompt")
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("prompt: prompt with empty name")
		}
		if _, ok := out[name]; ok {
			return nil, fmt.Errorf("prompt: duplicate prompt name %q", name)
		}
		out[name] = p
	}
	return out, nil
}

// Validate checks a prompt definition for consistency.
func Validate(p *Prompt) error {
	if p == nil {
		return fmt.Errorf("nil prompt")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("missing name")
	}
	if len(p.Versions) == 0 {
		return fmt.Errorf("no versions")
	}

	seen := make(map[string]struct{}, len(p.Versions))
	for i, v := range p.Versions {
		ver := strings.TrimSpace(v.Version)
		if ver == "" {
			return fmt.Errorf("versions[%d]: missing version", i)
		}
		if _, ok := seen[ver]; ok {
			return fmt.Errorf("versions[%d] (%s): duplicate version", i, ver)
		}
		seen[ver] = struct{}{}

		if strings.TrimSpace(v.Template) == "" {
			return fmt.Errorf("versions[%d] (%s): missing template", i, ver)
		}
		for j, decl := range v.Variables {
			if strings.TrimSpace(decl.Name) == "" {
				return fmt.Errorf("versions[%d] (%s): variables[%d]: missing name", i, ver, j)
			}
		}
		for j, tool := range v.Tools {
			if strings.TrimSpace(tool.Name) == "" {
				return fmt.Errorf("versions[%d] (%s): tools[%d]: missing name", i, ver, j)
			}
		}
	}
	return nil
}
