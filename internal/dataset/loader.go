package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads and validates a dataset from a YAML file.
func LoadFromFile(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}

	var d Dataset
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("dataset: parse %q: %w", path, err)
	}
	if err := Validate(&d); err != nil {
		return nil, fmt.Errorf("dataset: validate %q: %w", path, err)
	}

	return &d, nil
}

// LoadFromDir loads and validates all datasets from a directory.
func LoadFromDir(dir string) ([]*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read dir %q: %w", dir, err)
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

	out := make([]*Dataset, 0, len(paths))
	for _, path := range paths {
		d, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Index maps datasets by name, rejecting duplicates.
func Index(datasets []*Dataset) (map[string]*Dataset, error) {
	out := make(map[string]*Dataset, len(datasets))
	for _, d := range datasets {
		if d == nil {
			return nil, fmt.Errorf("dataset: nil dataset")
		}
		name := strings.TrimSpace(d.Name)
		if _, ok := out[name]; ok {
			return nil, fmt.Errorf("dataset: duplicate dataset name %q", name)
		}
		out[name] = d
	}
	return out, nil
}

// Validate checks a dataset for consistency.
func Validate(d *Dataset) error {
	if d == nil {
		return fmt.Errorf("nil dataset")
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("missing name")
	}
	if len(d.Rows) == 0 {
		return fmt.Errorf("no rows")
	}

	seen := make(map[string]struct{}, len(d.Rows))
	for i, r := range d.Rows {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return fmt.Errorf("rows[%d]: missing id", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("rows[%d] (%s): duplicate id", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
