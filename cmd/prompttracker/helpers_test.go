package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
)

const capitalPromptYAML = `
name: capital
description: capital city question
versions:
  - version: v1
    template: "What is the capital of {{country}}?"
  - version: v2
    template: "Name the capital city of {{country}}. Answer in one sentence."
`

const capitalsDatasetYAML = `
name: capitals
rows:
  - id: row-france
    variables:
      country: France
  - id: row-japan
    variables:
      country: Japan
`

const capitalTestV1YAML = `
name: capital check
mode: single_turn
testable:
  kind: prompt_version
  provider: openai
  prompt: capital
  version: v1
dataset: capitals
evaluators:
  - key: keyword
    options:
      keywords: [capital]
`

const capitalTestV2YAML = `
name: capital check
mode: single_turn
testable:
  kind: prompt_version
  provider: openai
  prompt: capital
  version: v2
dataset: capitals
evaluators:
  - key: keyword
    options:
      keywords: [capital]
`

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func seedWorkspace(t *testing.T, dir string) {
	t.Helper()
	writeFixture(t, filepath.Join(dir, "prompts", "capital.yaml"), capitalPromptYAML)
	writeFixture(t, filepath.Join(dir, "datasets", "capitals.yaml"), capitalsDatasetYAML)
	writeFixture(t, filepath.Join(dir, "tests", "capital-check-v1.yaml"), capitalTestV1YAML)
	writeFixture(t, filepath.Join(dir, "tests", "capital-check-v2.yaml"), capitalTestV2YAML)
}

// newWorkspaceState seeds a workspace in a temp dir and returns CLI
// state pointing at it. Provider keys are cleared so runs never reach
// a live API.
func newWorkspaceState(t *testing.T) (*cliState, string) {
	t.Helper()

	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "")

	dir := t.TempDir()
	seedWorkspace(t, dir)

	cfg := config.Default()
	cfg.Paths.Prompts = filepath.Join(dir, "prompts")
	cfg.Paths.Datasets = filepath.Join(dir, "datasets")
	cfg.Paths.Tests = filepath.Join(dir, "tests")
	cfg.Storage = config.StorageConfig{Type: "memory"}

	return &cliState{cfg: cfg, logger: zerolog.Nop()}, dir
}

func newTestCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func writeRecordedFile(t *testing.T, path string, payloads map[string]map[string]any) {
	t.Helper()

	b, err := json.Marshal(payloads)
	if err != nil {
		t.Fatalf("marshal recorded payloads: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}
