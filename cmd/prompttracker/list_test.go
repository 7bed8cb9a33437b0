package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
)

func TestListCommands(t *testing.T) {
	st, _ := newWorkspaceState(t)

	var out bytes.Buffer

	prompts := newListPromptsCmd(st)
	prompts.SetOut(&out)
	if err := prompts.RunE(prompts, nil); err != nil {
		t.Fatalf("list prompts: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "NAME") || !strings.Contains(got, "capital") {
		t.Fatalf("list prompts output: %q", got)
	}
	if !strings.Contains(got, "v2") {
		t.Fatalf("expected latest version in output: %q", got)
	}

	out.Reset()
	datasets := newListDatasetsCmd(st)
	datasets.SetOut(&out)
	if err := datasets.RunE(datasets, nil); err != nil {
		t.Fatalf("list datasets: %v", err)
	}
	got = out.String()
	if !strings.Contains(got, "ROWS") || !strings.Contains(got, "capitals") {
		t.Fatalf("list datasets output: %q", got)
	}

	out.Reset()
	tests := newListTestsCmd(st)
	tests.SetOut(&out)
	if err := tests.RunE(tests, nil); err != nil {
		t.Fatalf("list tests: %v", err)
	}
	got = out.String()
	if !strings.Contains(got, "ID") || !strings.Contains(got, "capital-check@v1") || !strings.Contains(got, "capital-check@v2") {
		t.Fatalf("list tests output: %q", got)
	}
	if !strings.Contains(got, "keyword") || !strings.Contains(got, "openai_chat_completion") {
		t.Fatalf("expected evaluator and api columns: %q", got)
	}
}

func TestListCommands_ErrorPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Prompts = filepath.Join(dir, "missing-prompts")
	cfg.Paths.Datasets = filepath.Join(dir, "missing-datasets")
	cfg.Paths.Tests = filepath.Join(dir, "missing-tests")
	st := &cliState{cfg: cfg, logger: zerolog.Nop()}

	var out bytes.Buffer

	prompts := newListPromptsCmd(st)
	prompts.SetOut(&out)
	if err := prompts.RunE(prompts, nil); err == nil {
		t.Fatalf("expected list prompts error")
	}

	datasets := newListDatasetsCmd(st)
	datasets.SetOut(&out)
	if err := datasets.RunE(datasets, nil); err == nil {
		t.Fatalf("expected list datasets error")
	}

	tests := newListTestsCmd(st)
	tests.SetOut(&out)
	if err := tests.RunE(tests, nil); err == nil {
		t.Fatalf("expected list tests error")
	}

	missing := newListPromptsCmd(&cliState{})
	if err := missing.RunE(missing, nil); err == nil || !strings.Contains(err.Error(), "missing config") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestListCmd_Wiring(t *testing.T) {
	cmd := newListCmd(&cliState{})
	if cmd == nil || len(cmd.Commands()) != 3 {
		t.Fatalf("cmd=%#v", cmd)
	}
	for _, c := range cmd.Commands() {
		if c.Args == nil {
			t.Fatalf("subcmd %q: expected args validator", c.Use)
		}
	}
	if err := cmd.Args(cmd, []string{"unexpected"}); err == nil {
		t.Fatalf("expected NoArgs to reject args")
	}
}
