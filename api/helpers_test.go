package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/store"
)

const capitalPromptYAML = `
name: capital
description: capital city question
versions:
  - version: v1
    template: "What is the capital of {{country}}?"
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

func newTestServer(t *testing.T) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("PROMPTTRACKER_API_KEY", "")
	t.Setenv("PROMPTTRACKER_DISABLE_AUTH", "true")
	t.Setenv("PROMPTTRACKER_CORS_ORIGINS", "")
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

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	s, err := NewServer(cfg, st, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
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
