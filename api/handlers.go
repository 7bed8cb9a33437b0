package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/dataset"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/llm"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/prompt"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/store"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

const runRequestTimeout = 10 * time.Minute

type runTestRequest struct {
	Concurrency int                       `json:"concurrency,omitempty"`
	Recorded    map[string]map[string]any `json:"recorded,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) promptsDir() string {
	if s != nil && s.config != nil && strings.TrimSpace(s.config.Paths.Prompts) != "" {
		return s.config.Paths.Prompts
	}
	return "prompts"
}

func (s *Server) datasetsDir() string {
	if s != nil && s.config != nil && strings.TrimSpace(s.config.Paths.Datasets) != "" {
		return s.config.Paths.Datasets
	}
	return "datasets"
}

func (s *Server) testsDir() string {
	if s != nil && s.config != nil && strings.TrimSpace(s.config.Paths.Tests) != "" {
		return s.config.Paths.Tests
	}
	return "tests"
}

func (s *Server) handleListPrompts(c *gin.Context) {
	prompts, err := prompt.LoadFromDir(s.promptsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	name := strings.TrimSpace(c.Query("name"))
	if name != "" {
		filtered := prompts[:0]
		for _, p := range prompts {
			if p == nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(p.Name), name) {
				filtered = append(filtered, p)
			}
		}
		prompts = filtered
	}

	sort.Slice(prompts, func(i, j int) bool {
		return strings.ToLower(prompts[i].Name) < strings.ToLower(prompts[j].Name)
	})

	c.JSON(http.StatusOK, prompts)
}

func (s *Server) handleGetPrompt(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing prompt name"))
		return
	}

	prompts, err := prompt.LoadFromDir(s.promptsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	p, err := findPromptByName(prompts, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("prompt %q not found", name))
			return
		}
		respondError(c, http.StatusConflict, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpsertPrompt(c *gin.Context) {
	var p prompt.Prompt
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := prompt.Validate(&p); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	fileName, err := yamlFileName(p.Name)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := os.MkdirAll(s.promptsDir(), 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	payload, err := yaml.Marshal(&p)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	path := filepath.Join(s.promptsDir(), fileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePrompt(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing prompt name"))
		return
	}

	fileName, err := yamlFileName(name)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	path := filepath.Join(s.promptsDir(), fileName)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			respondError(c, http.StatusNotFound, fmt.Errorf("prompt %q not found", name))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleListDatasets(c *gin.Context) {
	datasets, err := dataset.LoadFromDir(s.datasetsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	sort.Slice(datasets, func(i, j int) bool {
		return strings.ToLower(datasets[i].Name) < strings.ToLower(datasets[j].Name)
	})

	c.JSON(http.StatusOK, datasets)
}

func (s *Server) handleGetDataset(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing dataset name"))
		return
	}

	datasets, err := dataset.LoadFromDir(s.datasetsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	ds := findDatasetByName(datasets, name)
	if ds == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("dataset %q not found", name))
		return
	}

	c.JSON(http.StatusOK, ds)
}

func (s *Server) handleListTests(c *gin.Context) {
	tests, err := testdef.LoadFromDir(s.testsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	promptFilter := strings.TrimSpace(c.Query("prompt"))
	if promptFilter != "" {
		filtered := tests[:0]
		for _, t := range tests {
			if t == nil {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(t.Testable.PromptName), promptFilter) {
				filtered = append(filtered, t)
			}
		}
		tests = filtered
	}

	sort.Slice(tests, func(i, j int) bool {
		return strings.ToLower(tests[i].ID) < strings.ToLower(tests[j].ID)
	})

	c.JSON(http.StatusOK, tests)
}

func (s *Server) handleGetTest(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing test id"))
		return
	}

	tests, err := testdef.LoadFromDir(s.testsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	t := findTestByID(tests, id)
	if t == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("test %q not found", id))
		return
	}

	c.JSON(http.StatusOK, t)
}

func (s *Server) handleUpsertTest(c *gin.Context) {
	var t testdef.Test
	if err := c.ShouldBindJSON(&t); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := testdef.Validate(&t); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	testdef.EnsureID(&t)

	fileName, err := yamlFileName(t.ID)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := os.MkdirAll(s.testsDir(), 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	payload, err := yaml.Marshal(&t)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	path := filepath.Join(s.testsDir(), fileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

func (s *Server) handleRunTest(c *gin.Context) {
	if s == nil || s.store == nil || s.config == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing test id"))
		return
	}

	var req runTestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	tests, err := testdef.LoadFromDir(s.testsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	test := findTestByID(tests, id)
	if test == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("test %q not found", id))
		return
	}

	datasets, err := dataset.LoadFromDir(s.datasetsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	ds := findDatasetByName(datasets, test.Dataset)
	if ds == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("dataset %q not found", test.Dataset))
		return
	}

	prompts, err := prompt.LoadFromDir(s.promptsDir())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	promptIndex, err := prompt.Index(prompts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	h, err := s.buildHarness(promptIndex, req.Concurrency)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), runRequestTimeout)
	defer cancel()

	var result *runner.BatchResult
	if len(req.Recorded) > 0 {
		recorded := make(map[string]response.Raw, len(req.Recorded))
		for rowID, payload := range req.Recorded {
			recorded[rowID] = response.RawFromObject(payload)
		}
		result, err = h.RunRecorded(ctx, test, ds, recorded)
	} else {
		result, err = h.RunTest(ctx, test, ds)
	}
	if err != nil {
		if result != nil {
			// The batch ran; persisting it did not.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
			return
		}
		respondError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleTestHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing test id"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.TestRunHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	filter := store.RunFilter{
		TestID: strings.TrimSpace(c.Query("test")),
		Status: strings.TrimSpace(c.Query("status")),
		Since:  since,
		Until:  until,
		Limit:  limit,
	}

	runs, err := s.store.ListTestRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	run, err := s.store.GetTestRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	evals, err := s.store.GetEvaluations(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	run.Evaluations = evals

	c.JSON(http.StatusOK, run)
}

func (s *Server) handleCompareVersions(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	testName := strings.TrimSpace(c.Query("test"))
	v1 := strings.TrimSpace(c.Query("v1"))
	v2 := strings.TrimSpace(c.Query("v2"))
	if testName == "" || v1 == "" || v2 == "" {
		respondError(c, http.StatusBadRequest, errors.New("test, v1, and v2 are required"))
		return
	}

	cmp, err := s.store.CompareVersions(c.Request.Context(), testName, v1, v2)
	if err != nil {
		if strings.Contains(err.Error(), "no runs") {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, cmp)
}

// buildHarness assembles the execution stack for one run request from
// the server config. Providers and the judge come from config so key
// rotation needs no restart.
func (s *Server) buildHarness(prompts map[string]*prompt.Prompt, concurrency int) (*runner.Harness, error) {
	providers, err := llm.NewRegistryFromConfig(s.config)
	if err != nil {
		return nil, err
	}
	judge, err := llm.JudgeFromConfig(s.config, providers)
	if err != nil {
		return nil, err
	}
	var evalJudge evaluator.Judge
	if judge != nil {
		evalJudge = judge
	}

	if concurrency <= 0 {
		concurrency = s.config.Runner.Concurrency
	}

	return runner.NewHarness(runner.HarnessConfig{
		Providers:   providers,
		Registry:    evaluator.NewRegistry(evalJudge),
		Store:       s.store,
		Prompts:     prompts,
		Logger:      s.logger,
		Concurrency: concurrency,
		Timeout:     s.config.Runner.Timeout,
		MaxTokens:   s.config.Runner.MaxTokens,
	})
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or YYYY-MM-DD)", raw)
}

func yamlFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("missing name")
	}
	if strings.HasPrefix(name, ".") {
		return "", errors.New("invalid name")
	}
	if strings.ContainsAny(name, "/\\:*?\"<>|") {
		return "", errors.New("invalid name")
	}
	return name + ".yaml", nil
}

func findPromptByName(prompts []*prompt.Prompt, name string) (*prompt.Prompt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("missing prompt name")
	}

	var match *prompt.Prompt
	for _, p := range prompts {
		if p == nil {
			continue
		}
		if strings.TrimSpace(p.Name) != name {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("multiple prompts named %q", name)
		}
		match = p
	}
	if match == nil {
		return nil, sql.ErrNoRows
	}
	return match, nil
}

func findDatasetByName(datasets []*dataset.Dataset, name string) *dataset.Dataset {
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		if strings.TrimSpace(ds.Name) == name {
			return ds
		}
	}
	return nil
}

func findTestByID(tests []*testdef.Test, id string) *testdef.Test {
	for _, t := range tests {
		if t == nil {
			continue
		}
		if strings.TrimSpace(t.ID) == id {
			return t
		}
	}
	for _, t := range tests {
		if t == nil {
			continue
		}
		if strings.TrimSpace(t.Name) == id {
			return t
		}
	}
	return nil
}
