package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api/v1")
	apiKey := strings.TrimSpace(os.Getenv("PROMPTTRACKER_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("PROMPTTRACKER_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set PROMPTTRACKER_API_KEY or set PROMPTTRACKER_DISABLE_AUTH=true")
	}

	api.GET("/prompts", s.handleListPrompts)
	api.GET("/prompts/:name", s.handleGetPrompt)
	api.POST("/prompts", s.handleUpsertPrompt)
	api.DELETE("/prompts/:name", s.handleDeletePrompt)

	api.GET("/datasets", s.handleListDatasets)
	api.GET("/datasets/:name", s.handleGetDataset)

	api.GET("/tests", s.handleListTests)
	api.GET("/tests/:id", s.handleGetTest)
	api.POST("/tests", s.handleUpsertTest)
	api.POST("/tests/:id/runs", s.handleRunTest)
	api.GET("/tests/:id/history", s.handleTestHistory)

	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)

	api.GET("/compare", s.handleCompareVersions)

	return nil
}
