package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// jsonSchemaScorer checks that the response text is JSON conforming
// to a configured schema. All-or-nothing: 100 valid, 0 otherwise.
type jsonSchemaScorer struct {
	schema *gojsonschema.Schema
}

func newJSONSchemaScorer(opts Options) (SingleScorer, error) {
	raw := opts.Map("schema")
	if raw == nil {
		return nil, errors.New("evaluator: json_schema requires schema")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("evaluator: compile schema: %w", err)
	}
	return &jsonSchemaScorer{schema: schema}, nil
}

func (s *jsonSchemaScorer) Score(_ context.Context, resp *response.SingleResponse) (Outcome, error) {
	if resp == nil {
		return Outcome{}, errors.New("evaluator: nil response")
	}

	text := strings.TrimSpace(resp.Text)
	var doc any
	if text == "" || json.Unmarshal([]byte(text), &doc) != nil {
		return Outcome{
			Score:    0,
			Feedback: "response is not valid JSON",
		}, nil
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluator: validate schema: %w", err)
	}
	if result.Valid() {
		return Outcome{Score: 100, Feedback: "response conforms to schema"}, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return Outcome{
		Score:    0,
		Feedback: fmt.Sprintf("schema violations: %d", len(violations)),
		Metadata: map[string]any{"violations": violations},
	}, nil
}
