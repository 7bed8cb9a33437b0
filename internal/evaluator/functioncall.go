package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// functionCallScorer checks which expected functions the model called
// during the conversation, optionally matching their arguments.
type functionCallScorer struct {
	expected     []string
	requireAll   bool
	checkArgs    bool
	expectedArgs map[string]map[string]any
}

func newFunctionCallScorer(opts Options) (ConversationScorer, error) {
	return &functionCallScorer{
		expected:     opts.Strings("expected_functions"),
		requireAll:   opts.Bool("require_all"),
		checkArgs:    opts.Bool("check_arguments"),
		expectedArgs: opts.MapOfMaps("expected_arguments"),
	}, nil
}

func (s *functionCallScorer) Score(_ context.Context, conv *response.Conversation) (Outcome, error) {
	if conv == nil {
		return Outcome{}, errors.New("evaluator: nil conversation")
	}

	calls := conv.AllToolCalls()
	if len(s.expected) == 0 {
		return Outcome{
			Score:    100,
			Feedback: "no expected functions",
			Metadata: map[string]any{"calls": len(calls)},
		}, nil
	}

	full := 0
	half := 0
	matched := make([]string, 0, len(s.expected))
	missing := make([]string, 0)
	argMismatches := make([]string, 0)

	for _, name := range s.expected {
		want := strings.TrimSpace(name)
		call, ok := findCall(calls, want)
		if !ok {
			missing = append(missing, want)
			continue
		}
		matched = append(matched, want)

		if s.checkArgs {
			if wantArgs := s.expectedArgs[want]; len(wantArgs) > 0 {
				if ok, reason := argsSubsetMatch(call.Arguments, wantArgs); !ok {
					// An argument mismatch demotes the function to
					// half credit instead of zeroing the run.
					half++
					argMismatches = append(argMismatches, fmt.Sprintf("%s: %s", want, reason))
					continue
				}
			}
		}
		full++
	}

	var score float64
	if s.requireAll {
		score = math.Round((float64(full) + 0.5*float64(half)) / float64(len(s.expected)) * 100)
	} else {
		switch {
		case full > 0:
			score = 100
		case half > 0:
			score = 50
		default:
			score = 0
		}
	}

	meta := map[string]any{
		"matched": matched,
		"total":   len(s.expected),
		"calls":   len(calls),
	}
	if len(missing) > 0 {
		meta["missing"] = missing
	}
	if len(argMismatches) > 0 {
		meta["argument_mismatches"] = argMismatches
	}

	msg := fmt.Sprintf("matched %d/%d functions", len(matched), len(s.expected))
	if len(missing) == 0 && len(argMismatches) == 0 {
		msg = "all expected functions called"
	}
	return Outcome{Score: score, Feedback: msg, Metadata: meta}, nil
}

func findCall(calls []response.ToolCall, name string) (response.ToolCall, bool) {
	for _, call := range calls {
		if strings.TrimSpace(call.Name) == name {
			return call, true
		}
	}
	return response.ToolCall{}, false
}

// argsSubsetMatch checks that every expected argument appears in the
// actual call with a matching value; extra actual keys are ignored.
func argsSubsetMatch(got map[string]any, want map[string]any) (bool, string) {
	if len(want) == 0 {
		return true, ""
	}
	if got == nil {
		return false, "missing args"
	}

	for k, wantV := range want {
		gotV, ok := got[k]
		if !ok {
			return false, fmt.Sprintf("missing arg %q", k)
		}
		if ok, reason := matchArgValue(gotV, wantV, fmt.Sprintf("arg %q", k)); !ok {
			return false, reason
		}
	}
	return true, ""
}

func matchArgValue(got any, want any, path string) (bool, string) {
	if want == nil {
		if got == nil {
			return true, ""
		}
		return false, fmt.Sprintf("%s: got=%v want=nil", path, got)
	}

	// "regex:"-prefixed expectations match string values by pattern.
	if w, ok := want.(string); ok && strings.HasPrefix(w, "regex:") {
		pattern := strings.TrimPrefix(w, "regex:")
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("%s: invalid regex %q: %v", path, pattern, err)
		}
		s, ok := got.(string)
		if !ok {
			return false, fmt.Sprintf("%s: expected string to match regex %q, got %T", path, pattern, got)
		}
		if !re.MatchString(s) {
			return false, fmt.Sprintf("%s: regex %q did not match %q", path, pattern, s)
		}
		return true, ""
	}

	if equal, comparable := numericEqual(got, want); comparable {
		if equal {
			return true, ""
		}
		return false, fmt.Sprintf("%s: got=%v want=%v", path, got, want)
	}

	if wmap, ok := asArgMap(want); ok {
		gmap, ok := asArgMap(got)
		if !ok {
			return false, fmt.Sprintf("%s: expected object, got %T", path, got)
		}
		for k, wv := range wmap {
			gv, ok := gmap[k]
			if !ok {
				return false, fmt.Sprintf("%s.%s: missing", path, k)
			}
			if ok, reason := matchArgValue(gv, wv, path+"."+k); !ok {
				return false, reason
			}
		}
		return true, ""
	}

	if wslice, ok := asArgSlice(want); ok {
		gslice, ok := asArgSlice(got)
		if !ok {
			return false, fmt.Sprintf("%s: expected array, got %T", path, got)
		}
		if len(gslice) != len(wslice) {
			return false, fmt.Sprintf("%s: len=%d want=%d", path, len(gslice), len(wslice))
		}
		for i := range wslice {
			if ok, reason := matchArgValue(gslice[i], wslice[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return false, reason
			}
		}
		return true, ""
	}

	if reflect.DeepEqual(got, want) {
		return true, ""
	}
	return false, fmt.Sprintf("%s: got=%v want=%v", path, got, want)
}

func asArgMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asArgSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func numericEqual(a any, b any) (equal bool, comparable bool) {
	af, ok := toFloat64(a)
	if !ok {
		return false, false
	}
	bf, ok := toFloat64(b)
	if !ok {
		return false, false
	}
	return af == bf, true
}
