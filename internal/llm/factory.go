package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
)

func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.LLM.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "":
			continue
		case "anthropic", "claude":
			r.Register(NewAnthropicProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			r.Register(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	return r, nil
}

// JudgeFromConfig builds the conversation judge from the configured
// judge provider. Returns nil without error when no providers are
// configured at all, leaving the judge evaluator unregistered.
func JudgeFromConfig(cfg *config.Config, reg *Registry) (*Judge, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	if reg == nil {
		return nil, errors.New("llm: nil registry")
	}
	if len(reg.providers) == 0 {
		return nil, nil
	}

	name := strings.TrimSpace(cfg.LLM.JudgeProvider)
	if name == "" {
		name = "anthropic"
	}
	if p, ok := reg.Get(name); ok {
		return NewJudge(p, cfg.LLM.JudgeModel), nil
	}

	if len(reg.providers) == 1 {
		for _, p := range reg.providers {
			return NewJudge(p, cfg.LLM.JudgeModel), nil
		}
	}

	available := reg.Names()
	sort.Strings(available)
	return nil, fmt.Errorf("llm: judge provider %q not configured (available: %s)", name, strings.Join(available, ", "))
}
