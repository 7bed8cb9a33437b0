package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

type stubProvider struct {
	name string
	api  response.APIType
}

func (p stubProvider) Name() string              { return p.name }
func (p stubProvider) APIType() response.APIType { return p.api }
func (p stubProvider) Invoke(context.Context, *Invocation) (*RawResult, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	var nilReg *Registry
	nilReg.Register(stubProvider{name: "x"}) // should be no-op

	r := &Registry{}
	r.Register(stubProvider{name: " \t "}) // should be ignored
	if _, ok := r.Get("x"); ok {
		t.Fatalf("Get: unexpected provider")
	}

	r.Register(nil)
	r.Register(stubProvider{name: "  X ", api: response.APIChatCompletion})

	if r.providers == nil {
		t.Fatalf("providers: nil")
	}
	if got, ok := r.Get("x"); !ok || got == nil {
		t.Fatalf("Get(x): ok=%v provider=%v", ok, got)
	}
	if _, ok := r.Get(" \t "); ok {
		t.Fatalf("Get(empty): unexpected ok")
	}
}

func TestRegistry_ForAPI(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubProvider{name: "openai", api: response.APIChatCompletion})
	r.Register(stubProvider{name: "anthropic", api: response.APIAnthropicMessages})

	p, ok := r.ForAPI(response.APIAnthropicMessages)
	if !ok || p.Name() != "anthropic" {
		t.Fatalf("ForAPI(anthropic_messages): ok=%v provider=%v", ok, p)
	}
	if _, ok := r.ForAPI(response.APIAssistants); ok {
		t.Fatalf("ForAPI(assistants): unexpected provider")
	}

	byAPI := r.ByAPI()
	if len(byAPI) != 2 {
		t.Fatalf("ByAPI: got %d entries want 2", len(byAPI))
	}
	byAPI[response.APIChatCompletion] = stubProvider{name: "mutated"}
	if p, _ := r.ForAPI(response.APIChatCompletion); p.Name() != "openai" {
		t.Fatalf("ByAPI copy leaked into registry")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistryFromConfig(nil); err == nil {
		t.Fatalf("NewRegistryFromConfig(nil): expected error")
	}

	_, err := NewRegistryFromConfig(&config.Config{
		LLM: config.LLMConfig{
			Providers: map[string]config.ProviderConfig{
				"unknown": {},
			},
		},
	})
	if err == nil {
		t.Fatalf("NewRegistryFromConfig: expected error")
	}
	if !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("error: got %q", err.Error())
	}

	reg, err := NewRegistryFromConfig(&config.Config{
		LLM: config.LLMConfig{
			Providers: map[string]config.ProviderConfig{
				"  ":        {},
				"OpenAI":    {APIKey: "k1", BaseURL: "http://example.test/v1", Model: "gpt-4o"},
				"Anthropic": {APIKey: "k2"},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}
	if _, ok := reg.Get("openai"); !ok {
		t.Fatalf("Get(openai): not found")
	}
	if _, ok := reg.Get("anthropic"); !ok {
		t.Fatalf("Get(anthropic): not found")
	}
	if p, ok := reg.ForAPI(response.APIChatCompletion); !ok || p.Name() != "openai" {
		t.Fatalf("ForAPI(chat_completion): ok=%v provider=%v", ok, p)
	}
	if p, ok := reg.ForAPI(response.APIAnthropicMessages); !ok || p.Name() != "anthropic" {
		t.Fatalf("ForAPI(anthropic_messages): ok=%v provider=%v", ok, p)
	}
}

func TestJudgeFromConfig(t *testing.T) {
	t.Parallel()

	if _, err := JudgeFromConfig(nil, NewRegistry()); err == nil {
		t.Fatalf("JudgeFromConfig(nil config): expected error")
	}
	if _, err := JudgeFromConfig(&config.Config{}, nil); err == nil {
		t.Fatalf("JudgeFromConfig(nil registry): expected error")
	}

	j, err := JudgeFromConfig(&config.Config{}, NewRegistry())
	if err != nil {
		t.Fatalf("JudgeFromConfig(empty registry): %v", err)
	}
	if j != nil {
		t.Fatalf("JudgeFromConfig(empty registry): expected nil judge")
	}

	reg := NewRegistry()
	reg.Register(stubProvider{name: "openai", api: response.APIChatCompletion})

	j, err = JudgeFromConfig(&config.Config{
		LLM: config.LLMConfig{JudgeProvider: "anthropic"},
	}, reg)
	if err != nil {
		t.Fatalf("JudgeFromConfig(single provider fallback): %v", err)
	}
	if j == nil || j.provider.Name() != "openai" {
		t.Fatalf("judge: got %#v", j)
	}

	reg.Register(stubProvider{name: "anthropic", api: response.APIAnthropicMessages})

	j, err = JudgeFromConfig(&config.Config{
		LLM: config.LLMConfig{JudgeProvider: "anthropic", JudgeModel: "claude-x"},
	}, reg)
	if err != nil {
		t.Fatalf("JudgeFromConfig(named provider): %v", err)
	}
	if j == nil || j.provider.Name() != "anthropic" || j.model != "claude-x" {
		t.Fatalf("judge: got %#v", j)
	}

	_, err = JudgeFromConfig(&config.Config{
		LLM: config.LLMConfig{JudgeProvider: "missing"},
	}, reg)
	if err == nil || !strings.Contains(err.Error(), "available: anthropic, openai") {
		t.Fatalf("JudgeFromConfig(missing provider): got %v", err)
	}
}
