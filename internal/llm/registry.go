package llm

import (
	"strings"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

// Registry holds configured providers, addressable by name and by the
// API type they serve. Registering two providers for the same API type
// keeps the later one.
type Registry struct {
	providers map[string]Provider
	byAPI     map[response.APIType]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		byAPI:     make(map[response.APIType]Provider),
	}
}

func (r *Registry) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))
	if name == "" {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	if r.byAPI == nil {
		r.byAPI = make(map[response.APIType]Provider)
	}
	r.providers[name] = p
	r.byAPI[p.APIType()] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil || r.providers == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// ForAPI returns the provider serving an API type.
func (r *Registry) ForAPI(api response.APIType) (Provider, bool) {
	if r == nil || r.byAPI == nil {
		return nil, false
	}
	p, ok := r.byAPI[api]
	return p, ok
}

// ByAPI returns a copy of the API-type index, the shape the run
// harness consumes.
func (r *Registry) ByAPI() map[response.APIType]Provider {
	if r == nil {
		return map[response.APIType]Provider{}
	}
	out := make(map[response.APIType]Provider, len(r.byAPI))
	for api, p := range r.byAPI {
		out[api] = p
	}
	return out
}

// Names returns the registered provider names, unsorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}
