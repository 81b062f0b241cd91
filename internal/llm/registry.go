package llm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/logging"
)

// Registry maps model names onto provider clients. A model resolves to the
// provider it was routed to, then to a provider of the same name, then to
// the default provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Client
	routes    map[string]string
	def       string
	log       *logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Client),
		routes:    make(map[string]string),
		log:       log.Sub("llm"),
	}
}

// Register adds or replaces the client for provider.
func (r *Registry) Register(provider string, c Client) {
	r.mu.Lock()
	r.providers[provider] = c
	r.mu.Unlock()
	r.log.Debug().Str("provider", provider).Msg("registered provider")
}

// Route sends requests for model to provider.
func (r *Registry) Route(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[model] = provider
}

// SetDefault names the provider that serves unrouted models.
func (r *Registry) SetDefault(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = provider
}

// Resolve returns the client serving model.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range []string{r.routes[model], model, r.def} {
		if c, ok := r.providers[name]; ok && name != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w for model %q", ErrNoProvider, model)
}

// Has reports whether provider is registered.
func (r *Registry) Has(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[provider]
	return ok
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}

type clientFactory func(ctx context.Context, apiKey, model, endpoint string) (Client, error)

var factories = map[string]clientFactory{
	"gemini": func(ctx context.Context, apiKey, model, endpoint string) (Client, error) {
		c, err := NewGeminiClient(ctx, apiKey, model, endpoint)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
	"openai": func(_ context.Context, apiKey, model, endpoint string) (Client, error) {
		if apiKey == "" {
			return nil, &ProviderError{Provider: "openai", Message: "API key is not set"}
		}
		return NewOpenAIClient(apiKey, model, endpoint), nil
	},
	"ollama": func(_ context.Context, _, model, endpoint string) (Client, error) {
		return NewOllamaClient(endpoint, model), nil
	},
	"mock": func(context.Context, string, string, string) (Client, error) {
		return EchoClient{}, nil
	},
}

// NewClient builds the client for one provider.
func NewClient(ctx context.Context, provider, apiKey, model, endpoint string) (Client, error) {
	f, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	return f(ctx, apiKey, model, endpoint)
}

// NewRegistryFromConfig registers the primary provider as the default and
// routes every fallback model to its provider. Fallback providers share the
// primary credentials; one that cannot be built is skipped with a warning.
func NewRegistryFromConfig(ctx context.Context, cfg config.ModelConfig, log *logging.Logger) (*Registry, error) {
	primary, err := NewClient(ctx, cfg.Provider, cfg.APIKey, cfg.Model, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(log)
	reg.Register(cfg.Provider, primary)
	reg.SetDefault(cfg.Provider)
	if cfg.Model != "" {
		reg.Route(cfg.Model, cfg.Provider)
	}

	for _, fb := range cfg.Fallbacks {
		if !reg.Has(fb.Provider) {
			c, err := NewClient(ctx, fb.Provider, cfg.APIKey, fb.Model, "")
			if err != nil {
				log.Warn().Err(err).Str("provider", fb.Provider).Msg("skipping fallback provider")
				continue
			}
			reg.Register(fb.Provider, c)
		}
		reg.Route(fb.Model, fb.Provider)
	}
	return reg, nil
}
