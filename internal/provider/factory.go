package provider

import (
	"fmt"
	"log/slog"
	"sync"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// ResponderConstructor creates a responder from a config entry.
type ResponderConstructor func(pc config.ProviderConfig, logger *slog.Logger) (domain.Responder, error)

// Factory creates and caches AI responders from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]ResponderConstructor
	cache        map[string]domain.Responder
	mu           sync.RWMutex
}

// NewFactory creates a responder factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]ResponderConstructor),
		cache:        make(map[string]domain.Responder),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a responder constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor ResponderConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["gemini"] = func(pc config.ProviderConfig, logger *slog.Logger) (domain.Responder, error) {
		return NewGemini(GeminiConfig{APIKey: pc.APIKey, Model: pc.DefaultModel, Logger: logger})
	}

	f.constructors["openai"] = func(pc config.ProviderConfig, logger *slog.Logger) (domain.Responder, error) {
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: logger}), nil
	}
}

// Get returns the responder with the given name, or the default if name is
// empty. Created responders are cached so the same instance is reused.
// Uses double-check locking to avoid TOCTOU races.
func (f *Factory) Get(name string) (domain.Responder, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	// Fast path: read lock.
	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	// Slow path: write lock with double-check.
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	ctor, found := f.constructors[name]

	var r domain.Responder
	var err error
	if found {
		r, err = ctor(pc, f.logger)
	} else if pc.APIBase != "" && pc.APIKey != "" {
		// Fallback: treat unknown providers as OpenAI-compatible.
		r = NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: f.logger})
	} else {
		return nil, fmt.Errorf("provider %s: no constructor registered and no API base/key configured", name)
	}
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}

	f.cache[name] = r
	return r, nil
}

// DefaultResponder returns the configured default responder.
func (f *Factory) DefaultResponder() (domain.Responder, error) {
	return f.Get("")
}
