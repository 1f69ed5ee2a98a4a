// Package embedding provides text embedding generation with swappable
// providers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thebtf/cohort/internal/config"
)

// ErrMissingAPIKey is returned when a provider requires an API key and none
// is configured. There is no fallback inside the embedding layer; callers
// that can degrade to lexical scoring do so at the classifier level.
var ErrMissingAPIKey = errors.New("embedding: API key is required")

// Model represents a text embedding provider.
type Model interface {
	// Name returns the provider model identifier stored alongside cached
	// vectors (e.g. "text-embedding-3-small").
	Name() string

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// Embed generates embeddings for a batch of texts, one vector per
	// input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases provider resources.
	Close() error
}

// ModelFactory creates a new instance of an embedding model.
type ModelFactory func(cfg config.EmbeddingConfig) (Model, error)

// ModelRegistry provides model lookup by provider name.
type ModelRegistry struct {
	mu        sync.RWMutex
	factories map[string]ModelFactory
}

// NewModelRegistry creates a new model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{factories: make(map[string]ModelFactory)}
}

// Register adds a model factory to the registry.
func (r *ModelRegistry) Register(provider string, factory ModelFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

// New creates a model instance for the given provider.
func (r *ModelRegistry) New(cfg config.EmbeddingConfig) (Model, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// DefaultRegistry is the global model registry with all available providers.
var DefaultRegistry = NewModelRegistry()

// RegisterModel adds a provider to the default registry.
func RegisterModel(provider string, factory ModelFactory) {
	DefaultRegistry.Register(provider, factory)
}

// NewModel creates a model instance from the default registry.
func NewModel(cfg config.EmbeddingConfig) (Model, error) {
	return DefaultRegistry.New(cfg)
}
