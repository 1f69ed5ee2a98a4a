package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/cohort/internal/config"
)

const (
	// MaxInputChars is the deterministic character cap applied before
	// submission, so identical text always yields identical provider input
	// regardless of tokenizer availability.
	MaxInputChars = 8000

	// MaxInputTokens caps the token count when the tokenizer is available.
	MaxInputTokens = 8000

	// maxBackoff caps the exponential retry delay.
	maxBackoff = 30 * time.Second

	baseBackoff = 1 * time.Second
)

// Service wraps a Model with deterministic input truncation and
// rate-limit-aware retries. All provider traffic goes through it.
type Service struct {
	model    Model
	codec    tokenizer.Codec
	attempts int
}

// NewService creates an embedding service for the configured provider.
func NewService(cfg config.EmbeddingConfig, attempts int) (*Service, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding model: %w", err)
	}
	return NewServiceWithModel(model, attempts), nil
}

// NewServiceWithModel wraps an existing model. Used by tests to inject
// deterministic fakes.
func NewServiceWithModel(model Model, attempts int) *Service {
	if attempts <= 0 {
		attempts = 3
	}

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Character cap still applies; token-level truncation is best effort.
		log.Warn().Err(err).Msg("Tokenizer unavailable, truncating by characters only")
		codec = nil
	}

	return &Service{
		model:    model,
		codec:    codec,
		attempts: attempts,
	}
}

// Name returns the provider model identifier.
func (s *Service) Name() string { return s.model.Name() }

// Dimensions returns the embedding vector size.
func (s *Service) Dimensions() int { return s.model.Dimensions() }

// Close releases provider resources.
func (s *Service) Close() error { return s.model.Close() }

// Truncate deterministically truncates text to the provider input limits:
// a fixed rune cap, then a token cap when the tokenizer is available.
func (s *Service) Truncate(text string) string {
	runes := []rune(text)
	if len(runes) > MaxInputChars {
		text = string(runes[:MaxInputChars])
	}

	if s.codec != nil {
		ids, _, err := s.codec.Encode(text)
		if err == nil && len(ids) > MaxInputTokens {
			if decoded, err := s.codec.Decode(ids[:MaxInputTokens]); err == nil {
				text = decoded
			}
		}
	}
	return text
}

// EmbedBatch generates embeddings for a batch of texts. Empty texts yield
// zero vectors without a provider call. Rate-limit and server errors are
// retried with capped exponential backoff, honoring the provider's
// Retry-After hint when present; other errors are returned immediately.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	dims := s.model.Dimensions()
	results := make([][]float32, len(texts))

	nonEmpty := make([]string, 0, len(texts))
	indices := make([]int, 0, len(texts))
	for i, t := range texts {
		t = s.Truncate(t)
		if t == "" {
			results[i] = make([]float32, dims)
			continue
		}
		nonEmpty = append(nonEmpty, t)
		indices = append(indices, i)
	}

	if len(nonEmpty) == 0 {
		return results, nil
	}

	vectors, err := s.embedWithRetry(ctx, nonEmpty)
	if err != nil {
		return nil, err
	}

	for i, idx := range indices {
		results[idx] = vectors[i]
	}
	return results, nil
}

// embedWithRetry calls the provider, retrying retryable errors up to the
// attempt cap.
func (s *Service) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, lastErr)
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying embedding batch after provider error")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vectors, err := s.model.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		var provErr *ProviderError
		if !errors.As(err, &provErr) || !provErr.Retryable() {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding batch failed after %d attempts: %w", s.attempts, lastErr)
}

// backoffDelay computes the delay before the given retry attempt. A
// provider-supplied Retry-After hint overrides the exponential schedule;
// either way the delay is capped.
func backoffDelay(attempt int, lastErr error) time.Duration {
	delay := baseBackoff << (attempt - 1)

	var provErr *ProviderError
	if errors.As(lastErr, &provErr) && provErr.RetryAfter > 0 {
		delay = provErr.RetryAfter
	}

	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
