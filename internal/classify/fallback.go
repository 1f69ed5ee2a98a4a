package classify

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/cohort/internal/embedding"
	"github.com/thebtf/cohort/pkg/models"
)

// Fallback runs a primary strategy and degrades to a secondary one when the
// primary is unavailable. Unavailability means a missing provider key or a
// provider-side failure; scoring bugs still surface as errors. Once degraded,
// the batch stays on the secondary so every message in a run is scored on
// the same scale.
type Fallback struct {
	primary   Strategy
	secondary Strategy

	mu       sync.Mutex
	degraded bool
}

// NewFallback wraps primary with secondary as the degraded path.
func NewFallback(primary, secondary Strategy) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Name() string {
	if f.isDegraded() {
		return f.secondary.Name()
	}
	return f.primary.Name()
}

func (f *Fallback) isDegraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) degrade(reason error) {
	f.mu.Lock()
	already := f.degraded
	f.degraded = true
	f.mu.Unlock()

	if !already {
		log.Warn().Err(reason).
			Str("primary", f.primary.Name()).
			Str("fallback", f.secondary.Name()).
			Msg("Primary scoring strategy unavailable, falling back")
	}
}

// unavailable reports whether the error means the primary strategy cannot
// serve this run at all, as opposed to a per-input problem.
func unavailable(err error) bool {
	if errors.Is(err, embedding.ErrMissingAPIKey) {
		return true
	}
	var provErr *embedding.ProviderError
	return errors.As(err, &provErr)
}

func (f *Fallback) Prepare(ctx context.Context, issues []*models.Signal) error {
	if f.isDegraded() {
		return f.secondary.Prepare(ctx, issues)
	}

	err := f.primary.Prepare(ctx, issues)
	if err == nil {
		return nil
	}
	if !unavailable(err) {
		return err
	}
	f.degrade(err)
	return f.secondary.Prepare(ctx, issues)
}

func (f *Fallback) Score(ctx context.Context, msg *models.Signal, issues []*models.Signal) ([]models.CandidateMatch, error) {
	if f.isDegraded() {
		return f.secondary.Score(ctx, msg, issues)
	}

	matches, err := f.primary.Score(ctx, msg, issues)
	if err == nil {
		return matches, nil
	}
	if !unavailable(err) {
		return nil, err
	}
	f.degrade(err)
	return f.secondary.Score(ctx, msg, issues)
}
