// Package correlate clusters a signal population into topic groups using
// pairwise similarity, selects canonical representatives, maps groups onto a
// feature catalog, and detects duplicates as a high-threshold special case.
package correlate

import (
	"context"

	"github.com/thebtf/cohort/internal/embedcache"
	"github.com/thebtf/cohort/internal/scoring"
	"github.com/thebtf/cohort/pkg/models"
)

// Similarity computes a symmetric pairwise similarity between two signals on
// the normalized [0,1] scale.
type Similarity func(ctx context.Context, a, b *models.Signal) (float64, error)

// EmbeddingSimilarity builds a similarity over cached embeddings: raw cosine
// remapped from [-1,1] to [0,1].
func EmbeddingSimilarity(cache *embedcache.Cache) Similarity {
	return func(ctx context.Context, a, b *models.Signal) (float64, error) {
		va, err := cache.Fetch(ctx, models.EntityTypeFor(a), a.SourceID, a.Text())
		if err != nil {
			return 0, err
		}
		vb, err := cache.Fetch(ctx, models.EntityTypeFor(b), b.SourceID, b.Text())
		if err != nil {
			return 0, err
		}
		score, err := scoring.CosineScore(va, vb)
		if err != nil {
			return 0, err
		}
		return score / 100, nil
	}
}

// LexicalSimilarity builds a similarity over symmetric keyword overlap,
// rescaled from [0,100] to [0,1]. It needs no provider and never fails.
func LexicalSimilarity() Similarity {
	return func(ctx context.Context, a, b *models.Signal) (float64, error) {
		return scoring.KeywordSimilarity(a.Title, a.Body, b.Title, b.Body) / 100, nil
	}
}

// cluster runs greedy single-pass clustering: each unclustered signal seeds
// a new cluster and claims every later unclustered signal whose similarity
// to the seed meets the threshold. Membership is judged against the seed
// only, not mutually among members; a chain of seed-similar items may not be
// mutually similar. That is the documented behavior, kept deliberately for
// throughput and determinism.
func cluster(ctx context.Context, signals []*models.Signal, sim Similarity, threshold float64) ([][]*models.Signal, error) {
	clustered := make([]bool, len(signals))
	var clusters [][]*models.Signal

	for i := range signals {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		members := []*models.Signal{signals[i]}

		for j := i + 1; j < len(signals); j++ {
			if clustered[j] {
				continue
			}
			s, err := sim(ctx, signals[i], signals[j])
			if err != nil {
				return nil, err
			}
			if s >= threshold {
				clustered[j] = true
				members = append(members, signals[j])
			}
		}
		clusters = append(clusters, members)
	}
	return clusters, nil
}

// meanPairwise computes the mean of all pairwise similarities within a
// cluster. Singletons score 1.0.
func meanPairwise(ctx context.Context, members []*models.Signal, sim Similarity) (float64, error) {
	if len(members) < 2 {
		return 1.0, nil
	}

	var sum float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			s, err := sim(ctx, members[i], members[j])
			if err != nil {
				return 0, err
			}
			sum += s
			pairs++
		}
	}
	return sum / float64(pairs), nil
}
