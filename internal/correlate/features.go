package correlate

import (
	"context"
	"sort"

	"github.com/thebtf/cohort/internal/embedcache"
	"github.com/thebtf/cohort/internal/scoring"
	"github.com/thebtf/cohort/pkg/models"
)

// FeatureMapper scores a group's affinity against the product feature
// catalog. With a cache it compares the cluster's mean embedding to each
// feature embedding; without one it falls back to symmetric keyword overlap
// between member text and feature descriptions.
type FeatureMapper struct {
	cache       *embedcache.Cache // nil selects the lexical path
	features    []*models.Feature
	threshold   float64
	maxFeatures int
}

// NewFeatureMapper creates a mapper over the given catalog. The threshold is
// on the normalized [0,1] scale.
func NewFeatureMapper(cache *embedcache.Cache, features []*models.Feature, threshold float64, maxFeatures int) *FeatureMapper {
	if maxFeatures <= 0 {
		maxFeatures = 5
	}
	return &FeatureMapper{
		cache:       cache,
		features:    features,
		threshold:   threshold,
		maxFeatures: maxFeatures,
	}
}

type featureScore struct {
	id    string
	score float64
}

// Map returns the IDs of features whose affinity with the group meets the
// threshold, best first, capped at maxFeatures.
func (m *FeatureMapper) Map(ctx context.Context, members []*models.Signal) ([]string, error) {
	if len(m.features) == 0 || len(members) == 0 {
		return nil, nil
	}

	var scores []featureScore
	var err error
	if m.cache != nil {
		scores, err = m.embeddingScores(ctx, members)
	} else {
		scores, err = m.lexicalScores(members)
	}
	if err != nil {
		return nil, err
	}

	kept := scores[:0]
	for _, fs := range scores {
		if fs.score >= m.threshold {
			kept = append(kept, fs)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].id < kept[j].id
	})
	if len(kept) > m.maxFeatures {
		kept = kept[:m.maxFeatures]
	}

	ids := make([]string, len(kept))
	for i, fs := range kept {
		ids[i] = fs.id
	}
	return ids, nil
}

// embeddingScores compares the cluster's mean embedding to each feature
// embedding. Features without a precomputed embedding are embedded through
// the cache on first use.
func (m *FeatureMapper) embeddingScores(ctx context.Context, members []*models.Signal) ([]featureScore, error) {
	var mean []float32
	for _, s := range members {
		vec, err := m.cache.Fetch(ctx, models.EntityTypeFor(s), s.SourceID, s.Text())
		if err != nil {
			return nil, err
		}
		if mean == nil {
			mean = make([]float32, len(vec))
		}
		for i, v := range vec {
			mean[i] += v
		}
	}
	n := float32(len(members))
	for i := range mean {
		mean[i] /= n
	}

	scores := make([]featureScore, 0, len(m.features))
	for _, f := range m.features {
		vec := f.Embedding
		if len(vec) == 0 {
			var err error
			vec, err = m.cache.Fetch(ctx, models.EntityTypeFeature, f.ID, f.Text())
			if err != nil {
				return nil, err
			}
		}
		score, err := scoring.CosineScore(mean, vec)
		if err != nil {
			return nil, err
		}
		scores = append(scores, featureScore{id: f.ID, score: score / 100})
	}
	return scores, nil
}

// lexicalScores takes, per feature, the best keyword overlap across members.
func (m *FeatureMapper) lexicalScores(members []*models.Signal) ([]featureScore, error) {
	scores := make([]featureScore, 0, len(m.features))
	for _, f := range m.features {
		var best float64
		for _, s := range members {
			score := scoring.KeywordSimilarity(s.Title, s.Body, f.Name, f.Description) / 100
			if score > best {
				best = score
			}
		}
		scores = append(scores, featureScore{id: f.ID, score: best})
	}
	return scores, nil
}
