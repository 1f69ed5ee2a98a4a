// Package catalog loads the product feature catalog from a YAML file and
// keeps it fresh via filesystem watching.
package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/cohort/internal/embedcache"
	"github.com/thebtf/cohort/pkg/models"
)

type catalogFile struct {
	Features []*models.Feature `yaml:"features"`
}

// Load reads and validates the feature catalog. A missing file is not an
// error; it yields an empty catalog, since feature mapping is optional.
func Load(path string) ([]*models.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feature catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse feature catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Features))
	for _, f := range file.Features {
		if f.ID == "" {
			return nil, fmt.Errorf("feature catalog: entry %q has no id", f.Name)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("feature catalog: duplicate id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return file.Features, nil
}

// EmbedFeatures precomputes embeddings for every feature through the cache,
// so correlation runs compare against warm vectors. Features keep their
// vectors in place for direct cosine comparison.
func EmbedFeatures(ctx context.Context, cache *embedcache.Cache, features []*models.Feature) error {
	for _, f := range features {
		vec, err := cache.Fetch(ctx, models.EntityTypeFeature, f.ID, f.Text())
		if err != nil {
			return fmt.Errorf("embed feature %s: %w", f.ID, err)
		}
		f.Embedding = vec
	}
	return nil
}
