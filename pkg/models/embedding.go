package models

import "time"

// Entity types used as the first component of embedding cache keys.
const (
	EntityTypeIssue   = "issue"
	EntityTypeThread  = "thread"
	EntityTypeFeature = "feature"
)

// EntityTypeFor maps a signal to its embedding cache entity type.
func EntityTypeFor(s *Signal) string {
	if s.IsIssue() {
		return EntityTypeIssue
	}
	return EntityTypeThread
}

// CachedEmbedding is a persisted embedding vector, keyed by the entity that
// produced it. The ContentHash pins the vector to the exact text it was
// computed from; the Model pins it to the provider model. Embeddings are
// created once per (entity, content, model) triple and superseded, never
// mutated, when content changes.
type CachedEmbedding struct {
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	ContentHash string    `json:"content_hash"`
	Model       string    `json:"model"`
	Vector      []float32 `json:"vector"`
	CreatedAt   time.Time `json:"created_at"`
}
