// Package db defines the persistence interfaces for the cohort stores.
package db

import (
	"context"
	"errors"

	"github.com/thebtf/cohort/pkg/models"
)

// ErrNotFound is returned when no record exists for the given key.
var ErrNotFound = errors.New("db: not found")

// ErrUnsupported is returned by backends that do not implement an optional
// capability (e.g. group write-back on the redis backend).
var ErrUnsupported = errors.New("db: operation not supported by this backend")

// CacheStore persists embedding vectors keyed by (entityType, entityID).
// The stored content hash and model gate reuse; the engine treats a
// hash/model mismatch as a miss. Implementations must support concurrent
// upsert-by-key; last-writer-wins on identical keys is acceptable.
type CacheStore interface {
	GetEmbedding(ctx context.Context, entityType, entityID string) (*models.CachedEmbedding, error)
	PutEmbedding(ctx context.Context, emb *models.CachedEmbedding) error
	PutEmbeddingBatch(ctx context.Context, embs []*models.CachedEmbedding) error
	Close() error
}

// GroupStore persists correlation output. Groups are replaced wholesale on
// each run, never incrementally patched.
type GroupStore interface {
	ReplaceGroups(ctx context.Context, groups []*models.Group) error
	SaveClassifications(ctx context.Context, msgs []models.ClassifiedMessage) error
}
