package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/cohort/internal/db"
	"github.com/thebtf/cohort/pkg/models"
)

// GetEmbedding returns the cached embedding for an entity, or db.ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, entityType, entityID string) (*models.CachedEmbedding, error) {
	var rec embeddingRecord
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("get embedding %s/%s: %w", entityType, entityID, err)
	}

	return &models.CachedEmbedding{
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		ContentHash: rec.ContentHash,
		Model:       rec.Model,
		Vector:      rec.Vector.Slice(),
		CreatedAt:   rec.CreatedAt,
	}, nil
}

// PutEmbedding upserts a single cached embedding.
func (s *Store) PutEmbedding(ctx context.Context, emb *models.CachedEmbedding) error {
	rec := toRecord(emb)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "model", "vector", "created_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
	}
	return nil
}

// PutEmbeddingBatch upserts a batch of embeddings in one statement.
func (s *Store) PutEmbeddingBatch(ctx context.Context, embs []*models.CachedEmbedding) error {
	if len(embs) == 0 {
		return nil
	}

	recs := make([]embeddingRecord, len(embs))
	for i, emb := range embs {
		recs[i] = toRecord(emb)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "model", "vector", "created_at"}),
	}).Create(&recs).Error
	if err != nil {
		return fmt.Errorf("put embedding batch (%d): %w", len(embs), err)
	}
	return nil
}

func toRecord(emb *models.CachedEmbedding) embeddingRecord {
	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return embeddingRecord{
		EntityType:  emb.EntityType,
		EntityID:    emb.EntityID,
		ContentHash: emb.ContentHash,
		Model:       emb.Model,
		Vector:      pgvec.NewVector(emb.Vector),
		CreatedAt:   createdAt,
	}
}
