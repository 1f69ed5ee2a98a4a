package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/cohort/internal/db"
	"github.com/thebtf/cohort/pkg/models"
)

// GetEmbedding returns the cached embedding for an entity, or db.ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, entityType, entityID string) (*models.CachedEmbedding, error) {
	row := s.queryRowContext(ctx,
		`SELECT content_hash, model, vector, created_at FROM embeddings WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID)

	var (
		hash      string
		model     string
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&hash, &model, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("get embedding %s/%s: %w", entityType, entityID, err)
	}

	var vector []float32
	if err := json.Unmarshal(blob, &vector); err != nil {
		return nil, fmt.Errorf("decode embedding vector %s/%s: %w", entityType, entityID, err)
	}

	return &models.CachedEmbedding{
		EntityType:  entityType,
		EntityID:    entityID,
		ContentHash: hash,
		Model:       model,
		Vector:      vector,
		CreatedAt:   time.Unix(createdAt, 0).UTC(),
	}, nil
}

// PutEmbedding upserts a single cached embedding.
func (s *Store) PutEmbedding(ctx context.Context, emb *models.CachedEmbedding) error {
	blob, err := json.Marshal(emb.Vector)
	if err != nil {
		return fmt.Errorf("encode embedding vector: %w", err)
	}

	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.execContext(ctx,
		`INSERT INTO embeddings (entity_type, entity_id, content_hash, model, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   model        = excluded.model,
		   vector       = excluded.vector,
		   created_at   = excluded.created_at`,
		emb.EntityType, emb.EntityID, emb.ContentHash, emb.Model, blob, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("put embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
	}
	return nil
}

// PutEmbeddingBatch upserts a batch of embeddings in a single transaction.
func (s *Store) PutEmbeddingBatch(ctx context.Context, embs []*models.CachedEmbedding) error {
	if len(embs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embedding batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (entity_type, entity_id, content_hash, model, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   model        = excluded.model,
		   vector       = excluded.vector,
		   created_at   = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare embedding batch: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, emb := range embs {
		blob, err := json.Marshal(emb.Vector)
		if err != nil {
			return fmt.Errorf("encode embedding vector %s/%s: %w", emb.EntityType, emb.EntityID, err)
		}
		createdAt := emb.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			emb.EntityType, emb.EntityID, emb.ContentHash, emb.Model, blob, createdAt.Unix()); err != nil {
			return fmt.Errorf("put embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embedding batch: %w", err)
	}
	return nil
}
