// Package redis provides a Redis-backed embedding cache. It implements the
// cache store only; group write-back needs transactional replace semantics
// that belong in sqlite or postgres.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	json "github.com/goccy/go-json"

	"github.com/thebtf/cohort/internal/db"
	"github.com/thebtf/cohort/pkg/models"
)

const keyPrefix = "cohort:emb:"

// Store is a Redis-backed embedding cache.
type Store struct {
	pool *redis.Pool
}

// StoreConfig holds configuration for the Redis cache.
type StoreConfig struct {
	Addr     string
	MaxConns int
}

// NewStore creates a Redis embedding cache and verifies connectivity.
func NewStore(cfg StoreConfig) (*Store, error) {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}

	pool := &redis.Pool{
		MaxIdle:     maxConns,
		MaxActive:   maxConns,
		IdleTimeout: 240 * time.Second,
		Wait:        true,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.Addr,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(5*time.Second),
				redis.DialWriteTimeout(5*time.Second))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func embeddingKey(entityType, entityID string) string {
	return keyPrefix + entityType + ":" + entityID
}

// GetEmbedding returns the cached embedding for an entity, or db.ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, entityType, entityID string) (*models.CachedEmbedding, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire redis connection: %w", err)
	}
	defer conn.Close()

	blob, err := redis.Bytes(conn.Do("GET", embeddingKey(entityType, entityID)))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("get embedding %s/%s: %w", entityType, entityID, err)
	}

	var emb models.CachedEmbedding
	if err := json.Unmarshal(blob, &emb); err != nil {
		return nil, fmt.Errorf("decode embedding %s/%s: %w", entityType, entityID, err)
	}
	return &emb, nil
}

// PutEmbedding upserts a single cached embedding.
func (s *Store) PutEmbedding(ctx context.Context, emb *models.CachedEmbedding) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("acquire redis connection: %w", err)
	}
	defer conn.Close()

	return s.put(conn, emb)
}

// PutEmbeddingBatch upserts a batch of embeddings over one pipelined
// connection.
func (s *Store) PutEmbeddingBatch(ctx context.Context, embs []*models.CachedEmbedding) error {
	if len(embs) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("acquire redis connection: %w", err)
	}
	defer conn.Close()

	for _, emb := range embs {
		blob, err := json.Marshal(normalize(emb))
		if err != nil {
			return fmt.Errorf("encode embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
		}
		if err := conn.Send("SET", embeddingKey(emb.EntityType, emb.EntityID), blob); err != nil {
			return fmt.Errorf("queue embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
		}
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flush embedding batch: %w", err)
	}
	for range embs {
		if _, err := conn.Receive(); err != nil {
			return fmt.Errorf("write embedding batch: %w", err)
		}
	}
	return nil
}

func (s *Store) put(conn redis.Conn, emb *models.CachedEmbedding) error {
	blob, err := json.Marshal(normalize(emb))
	if err != nil {
		return fmt.Errorf("encode embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
	}
	if _, err := conn.Do("SET", embeddingKey(emb.EntityType, emb.EntityID), blob); err != nil {
		return fmt.Errorf("put embedding %s/%s: %w", emb.EntityType, emb.EntityID, err)
	}
	return nil
}

func normalize(emb *models.CachedEmbedding) *models.CachedEmbedding {
	if !emb.CreatedAt.IsZero() {
		return emb
	}
	cp := *emb
	cp.CreatedAt = time.Now().UTC()
	return &cp
}
