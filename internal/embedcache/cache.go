// Package embedcache provides a content-hash-gated embedding cache with an
// in-memory layer over an optional persistent store. A cached vector is
// reused only when both the content hash and the provider model match;
// anything else is a miss and the entity is re-embedded.
package embedcache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/cohort/internal/db"
	"github.com/thebtf/cohort/internal/embedding"
	"github.com/thebtf/cohort/pkg/models"
)

var meter = otel.Meter("github.com/thebtf/cohort/internal/embedcache")

// Embedder is the subset of the embedding service the cache needs.
type Embedder interface {
	Name() string
	Dimensions() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache is a two-layer embedding cache. The memory layer is authoritative
// within a run; the store layer survives restarts. Store failures degrade the
// cache to memory-only, they never fail the caller.
type Cache struct {
	embedder Embedder
	store    db.CacheStore // nil means memory-only

	mu  sync.RWMutex
	mem map[string]*models.CachedEmbedding

	batchSize  int
	batchDelay time.Duration

	hits          metric.Int64Counter
	misses        metric.Int64Counter
	storeFailures metric.Int64Counter
}

// Options configures batching behavior for Warm.
type Options struct {
	BatchSize  int
	BatchDelay time.Duration
}

// WarmStats summarizes a Warm pass.
type WarmStats struct {
	Total    int `json:"total"`
	Hits     int `json:"hits"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// New creates a cache over the given embedder and optional store.
func New(embedder Embedder, store db.CacheStore, opts Options) *Cache {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}

	hits, _ := meter.Int64Counter("embedcache.hits")
	misses, _ := meter.Int64Counter("embedcache.misses")
	storeFailures, _ := meter.Int64Counter("embedcache.store_failures")

	return &Cache{
		embedder:      embedder,
		store:         store,
		mem:           make(map[string]*models.CachedEmbedding),
		batchSize:     opts.BatchSize,
		batchDelay:    opts.BatchDelay,
		hits:          hits,
		misses:        misses,
		storeFailures: storeFailures,
	}
}

func memKey(entityType, entityID string) string {
	return entityType + ":" + entityID
}

// Get returns the cached vector for the entity if its content hash and model
// both match, checking memory first, then the store. A stale or foreign-model
// entry is a miss.
func (c *Cache) Get(ctx context.Context, entityType, entityID, contentHash string) ([]float32, bool) {
	key := memKey(entityType, entityID)

	c.mu.RLock()
	emb, ok := c.mem[key]
	c.mu.RUnlock()
	if ok && emb.ContentHash == contentHash && emb.Model == c.embedder.Name() {
		c.hits.Add(ctx, 1)
		return emb.Vector, true
	}

	if c.store != nil {
		emb, err := c.store.GetEmbedding(ctx, entityType, entityID)
		if err == nil && emb.ContentHash == contentHash && emb.Model == c.embedder.Name() {
			c.mu.Lock()
			c.mem[key] = emb
			c.mu.Unlock()
			c.hits.Add(ctx, 1)
			return emb.Vector, true
		}
	}

	c.misses.Add(ctx, 1)
	return nil, false
}

// Put records a freshly computed vector in memory and best-effort persists
// it. A store failure is logged and counted; the vector stays usable for the
// rest of the run.
func (c *Cache) Put(ctx context.Context, entityType, entityID, contentHash string, vector []float32) {
	emb := &models.CachedEmbedding{
		EntityType:  entityType,
		EntityID:    entityID,
		ContentHash: contentHash,
		Model:       c.embedder.Name(),
		Vector:      vector,
		CreatedAt:   time.Now().UTC(),
	}
	c.mu.Lock()
	c.mem[memKey(entityType, entityID)] = emb
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.PutEmbedding(ctx, emb); err != nil {
		c.storeFailures.Add(ctx, 1)
		log.Warn().Err(err).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("Failed to persist embedding, keeping in memory")
	}
}

// Fetch returns the embedding for a single entity, computing and caching it
// on a miss.
func (c *Cache) Fetch(ctx context.Context, entityType, entityID, text string) ([]float32, error) {
	hash := HashText(text)
	if vec, ok := c.Get(ctx, entityType, entityID, hash); ok {
		return vec, nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	c.Put(ctx, entityType, entityID, hash, vectors[0])
	return vectors[0], nil
}

// entry is one signal queued for embedding during Warm.
type entry struct {
	entityType string
	entityID   string
	hash       string
	text       string
}

// Warm ensures every signal has a cached embedding, embedding misses in
// batches. Each batch is persisted as soon as it returns, so a later failure
// never loses earlier work. A failed batch is logged and skipped; its signals
// count as Failed and the pass continues.
func (c *Cache) Warm(ctx context.Context, signals []*models.Signal) (WarmStats, error) {
	stats := WarmStats{Total: len(signals)}

	var pending []entry
	for _, s := range signals {
		entityType := models.EntityTypeFor(s)
		text := s.Text()
		hash := HashText(text)
		if _, ok := c.Get(ctx, entityType, s.SourceID, hash); ok {
			stats.Hits++
			continue
		}
		pending = append(pending, entry{
			entityType: entityType,
			entityID:   s.SourceID,
			hash:       hash,
			text:       text,
		})
	}

	for start := 0; start < len(pending); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := start + c.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if start > 0 && c.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.text
		}

		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			stats.Failed += len(batch)
			log.Warn().Err(err).
				Int("batch_size", len(batch)).
				Msg("Embedding batch failed, skipping its signals")
			continue
		}

		embs := make([]*models.CachedEmbedding, len(batch))
		now := time.Now().UTC()
		c.mu.Lock()
		for i, e := range batch {
			emb := &models.CachedEmbedding{
				EntityType:  e.entityType,
				EntityID:    e.entityID,
				ContentHash: e.hash,
				Model:       c.embedder.Name(),
				Vector:      vectors[i],
				CreatedAt:   now,
			}
			c.mem[memKey(e.entityType, e.entityID)] = emb
			embs[i] = emb
		}
		c.mu.Unlock()
		stats.Embedded += len(batch)

		if c.store != nil {
			if err := c.store.PutEmbeddingBatch(ctx, embs); err != nil {
				c.storeFailures.Add(ctx, int64(len(embs)))
				log.Warn().Err(err).
					Int("batch_size", len(embs)).
					Msg("Failed to persist embedding batch, keeping in memory")
			}
		}
	}

	log.Debug().
		Int("total", stats.Total).
		Int("hits", stats.Hits).
		Int("embedded", stats.Embedded).
		Int("failed", stats.Failed).
		Msg("Embedding cache warmed")
	return stats, nil
}

var _ Embedder = (*embedding.Service)(nil)
