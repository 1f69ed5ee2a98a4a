package embedcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/cohort/internal/db"
	"github.com/thebtf/cohort/pkg/models"
)

// fakeEmbedder returns deterministic vectors derived from text length and
// counts provider calls. failAfter, when positive, fails every batch after
// that many successful calls.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failAfter int
	modelName string
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{modelName: "fake-model"}
}

func (f *fakeEmbedder) Name() string    { return f.modelName }
func (f *fakeEmbedder) Dimensions() int { return 3 }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memStore is an in-memory CacheStore that can be switched to fail writes.
type memStore struct {
	mu         sync.Mutex
	data       map[string]*models.CachedEmbedding
	failWrites bool
	puts       int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]*models.CachedEmbedding)}
}

func (m *memStore) GetEmbedding(ctx context.Context, entityType, entityID string) (*models.CachedEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	emb, ok := m.data[entityType+":"+entityID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return emb, nil
}

func (m *memStore) PutEmbedding(ctx context.Context, emb *models.CachedEmbedding) error {
	return m.PutEmbeddingBatch(ctx, []*models.CachedEmbedding{emb})
}

func (m *memStore) PutEmbeddingBatch(ctx context.Context, embs []*models.CachedEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("disk full")
	}
	for _, emb := range embs {
		m.data[emb.EntityType+":"+emb.EntityID] = emb
		m.puts++
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func signal(id, body string) *models.Signal {
	return &models.Signal{
		Source:   models.SourceChatThread,
		SourceID: id,
		Body:     body,
	}
}

func TestCache_ContentChangeInvalidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := newFakeEmbedder()
	store := newMemStore()
	cache := New(embedder, store, Options{})

	original := "the payment webhook times out"
	vec, err := cache.Fetch(ctx, models.EntityTypeThread, "t1", original)
	require.NoError(t, err)
	require.Len(t, vec, 3)
	assert.Equal(t, 1, embedder.callCount())

	// Same content hits both layers, no provider call.
	_, err = cache.Fetch(ctx, models.EntityTypeThread, "t1", original)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.callCount())

	// Edited content under the same ID is a miss.
	_, err = cache.Fetch(ctx, models.EntityTypeThread, "t1", original+" since yesterday")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount())
}

func TestCache_RevertedContentHitsStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := newFakeEmbedder()
	store := newMemStore()

	cache := New(embedder, store, Options{})
	original := "export fails on large CSV files"
	_, err := cache.Fetch(ctx, models.EntityTypeIssue, "i1", original)
	require.NoError(t, err)

	// A fresh cache (new run) with the same store: the persisted vector for
	// the original content is reused without a provider call.
	cache2 := New(embedder, store, Options{})
	_, ok := cache2.Get(ctx, models.EntityTypeIssue, "i1", HashText(original))
	assert.True(t, ok)
	assert.Equal(t, 1, embedder.callCount())
}

func TestCache_ModelMismatchIsMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newMemStore()
	first := newFakeEmbedder()
	cache := New(first, store, Options{})
	text := "login loop after password reset"
	_, err := cache.Fetch(ctx, models.EntityTypeThread, "t9", text)
	require.NoError(t, err)

	second := newFakeEmbedder()
	second.modelName = "other-model"
	cache2 := New(second, store, Options{})
	_, ok := cache2.Get(ctx, models.EntityTypeThread, "t9", HashText(text))
	assert.False(t, ok, "a vector from another model must not be reused")
}

func TestCache_WarmBatchesAndStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := newFakeEmbedder()
	store := newMemStore()
	cache := New(embedder, store, Options{BatchSize: 4})

	signals := make([]*models.Signal, 10)
	for i := range signals {
		signals[i] = signal(fmt.Sprintf("t%d", i), fmt.Sprintf("thread body %d", i))
	}

	stats, err := cache.Warm(ctx, signals)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 10, stats.Embedded)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, embedder.callCount(), "10 signals at batch size 4")
	assert.Equal(t, 10, store.count())

	// Second pass is all hits.
	stats, err = cache.Warm(ctx, signals)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Hits)
	assert.Equal(t, 0, stats.Embedded)
	assert.Equal(t, 3, embedder.callCount())
}

func TestCache_WarmPersistsPartialProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := newFakeEmbedder()
	embedder.failAfter = 1 // first batch succeeds, rest fail
	store := newMemStore()
	cache := New(embedder, store, Options{BatchSize: 4})

	signals := make([]*models.Signal, 10)
	for i := range signals {
		signals[i] = signal(fmt.Sprintf("t%d", i), fmt.Sprintf("thread body %d", i))
	}

	stats, err := cache.Warm(ctx, signals)
	require.NoError(t, err, "failed batches are skipped, not fatal")
	assert.Equal(t, 4, stats.Embedded)
	assert.Equal(t, 6, stats.Failed)
	assert.Equal(t, 4, store.count(), "first batch must survive later failures")
}

func TestCache_StoreWriteFailureKeepsVectorInMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := newFakeEmbedder()
	store := newMemStore()
	store.failWrites = true
	cache := New(embedder, store, Options{})

	text := "dashboard widgets render blank"
	vec, err := cache.Fetch(ctx, models.EntityTypeThread, "t1", text)
	require.NoError(t, err, "persistence failure must not fail the computation")
	require.NotNil(t, vec)

	// Still served from memory for the rest of the run.
	_, ok := cache.Get(ctx, models.EntityTypeThread, "t1", HashText(text))
	assert.True(t, ok)
	assert.Equal(t, 1, embedder.callCount())
}

func TestCache_MemoryOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	embedder := newFakeEmbedder()
	cache := New(embedder, nil, Options{})

	_, err := cache.Fetch(ctx, models.EntityTypeIssue, "i1", "no store configured")
	require.NoError(t, err)
	_, ok := cache.Get(ctx, models.EntityTypeIssue, "i1", HashText("no store configured"))
	assert.True(t, ok)
}

func TestHashText(t *testing.T) {
	t.Parallel()

	a := HashText("same text")
	b := HashText("same text")
	c := HashText("same text ")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
