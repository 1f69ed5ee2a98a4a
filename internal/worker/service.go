// Package worker provides the HTTP worker service for cohort: classification
// and correlation runs exposed over a local REST API.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/cohort/internal/catalog"
	"github.com/thebtf/cohort/internal/classify"
	"github.com/thebtf/cohort/internal/config"
	"github.com/thebtf/cohort/internal/correlate"
	"github.com/thebtf/cohort/internal/db"
	dbpostgres "github.com/thebtf/cohort/internal/db/postgres"
	dbredis "github.com/thebtf/cohort/internal/db/redis"
	dbsqlite "github.com/thebtf/cohort/internal/db/sqlite"
	"github.com/thebtf/cohort/internal/embedcache"
	"github.com/thebtf/cohort/internal/embedding"
	"github.com/thebtf/cohort/pkg/models"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests. Correlation
	// runs over large populations can take a while when embeddings are cold.
	DefaultHTTPTimeout = 120 * time.Second

	// MaxRequestBody caps request payload size.
	MaxRequestBody = 32 << 20 // 32 MiB

	// requestRate and requestBurst bound the shared token bucket.
	requestRate  = 20.0
	requestBurst = 40
)

// Service is the worker service orchestrator. It owns the store, the
// embedding cache, and the feature catalog, and builds a classifier and
// correlator per request so each run sees a consistent snapshot.
type Service struct {
	version string
	config  *config.Config

	cacheStore db.CacheStore // nil when no backend configured
	groupStore db.GroupStore // nil when backend has no group support

	embedSvc *embedding.Service // nil when no provider available
	cache    *embedcache.Cache  // nil when embedSvc is nil

	catalogWatcher *catalog.Watcher
	featuresMu     sync.RWMutex
	features       []*models.Feature

	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates the worker service: opens the configured store, builds
// the embedding stack when a provider is available, and loads the feature
// catalog. A missing provider or catalog degrades features, it never blocks
// startup.
func NewService(version string) (*Service, error) {
	cfg := config.Get()
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:   version,
		config:    cfg,
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	if err := config.EnsureDataDir(); err != nil {
		cancel()
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	if err := svc.openStore(); err != nil {
		cancel()
		return nil, err
	}

	svc.initEmbedding()

	if err := svc.loadCatalog(); err != nil {
		log.Warn().Err(err).Msg("Failed to load feature catalog, feature mapping disabled")
	}

	svc.setupMiddleware()
	svc.setupRoutes()

	return svc, nil
}

// openStore opens the configured persistence backend.
func (s *Service) openStore() error {
	switch s.config.StoreBackend {
	case "sqlite", "":
		store, err := dbsqlite.NewStore(dbsqlite.StoreConfig{
			Path:     s.config.SQLitePath,
			MaxConns: s.config.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		s.cacheStore = store
		s.groupStore = store
	case "postgres":
		store, err := dbpostgres.NewStore(dbpostgres.StoreConfig{
			DSN:      s.config.PostgresDSN,
			MaxConns: s.config.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		s.cacheStore = store
		s.groupStore = store
	case "redis":
		store, err := dbredis.NewStore(dbredis.StoreConfig{
			Addr:     s.config.RedisAddr,
			MaxConns: s.config.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("open redis store: %w", err)
		}
		s.cacheStore = store
		// Redis carries the embedding cache only; group write-back is skipped.
	default:
		return fmt.Errorf("unknown store backend %q", s.config.StoreBackend)
	}

	log.Info().Str("backend", s.config.StoreBackend).Msg("Store opened")
	return nil
}

// initEmbedding builds the embedding service and cache when a provider is
// configured. Failure means lexical-only operation, not a startup error.
func (s *Service) initEmbedding() {
	if s.config.Embedding.Provider == "" {
		log.Info().Msg("No embedding provider configured, running lexical-only")
		return
	}

	embedSvc, err := embedding.NewService(s.config.Embedding, s.config.RetryAttempts)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding provider unavailable, running lexical-only")
		return
	}

	s.embedSvc = embedSvc
	s.cache = embedcache.New(embedSvc, s.cacheStore, embedcache.Options{
		BatchSize:  s.config.BatchSize,
		BatchDelay: time.Duration(s.config.BatchDelayMS) * time.Millisecond,
	})
	log.Info().
		Str("model", embedSvc.Name()).
		Int("dimensions", embedSvc.Dimensions()).
		Msg("Embedding provider ready")
}

// loadCatalog loads the feature catalog, warms feature embeddings when
// possible, and starts the file watcher for hot reload.
func (s *Service) loadCatalog() error {
	features, err := catalog.Load(s.config.CatalogPath)
	if err != nil {
		return err
	}
	s.setFeatures(features)

	watcher, err := catalog.NewWatcher(s.config.CatalogPath, s.setFeatures)
	if err != nil {
		log.Warn().Err(err).Msg("Catalog watcher unavailable, edits need a restart")
	} else {
		s.catalogWatcher = watcher
	}

	log.Info().Int("features", len(features)).Msg("Feature catalog loaded")
	return nil
}

func (s *Service) setFeatures(features []*models.Feature) {
	if s.cache != nil && len(features) > 0 {
		if err := catalog.EmbedFeatures(s.ctx, s.cache, features); err != nil {
			log.Warn().Err(err).Msg("Failed to warm feature embeddings")
		}
	}

	s.featuresMu.Lock()
	s.features = features
	s.featuresMu.Unlock()
}

func (s *Service) getFeatures() []*models.Feature {
	s.featuresMu.RLock()
	defer s.featuresMu.RUnlock()
	return s.features
}

// newStrategy builds the scoring strategy for one classification run:
// embedding with lexical fallback when a provider is available, lexical
// otherwise.
func (s *Service) newStrategy() classify.Strategy {
	lexical := classify.NewLexicalStrategy()
	if s.cache == nil {
		return lexical
	}
	return classify.NewFallback(classify.NewEmbeddingStrategy(s.cache), lexical)
}

// newCorrelator builds a correlator for one run. The threshold argument
// overrides the configured default when positive.
func (s *Service) newCorrelator(threshold float64) *correlate.Correlator {
	var sim correlate.Similarity
	if s.cache != nil {
		sim = correlate.EmbeddingSimilarity(s.cache)
		if threshold <= 0 {
			threshold = s.config.ClusterThreshold
		}
	} else {
		sim = correlate.LexicalSimilarity()
		if threshold <= 0 {
			threshold = s.config.LexicalClusterThreshold
		}
	}

	c := correlate.New(sim, threshold, s.config)

	features := s.getFeatures()
	if len(features) > 0 {
		mapper := correlate.NewFeatureMapper(s.cache, features,
			s.config.FeatureThreshold, s.config.MaxFeatures)
		c = c.WithFeatureMapper(mapper)
	}
	return c
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(MaxBodySize(MaxRequestBody))
	s.router.Use(RequireJSONContentType)
	s.router.Use(RateLimitMiddleware(NewRateLimiter(requestRate, requestBurst)))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/features", s.handleGetFeatures)

	s.router.Post("/api/classify", s.handleClassify)
	s.router.Post("/api/correlate", s.handleCorrelate)
	s.router.Post("/api/groups/by-issue", s.handleGroupByIssue)
	s.router.Post("/api/duplicates", s.handleDuplicates)
}

// Start starts the HTTP server.
func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", s.config.WorkerPort).Msg("Worker listening")
	return nil
}

// Shutdown gracefully stops the service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	if s.catalogWatcher != nil {
		_ = s.catalogWatcher.Close()
	}

	var firstErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}

	if s.embedSvc != nil {
		if err := s.embedSvc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.cacheStore != nil {
		if err := s.cacheStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
