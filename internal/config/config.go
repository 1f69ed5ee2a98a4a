// Package config provides configuration management for cohort.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38111

	// DefaultBatchSize is the number of texts sent per embedding-provider
	// call.
	DefaultBatchSize = 32

	// DefaultBatchDelayMS is the pause between embedding batches, in
	// milliseconds, to stay under provider rate limits.
	DefaultBatchDelayMS = 250

	// DefaultEmbeddingModel is the provider model used when none is
	// configured.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimensions matches DefaultEmbeddingModel.
	DefaultEmbeddingDimensions = 1536
)

// Default similarity thresholds. Cluster thresholds are on the normalized
// [0,1] scale; MinMatchScore is on the [0,100] classifier scale.
const (
	DefaultClusterThreshold        = 0.6
	DefaultLexicalClusterThreshold = 0.5
	DefaultDuplicateThreshold      = 0.9
	DefaultFeatureThreshold        = 0.5
	DefaultMinMatchScore           = 60.0
)

// MaxMatchesPerMessage caps the ranked candidate issues kept per classified
// message.
const MaxMatchesPerMessage = 5

// EmbeddingConfig holds embedding-provider settings. The API key is read
// from the environment only, never from the settings file.
type EmbeddingConfig struct {
	Provider   string `json:"provider"` // "openai" or "" to disable
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	APIKey     string `json:"-"`
}

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Store backend: "sqlite", "postgres", or "redis".
	StoreBackend string `json:"store_backend"`
	SQLitePath   string `json:"sqlite_path"`
	PostgresDSN  string `json:"postgres_dsn"`
	RedisAddr    string `json:"redis_addr"`
	MaxConns     int    `json:"max_conns"`

	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding"`

	// Pipeline tuning
	BatchSize     int `json:"batch_size"`
	BatchDelayMS  int `json:"batch_delay_ms"`
	MaxParallel   int `json:"max_parallel"`
	RetryAttempts int `json:"retry_attempts"`

	// Similarity thresholds
	ClusterThreshold        float64 `json:"cluster_threshold"`
	LexicalClusterThreshold float64 `json:"lexical_cluster_threshold"`
	DuplicateThreshold      float64 `json:"duplicate_threshold"`
	FeatureThreshold        float64 `json:"feature_threshold"`
	MinMatchScore           float64 `json:"min_match_score"`

	// Correlation output shaping
	MaxGroups   int `json:"max_groups"`
	MaxFeatures int `json:"max_features"`

	// Feature catalog
	CatalogPath string `json:"catalog_path"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// DataDir returns the data directory path (~/.cohort).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cohort")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:   DefaultWorkerPort,
		StoreBackend: "sqlite",
		SQLitePath:   filepath.Join(DataDir(), "cohort.db"),
		MaxConns:     4,
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      DefaultEmbeddingModel,
			Dimensions: DefaultEmbeddingDimensions,
		},
		BatchSize:               DefaultBatchSize,
		BatchDelayMS:            DefaultBatchDelayMS,
		MaxParallel:             4,
		RetryAttempts:           3,
		ClusterThreshold:        DefaultClusterThreshold,
		LexicalClusterThreshold: DefaultLexicalClusterThreshold,
		DuplicateThreshold:      DefaultDuplicateThreshold,
		FeatureThreshold:        DefaultFeatureThreshold,
		MinMatchScore:           DefaultMinMatchScore,
		MaxGroups:               50,
		MaxFeatures:             5,
		CatalogPath:             filepath.Join(DataDir(), "features.yaml"),
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		// Unmarshal over the defaults so absent fields keep them.
		if err := json.Unmarshal(data, cfg); err != nil {
			cfg = Default() // Return defaults on parse error
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv applies COHORT_* environment overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COHORT_WORKER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.WorkerPort = p
		}
	}
	if v := os.Getenv("COHORT_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("COHORT_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("COHORT_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("COHORT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("COHORT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("COHORT_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("COHORT_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("COHORT_EMBEDDING_DIMENSIONS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			cfg.Embedding.Dimensions = d
		}
	}
	if v := os.Getenv("COHORT_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	cfg.Embedding.APIKey = os.Getenv("COHORT_EMBEDDING_API_KEY")
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})
	return globalConfig
}
