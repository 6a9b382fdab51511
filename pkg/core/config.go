package core

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/consolidation"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/retrieval"
	"github.com/collectiq/agentmem-go/pkg/session"
)

// Config is the complete configuration for an agentmem client: the session
// cache, the vector archive, the LLM and embedding providers, the
// retrieval pipeline, and the consolidator.
//
// Example:
//
//	cfg := core.DefaultConfig()
//	cfg.Session.Provider = "redis"
//	cfg.Session.Redis.Addr = "localhost:6379"
//	cfg.Archive.Provider = "qdrant"
//	cfg.Archive.Qdrant.Host = "localhost"
//	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
//	cfg.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
type Config struct {
	// Session configures the TTL session cache.
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Archive configures the vector archive.
	Archive ArchiveConfig `json:"archive" mapstructure:"archive"`

	// LLM configures the language model provider.
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Embedder configures the embedding provider.
	Embedder EmbedderConfig `json:"embedder" mapstructure:"embedder"`

	// Retrieval tunes the context pipeline.
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// Consolidation tunes the background sweeps.
	Consolidation ConsolidationConfig `json:"consolidation" mapstructure:"consolidation"`

	// Logging sets the global log level and format.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// SessionConfig selects and tunes the session cache backend.
//
// Supported providers: redis, memory.
type SessionConfig struct {
	// Provider is the session store backend (redis, memory).
	Provider string `json:"provider" mapstructure:"provider"`

	// TTL is the session lifetime, refreshed on every mutation.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// Redis holds redis connection settings when Provider is "redis".
	Redis RedisConfig `json:"redis" mapstructure:"redis"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	// Addr is the redis host:port.
	Addr string `json:"addr" mapstructure:"addr"`

	// Password authenticates the connection (empty for none).
	Password string `json:"password,omitempty" mapstructure:"password"`

	// DB selects the redis logical database.
	DB int `json:"db" mapstructure:"db"`

	// KeyPrefix namespaces all agentmem keys.
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix"`
}

// ArchiveConfig selects and tunes the vector archive backend.
//
// Supported providers: qdrant, postgres, sqlite, chromem.
type ArchiveConfig struct {
	// Provider is the archive backend (qdrant, postgres, sqlite, chromem).
	Provider string `json:"provider" mapstructure:"provider"`

	// EpisodicCollection names the interaction collection.
	EpisodicCollection string `json:"episodic_collection" mapstructure:"episodic_collection"`

	// SemanticCollection names the strategy collection.
	SemanticCollection string `json:"semantic_collection" mapstructure:"semantic_collection"`

	// Dimensions is the embedding dimensionality of both collections.
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// Qdrant holds qdrant settings when Provider is "qdrant".
	Qdrant QdrantConfig `json:"qdrant" mapstructure:"qdrant"`

	// Postgres holds pgvector settings when Provider is "postgres".
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`

	// SQLite holds sqlite settings when Provider is "sqlite".
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`

	// Chromem holds chromem settings when Provider is "chromem".
	Chromem ChromemConfig `json:"chromem" mapstructure:"chromem"`
}

// QdrantConfig contains qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `json:"host" mapstructure:"host"`
	Port   int    `json:"port" mapstructure:"port"`
	APIKey string `json:"api_key,omitempty" mapstructure:"api_key"`
	UseTLS bool   `json:"use_tls" mapstructure:"use_tls"`
}

// PostgresConfig contains postgres/pgvector connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password,omitempty" mapstructure:"password"`
	DBName   string `json:"db_name" mapstructure:"db_name"`
	SSLMode  string `json:"ssl_mode" mapstructure:"ssl_mode"`
}

// SQLiteConfig contains the embedded sqlite settings.
type SQLiteConfig struct {
	// Path is the database file. Empty uses an in-memory database.
	Path string `json:"path" mapstructure:"path"`
}

// ChromemConfig contains the embedded chromem settings.
type ChromemConfig struct {
	// Path persists the database to disk. Empty keeps it in memory.
	Path string `json:"path" mapstructure:"path"`

	// Compress gzips the persisted files.
	Compress bool `json:"compress" mapstructure:"compress"`
}

// LLMConfig configures the language model provider.
//
// Supported providers: openai, anthropic.
type LLMConfig struct {
	// Provider is the LLM provider name (openai, anthropic).
	Provider string `json:"provider" mapstructure:"provider"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model is the model name (e.g. "gpt-4o-mini").
	Model string `json:"model" mapstructure:"model"`

	// BaseURL overrides the provider endpoint (optional).
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout bounds every completion call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// EmbedderConfig configures the embedding provider.
//
// Supported providers: openai.
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai).
	Provider string `json:"provider" mapstructure:"provider"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model is the embedding model (e.g. "text-embedding-3-small").
	Model string `json:"model" mapstructure:"model"`

	// BaseURL overrides the provider endpoint (optional).
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	// Dimensions is the embedding dimensionality.
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// CacheSize is the read-through cache capacity in entries. Zero
	// disables caching.
	CacheSize int64 `json:"cache_size" mapstructure:"cache_size"`

	// Timeout bounds every embedding call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// RetrievalConfig tunes the context pipeline.
type RetrievalConfig struct {
	// MaxConcurrentRetrievals bounds the search fan-out.
	MaxConcurrentRetrievals int `json:"max_concurrent_retrievals" mapstructure:"max_concurrent_retrievals"`

	// MaxSubtasks caps query decomposition.
	MaxSubtasks int `json:"max_subtasks" mapstructure:"max_subtasks"`

	// MaxLimit caps the widened result limit.
	MaxLimit int `json:"max_limit" mapstructure:"max_limit"`

	// ScoreThreshold excludes weak matches. Negative disables the floor.
	ScoreThreshold float64 `json:"score_threshold" mapstructure:"score_threshold"`
}

// ConsolidationConfig tunes the background sweeps.
type ConsolidationConfig struct {
	// Enabled starts the schedules with the client. Sweeps can still be
	// run explicitly when disabled.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// SweepInterval is how often expired sessions are drained.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval"`

	// RetentionInterval is how often the age purge runs.
	RetentionInterval time.Duration `json:"retention_interval" mapstructure:"retention_interval"`

	// RetentionMaxAge is the episodic age beyond which records are purged.
	RetentionMaxAge time.Duration `json:"retention_max_age" mapstructure:"retention_max_age"`

	// SweepBatchSize caps sessions drained per sweep.
	SweepBatchSize int `json:"sweep_batch_size" mapstructure:"sweep_batch_size"`

	// Concurrency bounds the per-sweep worker pool.
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`

	// StrategyMergeThreshold folds near-duplicate strategies together.
	StrategyMergeThreshold float64 `json:"strategy_merge_threshold" mapstructure:"strategy_merge_threshold"`
}

// LoggingConfig sets the global log level and format.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the output format (text, json).
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig returns a configuration with every tunable at its default:
// in-memory session cache, embedded chromem archive, openai providers, and
// consolidation enabled.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Provider: "memory",
			TTL:      session.DefaultTTL,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "agentmem",
			},
		},
		Archive: ArchiveConfig{
			Provider:           "chromem",
			EpisodicCollection: archive.CollectionEpisodic,
			SemanticCollection: archive.CollectionSemantic,
			Dimensions:         archive.DefaultDimensions,
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "postgres",
				DBName:  "agentmem",
				SSLMode: "disable",
			},
			SQLite: SQLiteConfig{
				Path: "./agentmem.db",
			},
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
		Embedder: EmbedderConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: archive.DefaultDimensions,
			CacheSize:  10_000,
			Timeout:    30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			MaxConcurrentRetrievals: retrieval.DefaultMaxConcurrentRetrievals,
			MaxSubtasks:             retrieval.DefaultMaxSubtasks,
			MaxLimit:                retrieval.DefaultMaxLimit,
			ScoreThreshold:          retrieval.DefaultScoreThreshold,
		},
		Consolidation: ConsolidationConfig{
			Enabled:                true,
			SweepInterval:          consolidation.DefaultSweepInterval,
			RetentionInterval:      consolidation.DefaultRetentionInterval,
			RetentionMaxAge:        consolidation.DefaultRetentionMaxAge,
			SweepBatchSize:         consolidation.DefaultSweepBatchSize,
			Concurrency:            consolidation.DefaultConcurrency,
			StrategyMergeThreshold: consolidation.DefaultStrategyMergeThreshold,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFromEnv builds a configuration from AGENTMEM_* environment
// variables on top of the defaults.
//
// The function first loads a .env file when one exists, searching the
// current directory and up to five levels of parents.
//
// Selected variables:
//   - AGENTMEM_SESSION_PROVIDER, AGENTMEM_SESSION_TTL
//   - AGENTMEM_REDIS_ADDR, AGENTMEM_REDIS_PASSWORD, AGENTMEM_REDIS_DB,
//     AGENTMEM_REDIS_KEY_PREFIX
//   - AGENTMEM_ARCHIVE_PROVIDER, AGENTMEM_ARCHIVE_DIMENSIONS,
//     AGENTMEM_EPISODIC_COLLECTION, AGENTMEM_SEMANTIC_COLLECTION
//   - AGENTMEM_QDRANT_HOST, AGENTMEM_QDRANT_PORT, AGENTMEM_QDRANT_API_KEY,
//     AGENTMEM_QDRANT_USE_TLS
//   - AGENTMEM_POSTGRES_HOST, AGENTMEM_POSTGRES_PORT, AGENTMEM_POSTGRES_USER,
//     AGENTMEM_POSTGRES_PASSWORD, AGENTMEM_POSTGRES_DATABASE,
//     AGENTMEM_POSTGRES_SSLMODE
//   - AGENTMEM_SQLITE_PATH, AGENTMEM_CHROMEM_PATH, AGENTMEM_CHROMEM_COMPRESS
//   - AGENTMEM_LLM_PROVIDER, AGENTMEM_LLM_API_KEY, AGENTMEM_LLM_MODEL,
//     AGENTMEM_LLM_BASE_URL, AGENTMEM_LLM_TIMEOUT
//   - AGENTMEM_EMBEDDING_PROVIDER, AGENTMEM_EMBEDDING_API_KEY,
//     AGENTMEM_EMBEDDING_MODEL, AGENTMEM_EMBEDDING_DIMENSIONS,
//     AGENTMEM_EMBEDDING_CACHE_SIZE
//   - AGENTMEM_LOG_LEVEL, AGENTMEM_LOG_FORMAT
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	cfg.Session.Provider = getEnvOrDefault("AGENTMEM_SESSION_PROVIDER", cfg.Session.Provider)
	cfg.Session.TTL = getEnvDuration("AGENTMEM_SESSION_TTL", cfg.Session.TTL)
	cfg.Session.Redis.Addr = getEnvOrDefault("AGENTMEM_REDIS_ADDR", cfg.Session.Redis.Addr)
	cfg.Session.Redis.Password = os.Getenv("AGENTMEM_REDIS_PASSWORD")
	cfg.Session.Redis.DB = getEnvInt("AGENTMEM_REDIS_DB", cfg.Session.Redis.DB)
	cfg.Session.Redis.KeyPrefix = getEnvOrDefault("AGENTMEM_REDIS_KEY_PREFIX", cfg.Session.Redis.KeyPrefix)

	cfg.Archive.Provider = getEnvOrDefault("AGENTMEM_ARCHIVE_PROVIDER", cfg.Archive.Provider)
	cfg.Archive.EpisodicCollection = getEnvOrDefault("AGENTMEM_EPISODIC_COLLECTION", cfg.Archive.EpisodicCollection)
	cfg.Archive.SemanticCollection = getEnvOrDefault("AGENTMEM_SEMANTIC_COLLECTION", cfg.Archive.SemanticCollection)
	cfg.Archive.Dimensions = getEnvInt("AGENTMEM_ARCHIVE_DIMENSIONS", cfg.Archive.Dimensions)
	cfg.Archive.Qdrant.Host = getEnvOrDefault("AGENTMEM_QDRANT_HOST", cfg.Archive.Qdrant.Host)
	cfg.Archive.Qdrant.Port = getEnvInt("AGENTMEM_QDRANT_PORT", cfg.Archive.Qdrant.Port)
	cfg.Archive.Qdrant.APIKey = os.Getenv("AGENTMEM_QDRANT_API_KEY")
	cfg.Archive.Qdrant.UseTLS = getEnvBool("AGENTMEM_QDRANT_USE_TLS", cfg.Archive.Qdrant.UseTLS)
	cfg.Archive.Postgres.Host = getEnvOrDefault("AGENTMEM_POSTGRES_HOST", cfg.Archive.Postgres.Host)
	cfg.Archive.Postgres.Port = getEnvInt("AGENTMEM_POSTGRES_PORT", cfg.Archive.Postgres.Port)
	cfg.Archive.Postgres.User = getEnvOrDefault("AGENTMEM_POSTGRES_USER", cfg.Archive.Postgres.User)
	cfg.Archive.Postgres.Password = os.Getenv("AGENTMEM_POSTGRES_PASSWORD")
	cfg.Archive.Postgres.DBName = getEnvOrDefault("AGENTMEM_POSTGRES_DATABASE", cfg.Archive.Postgres.DBName)
	cfg.Archive.Postgres.SSLMode = getEnvOrDefault("AGENTMEM_POSTGRES_SSLMODE", cfg.Archive.Postgres.SSLMode)
	cfg.Archive.SQLite.Path = getEnvOrDefault("AGENTMEM_SQLITE_PATH", cfg.Archive.SQLite.Path)
	cfg.Archive.Chromem.Path = getEnvOrDefault("AGENTMEM_CHROMEM_PATH", cfg.Archive.Chromem.Path)
	cfg.Archive.Chromem.Compress = getEnvBool("AGENTMEM_CHROMEM_COMPRESS", cfg.Archive.Chromem.Compress)

	cfg.LLM.Provider = getEnvOrDefault("AGENTMEM_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.APIKey = getEnvOrDefault("AGENTMEM_LLM_API_KEY", os.Getenv("OPENAI_API_KEY"))
	cfg.LLM.Model = getEnvOrDefault("AGENTMEM_LLM_MODEL", defaultModelFor(cfg.LLM.Provider))
	cfg.LLM.BaseURL = os.Getenv("AGENTMEM_LLM_BASE_URL")
	cfg.LLM.Timeout = getEnvDuration("AGENTMEM_LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Embedder.Provider = getEnvOrDefault("AGENTMEM_EMBEDDING_PROVIDER", cfg.Embedder.Provider)
	cfg.Embedder.APIKey = getEnvOrDefault("AGENTMEM_EMBEDDING_API_KEY", cfg.LLM.APIKey)
	cfg.Embedder.Model = getEnvOrDefault("AGENTMEM_EMBEDDING_MODEL", cfg.Embedder.Model)
	cfg.Embedder.BaseURL = os.Getenv("AGENTMEM_EMBEDDING_BASE_URL")
	cfg.Embedder.Dimensions = getEnvInt("AGENTMEM_EMBEDDING_DIMENSIONS", cfg.Embedder.Dimensions)
	cfg.Embedder.CacheSize = int64(getEnvInt("AGENTMEM_EMBEDDING_CACHE_SIZE", int(cfg.Embedder.CacheSize)))
	cfg.Embedder.Timeout = getEnvDuration("AGENTMEM_EMBEDDING_TIMEOUT", cfg.Embedder.Timeout)

	cfg.Retrieval.MaxConcurrentRetrievals = getEnvInt("AGENTMEM_RETRIEVAL_MAX_CONCURRENT", cfg.Retrieval.MaxConcurrentRetrievals)
	cfg.Retrieval.MaxSubtasks = getEnvInt("AGENTMEM_RETRIEVAL_MAX_SUBTASKS", cfg.Retrieval.MaxSubtasks)
	cfg.Retrieval.MaxLimit = getEnvInt("AGENTMEM_RETRIEVAL_MAX_LIMIT", cfg.Retrieval.MaxLimit)
	cfg.Retrieval.ScoreThreshold = getEnvFloat("AGENTMEM_RETRIEVAL_SCORE_THRESHOLD", cfg.Retrieval.ScoreThreshold)

	cfg.Consolidation.Enabled = getEnvBool("AGENTMEM_CONSOLIDATION_ENABLED", cfg.Consolidation.Enabled)
	cfg.Consolidation.SweepInterval = getEnvDuration("AGENTMEM_CONSOLIDATION_SWEEP_INTERVAL", cfg.Consolidation.SweepInterval)
	cfg.Consolidation.RetentionInterval = getEnvDuration("AGENTMEM_CONSOLIDATION_RETENTION_INTERVAL", cfg.Consolidation.RetentionInterval)
	cfg.Consolidation.RetentionMaxAge = getEnvDuration("AGENTMEM_CONSOLIDATION_RETENTION_MAX_AGE", cfg.Consolidation.RetentionMaxAge)
	cfg.Consolidation.SweepBatchSize = getEnvInt("AGENTMEM_CONSOLIDATION_SWEEP_BATCH_SIZE", cfg.Consolidation.SweepBatchSize)
	cfg.Consolidation.Concurrency = getEnvInt("AGENTMEM_CONSOLIDATION_CONCURRENCY", cfg.Consolidation.Concurrency)
	cfg.Consolidation.StrategyMergeThreshold = getEnvFloat("AGENTMEM_CONSOLIDATION_MERGE_THRESHOLD", cfg.Consolidation.StrategyMergeThreshold)

	cfg.Logging.Level = getEnvOrDefault("AGENTMEM_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvOrDefault("AGENTMEM_LOG_FORMAT", cfg.Logging.Format)

	return cfg, nil
}

// LoadConfigFromFile reads a YAML configuration file on top of the
// defaults. AGENTMEM_* environment variables override file values
// (AGENTMEM_ARCHIVE_PROVIDER overrides archive.provider, and so on).
func LoadConfigFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("AGENTMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, memerr.Configuration("core.config", "read %s: %v", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, memerr.Configuration("core.config", "parse %s: %v", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration names known providers and carries
// the credentials they need. Failures wrap memerr.ErrConfiguration and name
// the offending field.
//
// NewClient validates each section lazily, so a section whose component is
// injected via a ClientOption is never checked. Validate checks all of them,
// as a pre-flight for configs loaded from the environment or a file.
func (c *Config) Validate() error {
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.validateEmbedder()
}

func (c *Config) validateSession() error {
	switch c.Session.Provider {
	case "memory", "":
	case "redis":
		if c.Session.Redis.Addr == "" {
			return memerr.Configuration("core.config", "session.redis.addr is required for the redis provider")
		}
	default:
		return memerr.Configuration("core.config", "unknown session provider %q", c.Session.Provider)
	}
	return nil
}

func (c *Config) validateArchive() error {
	switch c.Archive.Provider {
	case "chromem", "sqlite", "":
	case "qdrant":
		if c.Archive.Qdrant.Host == "" {
			return memerr.Configuration("core.config", "archive.qdrant.host is required for the qdrant provider")
		}
	case "postgres":
		if c.Archive.Postgres.Host == "" {
			return memerr.Configuration("core.config", "archive.postgres.host is required for the postgres provider")
		}
	default:
		return memerr.Configuration("core.config", "unknown archive provider %q", c.Archive.Provider)
	}
	if c.Archive.Dimensions < 0 {
		return memerr.Configuration("core.config", "archive.dimensions must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "":
		if c.LLM.APIKey == "" {
			return memerr.Configuration("core.config", "llm.api_key is required")
		}
	default:
		return memerr.Configuration("core.config", "unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

func (c *Config) validateEmbedder() error {
	switch c.Embedder.Provider {
	case "openai", "":
		if c.Embedder.APIKey == "" {
			return memerr.Configuration("core.config", "embedder.api_key is required")
		}
	default:
		return memerr.Configuration("core.config", "unknown embedder provider %q", c.Embedder.Provider)
	}
	return nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-sonnet-20240620"
	default:
		return "gpt-4o-mini"
	}
}

// getEnvOrDefault gets an environment variable or returns the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// FindEnvFile searches for a .env or .env.example file, checking the
// current directory and then up to five parent directories.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		examplePath := filepath.Join(dir, ".env.example")
		if _, err := os.Stat(examplePath); err == nil {
			return examplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
