// Package config provides process-wide configuration management for the
// engine: environment-specific settings, validation with struct tags, and
// sensible env-var defaults. Grounded on backend's internal/config/config.go
// (struct-tag validation via go-playground/validator, getEnv* loaders,
// environment-specific overrides), generalized from the HTTP/DynamoDB app
// it was written for to this engine's ambient stack plus its domain-tunable
// knobs (spec.md §6.4).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete process configuration: ambient sections (server,
// storage, cache, logging, tracing, security) plus the domain-tunable
// sections spec.md §6.4 lists as configuration surface.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment" validate:"required,oneof=development staging production"`

	Server   Server   `yaml:"server" json:"server" validate:"required,dive"`
	Postgres Postgres `yaml:"postgres" json:"postgres" validate:"required,dive"`
	DynamoDB DynamoDB `yaml:"dynamodb" json:"dynamodb" validate:"required,dive"`
	Cache    Cache    `yaml:"cache" json:"cache" validate:"dive"`
	Logging  Logging  `yaml:"logging" json:"logging" validate:"dive"`
	Metrics  Metrics  `yaml:"metrics" json:"metrics" validate:"dive"`
	Tracing  Tracing  `yaml:"tracing" json:"tracing" validate:"dive"`
	Security Security `yaml:"security" json:"security" validate:"required,dive"`

	Embedding  EmbeddingDefaults `yaml:"embedding" json:"embedding" validate:"dive"`
	AI         AIDefaults        `yaml:"ai" json:"ai" validate:"dive"`
	Ingest     Ingest            `yaml:"ingest" json:"ingest" validate:"dive"`
	Merge      Merge             `yaml:"merge" json:"merge" validate:"dive"`
	Grounding  Grounding         `yaml:"grounding" json:"grounding" validate:"dive"`
	Vocab      Vocab             `yaml:"vocab" json:"vocab" validate:"dive"`
	Annealing  Annealing         `yaml:"annealing" json:"annealing" validate:"dive"`
	Scheduler  Scheduler         `yaml:"scheduler" json:"scheduler" validate:"dive"`
	Resource   Resource          `yaml:"resource" json:"resource" validate:"dive"`

	// DevelopmentMode gates where provider credentials are read from:
	// environment when true, the ConfigStore (via secrets.Vault) when false. No
	// silent environment fallback in production (spec.md §6.4).
	DevelopmentMode bool `yaml:"development_mode" json:"development_mode"`
}

// Server is the HTTP server configuration (interfaces/http/rest).
type Server struct {
	Port            int           `yaml:"port" json:"port" validate:"required,min=1,max=65535"`
	Host            string        `yaml:"host" json:"host" validate:"required,hostname|ip"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"required,min=1s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"required,min=1s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"required,min=1s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `yaml:"max_request_size" json:"max_request_size" validate:"required,min=1024"`
}

// Postgres configures the relational store (jobs, scheduled tasks,
// vocabulary registry, source embeddings, encrypted keys) accessed via
// jackc/pgx.
type Postgres struct {
	DSN            string        `yaml:"dsn" json:"dsn" validate:"required"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections" validate:"min=2,max=100"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"min=1s"`
	AdvisoryLockKey int64        `yaml:"advisory_lock_key" json:"advisory_lock_key"`
}

// DynamoDB configures the single-table concept graph store.
type DynamoDB struct {
	TableName  string `yaml:"table_name" json:"table_name" validate:"required,min=3,max=255"`
	IndexName  string `yaml:"index_name" json:"index_name" validate:"required,min=3,max=255"`
	Region     string `yaml:"region" json:"region" validate:"required"`
	Endpoint   string `yaml:"endpoint" json:"endpoint" validate:"omitempty,url"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries" validate:"min=0,max=10"`
}

// Cache configures the grounding/axis/query result cache.
type Cache struct {
	Provider string      `yaml:"provider" json:"provider" validate:"oneof=memory redis"`
	TTL      time.Duration `yaml:"ttl" json:"ttl" validate:"min=1s,max=24h"`
	Redis    RedisConfig `yaml:"redis" json:"redis" validate:"dive"`
}

// RedisConfig configures redis/go-redis for the job-event bus and the
// Cache port's redis-backed implementation.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" validate:"omitempty"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db" validate:"min=0,max=15"`
	PoolSize int    `yaml:"pool_size" json:"pool_size" validate:"min=1,max=1000"`
}

// Logging configures go.uber.org/zap.
type Logging struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// Metrics configures prometheus/client_golang.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"omitempty,min=1,max=255"`
	Port      int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	Path      string `yaml:"path" json:"path" validate:"omitempty,startswith=/"`
}

// Tracing configures go.opentelemetry.io/otel.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint" validate:"omitempty"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio" validate:"min=0,max=1"`
}

// Security configures auth and the secretbox key used to seal/open
// EncryptedKey ciphertexts (golang.org/x/crypto/nacl/secretbox).
type Security struct {
	APIKeyHeader    string `yaml:"api_key_header" json:"api_key_header" validate:"required"`
	SecretboxKeyEnv string `yaml:"secretbox_key_env" json:"secretbox_key_env" validate:"required"`
	AllowedOrigins  []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// EmbeddingDefaults seeds the ConfigStore's active EmbeddingConfig row on
// first boot; thereafter the store is authoritative (spec.md §4.2).
type EmbeddingDefaults struct {
	Provider  string `yaml:"provider" json:"provider" validate:"omitempty"`
	Model     string `yaml:"model" json:"model" validate:"omitempty"`
	Dimension int    `yaml:"dimension" json:"dimension" validate:"omitempty,min=1"`
	Precision string `yaml:"precision" json:"precision" validate:"omitempty,oneof=float32 float16"`
}

// AIDefaults seeds the ConfigStore's active AiProviderConfig row.
type AIDefaults struct {
	Provider   string `yaml:"provider" json:"provider" validate:"omitempty"`
	Model      string `yaml:"model" json:"model" validate:"omitempty"`
	CanExtract bool   `yaml:"can_extract" json:"can_extract"`
	CanDecide  bool   `yaml:"can_decide" json:"can_decide"`
}

// Ingest configures document chunking and the approval gate (spec.md §4.6).
type Ingest struct {
	TargetWords         int  `yaml:"target_words" json:"target_words" validate:"min=1"`
	OverlapWords        int  `yaml:"overlap_words" json:"overlap_words" validate:"min=0"`
	AutoApprove         bool `yaml:"auto_approve" json:"auto_approve"`
	CostThresholdChunks int  `yaml:"cost_threshold_chunks" json:"cost_threshold_chunks" validate:"min=1"`
	Workers             int  `yaml:"workers" json:"workers" validate:"min=1"`
}

// Merge configures concept-dedup similarity (spec.md §4.1).
type Merge struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold" validate:"min=0,max=1"`
}

// Grounding configures the default polarity pair set for the axis cache
// (spec.md §4.4, ordered pos/neg name pairs).
type Grounding struct {
	PolarityPairs []PolarityPairName `yaml:"polarity_pairs" json:"polarity_pairs"`
}

// PolarityPairName is one (positive, negative) vocabulary type name pair.
type PolarityPairName struct {
	Positive string `yaml:"positive" json:"positive"`
	Negative string `yaml:"negative" json:"negative"`
}

// Vocab configures vocabulary self-organization (spec.md §4.3).
type Vocab struct {
	CategoryAmbiguityThreshold float64       `yaml:"category_ambiguity_threshold" json:"category_ambiguity_threshold" validate:"min=0,max=1"`
	RoleSampleSize             int           `yaml:"role_sample_size" json:"role_sample_size" validate:"min=1"`
	ConsolidateHysteresisHigh  float64       `yaml:"consolidate_hysteresis_high" json:"consolidate_hysteresis_high" validate:"min=0,max=1"`
	ConsolidateHysteresisLow   float64       `yaml:"consolidate_hysteresis_low" json:"consolidate_hysteresis_low" validate:"min=0,max=1"`
	ConsolidateTarget          int           `yaml:"consolidate_target" json:"consolidate_target" validate:"min=0"`
	ChangeEventThreshold       int           `yaml:"change_event_threshold" json:"change_event_threshold" validate:"min=1"`
}

// Annealing configures ontology self-organization cycles (spec.md §4.8).
type Annealing struct {
	IntervalEpochs int    `yaml:"interval_epochs" json:"interval_epochs" validate:"min=1"`
	Automation     string `yaml:"automation" json:"automation" validate:"oneof=autonomous hitl"`
	MaxProposals   int    `yaml:"max_proposals" json:"max_proposals" validate:"min=1"`
}

// Scheduler configures leader election for the cooperative cron loop.
type Scheduler struct {
	AdvisoryLockKey string        `yaml:"advisory_lock_key" json:"advisory_lock_key" validate:"required"`
	TickInterval    time.Duration `yaml:"tick_interval" json:"tick_interval" validate:"min=1s"`
}

// Resource holds the device-memory threshold key (spec.md §6.4 "device
// fallback"). Nothing in this module reads it: there is no local embedding
// backend and no device-selection gate.
type Resource struct {
	MinFreeDeviceMemoryMB int `yaml:"min_free_device_memory_mb" json:"min_free_device_memory_mb" validate:"min=0"`
}

// Load builds a Config from environment variables with defaults, the way
// backend's LoadConfig assembles its sections independently and then
// applies environment-specific overrides.
func Load() Config {
	cfg := Config{
		Environment: getEnvironment(),
		Server:      loadServer(),
		Postgres:    loadPostgres(),
		DynamoDB:    loadDynamoDB(),
		Cache:       loadCache(),
		Logging:     loadLogging(),
		Metrics:     loadMetrics(),
		Tracing:     loadTracing(),
		Security:    loadSecurity(),
		Embedding:   loadEmbeddingDefaults(),
		AI:          loadAIDefaults(),
		Ingest:      loadIngest(),
		Merge:       Merge{SimilarityThreshold: getEnvFloat("MERGE_SIMILARITY_THRESHOLD", 0.70)},
		Grounding:   loadGrounding(),
		Vocab:       loadVocab(),
		Annealing:   loadAnnealing(),
		Scheduler:   loadScheduler(),
		Resource:    Resource{MinFreeDeviceMemoryMB: getEnvInt("RESOURCE_MIN_FREE_DEVICE_MEMORY_MB", 500)},
		DevelopmentMode: getEnvBool("DEVELOPMENT_MODE", false),
	}
	return cfg
}

// Validate runs struct-tag validation plus the cross-field business rules
// struct tags alone cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.Vocab.ConsolidateHysteresisLow >= c.Vocab.ConsolidateHysteresisHigh {
		return fmt.Errorf("vocab.consolidate_hysteresis_low must be less than consolidate_hysteresis_high")
	}
	if c.Ingest.OverlapWords >= c.Ingest.TargetWords {
		return fmt.Errorf("ingest.overlap_words must be less than target_words")
	}
	return nil
}

func getEnvironment() Environment {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("ENV")
	}
	switch strings.ToLower(env) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}

func loadServer() Server {
	return Server{
		Port:            getEnvInt("SERVER_PORT", 8080),
		Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestSize:  getEnvInt64("SERVER_MAX_REQUEST_SIZE", 10*1024*1024),
	}
}

func loadPostgres() Postgres {
	return Postgres{
		DSN:             getEnvString("POSTGRES_DSN", "postgres://localhost:5432/groundgraph?sslmode=disable"),
		MaxConnections:  getEnvInt("POSTGRES_MAX_CONNECTIONS", 10),
		ConnectTimeout:  getEnvDuration("POSTGRES_CONNECT_TIMEOUT", 5*time.Second),
		AdvisoryLockKey: getEnvInt64("POSTGRES_ADVISORY_LOCK_KEY", 918273645),
	}
}

func loadDynamoDB() DynamoDB {
	return DynamoDB{
		TableName:  getEnvString("DYNAMODB_TABLE_NAME", "groundgraph-dev"),
		IndexName:  getEnvString("DYNAMODB_INDEX_NAME", "GSI1"),
		Region:     getEnvString("AWS_REGION", "us-east-1"),
		Endpoint:   getEnvString("DYNAMODB_ENDPOINT", ""),
		MaxRetries: getEnvInt("DYNAMODB_MAX_RETRIES", 3),
	}
}

func loadCache() Cache {
	return Cache{
		Provider: getEnvString("CACHE_PROVIDER", "memory"),
		TTL:      getEnvDuration("CACHE_TTL", 2*time.Minute),
		Redis: RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
	}
}

func loadLogging() Logging {
	return Logging{
		Level:  getEnvString("LOG_LEVEL", "info"),
		Format: getEnvString("LOG_FORMAT", "json"),
	}
}

func loadMetrics() Metrics {
	return Metrics{
		Enabled:   getEnvBool("METRICS_ENABLED", true),
		Namespace: getEnvString("METRICS_NAMESPACE", "groundgraph"),
		Port:      getEnvInt("METRICS_PORT", 9090),
		Path:      getEnvString("METRICS_PATH", "/metrics"),
	}
}

func loadTracing() Tracing {
	return Tracing{
		Enabled:     getEnvBool("TRACING_ENABLED", false),
		Endpoint:    getEnvString("TRACING_ENDPOINT", ""),
		SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 0.1),
	}
}

func loadSecurity() Security {
	return Security{
		APIKeyHeader:    getEnvString("API_KEY_HEADER", "X-API-Key"),
		SecretboxKeyEnv: getEnvString("SECRETBOX_KEY_ENV", "GROUNDGRAPH_SECRETBOX_KEY"),
		AllowedOrigins:  getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadEmbeddingDefaults() EmbeddingDefaults {
	return EmbeddingDefaults{
		Provider:  getEnvString("EMBEDDING_PROVIDER", "langchaingo-openai"),
		Model:     getEnvString("EMBEDDING_MODEL", "text-embedding-3-small"),
		Dimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		Precision: getEnvString("EMBEDDING_PRECISION", "float32"),
	}
}

func loadAIDefaults() AIDefaults {
	return AIDefaults{
		Provider:   getEnvString("AI_PROVIDER", "anthropic"),
		Model:      getEnvString("AI_MODEL", "claude-sonnet"),
		CanExtract: getEnvBool("AI_CAN_EXTRACT", true),
		CanDecide:  getEnvBool("AI_CAN_DECIDE", true),
	}
}

func loadIngest() Ingest {
	return Ingest{
		TargetWords:         getEnvInt("INGEST_TARGET_WORDS", 1000),
		OverlapWords:        getEnvInt("INGEST_OVERLAP_WORDS", 200),
		AutoApprove:         getEnvBool("INGEST_AUTO_APPROVE", false),
		CostThresholdChunks: getEnvInt("INGEST_COST_THRESHOLD_CHUNKS", 20),
		Workers:             getEnvInt("INGEST_WORKERS", 4),
	}
}

func loadGrounding() Grounding {
	return Grounding{
		PolarityPairs: []PolarityPairName{
			{Positive: "SUPPORTS", Negative: "CONTRADICTS"},
			{Positive: "VALIDATES", Negative: "REFUTES"},
			{Positive: "CONFIRMS", Negative: "DISPROVES"},
			{Positive: "REINFORCES", Negative: "OPPOSES"},
			{Positive: "ENABLES", Negative: "PREVENTS"},
		},
	}
}

func loadVocab() Vocab {
	return Vocab{
		CategoryAmbiguityThreshold: getEnvFloat("VOCAB_CATEGORY_AMBIGUITY_THRESHOLD", 0.70),
		RoleSampleSize:             getEnvInt("VOCAB_ROLE_SAMPLE_SIZE", 100),
		ConsolidateHysteresisHigh:  getEnvFloat("VOCAB_CONSOLIDATE_HYSTERESIS_HIGH", 0.20),
		ConsolidateHysteresisLow:   getEnvFloat("VOCAB_CONSOLIDATE_HYSTERESIS_LOW", 0.10),
		ConsolidateTarget:          getEnvInt("VOCAB_CONSOLIDATE_TARGET", 0),
		ChangeEventThreshold:       getEnvInt("VOCAB_CHANGE_EVENT_THRESHOLD", 10),
	}
}

func loadAnnealing() Annealing {
	return Annealing{
		IntervalEpochs: getEnvInt("ANNEALING_INTERVAL_EPOCHS", 5),
		Automation:     getEnvString("ANNEALING_AUTOMATION", "hitl"),
		MaxProposals:   getEnvInt("ANNEALING_MAX_PROPOSALS", 20),
	}
}

func loadScheduler() Scheduler {
	return Scheduler{
		AdvisoryLockKey: getEnvString("SCHEDULER_ADVISORY_LOCK_KEY", "groundgraph-scheduler"),
		TickInterval:    getEnvDuration("SCHEDULER_TICK_INTERVAL", 30*time.Second),
	}
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return def
}
