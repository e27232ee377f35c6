// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Matcher, Page, Selection, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Page      PageConfig      `yaml:"page"`
	Selection SelectionConfig `yaml:"selection"`
	Auth      AuthConfig      `yaml:"auth"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	MatchEvents   string `yaml:"matchEvents"`
	CorpusChanges string `yaml:"corpusChanges"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// StorageConfig selects the backends for the QA corpus and the key-value
// store holding settings and the current selection.
type StorageConfig struct {
	Corpus     string `yaml:"corpus"` // memory | postgres
	KV         string `yaml:"kv"`     // memory | redis
	SeedCorpus bool   `yaml:"seedCorpus"`
}

// MatcherConfig holds the ranking policy constants.
type MatcherConfig struct {
	PopupLimit      int     `yaml:"popupLimit"`
	ToolbarLimit    int     `yaml:"toolbarLimit"`
	MaxLimit        int     `yaml:"maxLimit"`
	MinScore        float64 `yaml:"minScore"`
	AcceptScore     float64 `yaml:"acceptScore"`
	ContainerPrefix int     `yaml:"containerPrefix"`
}

// PageConfig describes the quiz-page markup the page analyser recognises.
type PageConfig struct {
	URLKeywords     []string `yaml:"urlKeywords"`
	Markers         []string `yaml:"markers"`
	ContentBlocks   []string `yaml:"contentBlocks"`
	QuestionWrapper string   `yaml:"questionWrapper"`
	Choices         []string `yaml:"choices"`
	HighlightClass  string   `yaml:"highlightClass"`
	MaxHTMLBytes    int64    `yaml:"maxHTMLBytes"`
}

// SelectionConfig controls the current-selection slot.
type SelectionConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
}

// AuthConfig controls API-key authentication for the HTTP API.
type AuthConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RateWindow       time.Duration `yaml:"rateWindow"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	DefaultRateLimit int           `yaml:"defaultRateLimit"`
}

// AnalyticsConfig controls event collection and snapshotting.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for the highlight flow.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults for local development. The matcher
// and page values reproduce the browser extension's behaviour.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "quizmatcher",
			User:            "quizmatcher",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "quizmatcher-group",
			Topics: KafkaTopics{
				MatchEvents:   "match-events",
				CorpusChanges: "corpus-changes",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Storage: StorageConfig{
			Corpus:     "memory",
			KV:         "memory",
			SeedCorpus: true,
		},
		Matcher: MatcherConfig{
			PopupLimit:      3,
			ToolbarLimit:    5,
			MaxLimit:        50,
			MinScore:        0.1,
			AcceptScore:     0.2,
			ContainerPrefix: 50,
		},
		Page: PageConfig{
			URLKeywords:     []string{"moodle"},
			Markers:         []string{"que", "formulation"},
			ContentBlocks:   []string{"formulation", "content"},
			QuestionWrapper: "que",
			Choices:         []string{"answer", "r0", "r1", "d-flex"},
			HighlightClass:  "moodle-answer-highlight",
			MaxHTMLBytes:    4 << 20,
		},
		Selection: SelectionConfig{
			PollInterval: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			RateWindow:       time.Minute,
			AllowedOrigins:   []string{"*"},
			DefaultRateLimit: 120,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       1000,
			SnapshotInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Corpus {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.corpus must be memory or postgres, got %q", c.Storage.Corpus)
	}
	switch c.Storage.KV {
	case "memory", "redis":
	default:
		return fmt.Errorf("storage.kv must be memory or redis, got %q", c.Storage.KV)
	}
	if c.Matcher.PopupLimit < 1 || c.Matcher.ToolbarLimit < 1 {
		return fmt.Errorf("matcher limits must be positive")
	}
	if c.Matcher.MaxLimit < c.Matcher.ToolbarLimit || c.Matcher.MaxLimit < c.Matcher.PopupLimit {
		return fmt.Errorf("matcher.maxLimit must be at least the popup and toolbar limits")
	}
	if c.Matcher.MinScore < 0 || c.Matcher.AcceptScore < 0 {
		return fmt.Errorf("matcher scores must not be negative")
	}
	if c.Matcher.ContainerPrefix < 1 {
		return fmt.Errorf("matcher.containerPrefix must be positive")
	}
	if c.Selection.PollInterval <= 0 {
		return fmt.Errorf("selection.pollInterval must be positive")
	}
	if c.Auth.Enabled && c.Storage.Corpus != "postgres" {
		return fmt.Errorf("auth requires postgres storage for api keys")
	}
	return nil
}

// applyEnvOverrides reads QM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("QM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("QM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("QM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QM_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("QM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QM_STORAGE_CORPUS"); v != "" {
		cfg.Storage.Corpus = v
	}
	if v := os.Getenv("QM_STORAGE_KV"); v != "" {
		cfg.Storage.KV = v
	}
	if v := os.Getenv("QM_MATCHER_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matcher.MinScore = f
		}
	}
	if v := os.Getenv("QM_MATCHER_ACCEPT_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matcher.AcceptScore = f
		}
	}
	if v := os.Getenv("QM_AUTH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	if v := os.Getenv("QM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
