// Package config loads process configuration from DOCFLOW_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	platformstrings "docflow/pkg/platform/strings"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Sequence backends. "store" keeps counters next to the documents.
const (
	SequenceStore = "store"
	SequenceRedis = "redis"
)

// Permission policies.
const (
	PolicyAllowAll = "allow_all"
	PolicyStatic   = "static"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Storage  Storage
	Redis    RedisConfig
	Blob     BlobConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Tracing  TracingConfig
	Policy   PolicyConfig
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

// Storage selects and tunes the document backend.
type Storage struct {
	Backend         string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	PostgresDriver  string        `env:"POSTGRES_DRIVER" envDefault:"pgx"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"docflow.db"`
	SequenceBackend string        `env:"SEQUENCE_BACKEND" envDefault:"store"`
	TxTimeout       time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
	ConflictRetries int           `env:"CONFLICT_RETRIES" envDefault:"3"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
}

// RedisConfig configures the shared sequence counter client.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	KeyPrefix    string        `env:"REDIS_KEY_PREFIX" envDefault:"docflow"`
}

// BlobConfig configures attachment storage. An empty endpoint keeps blobs
// in memory.
type BlobConfig struct {
	Endpoint  string        `env:"MINIO_ENDPOINT"`
	AccessKey string        `env:"MINIO_ACCESS_KEY"`
	SecretKey string        `env:"MINIO_SECRET_KEY"`
	Bucket    string        `env:"MINIO_BUCKET" envDefault:"docflow-attachments"`
	UseSSL    bool          `env:"MINIO_USE_SSL" envDefault:"false"`
	URLTTL    time.Duration `env:"ATTACHMENT_URL_TTL" envDefault:"15m"`
	MaxSize   int64         `env:"ATTACHMENT_MAX_BYTES" envDefault:"26214400"`
}

// KafkaConfig configures lifecycle event delivery. No brokers means events
// are only logged.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"docflow.document-events"`
}

// AuthConfig verifies actor tokens issued by the external auth system.
type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER"`
}

// PolicyConfig selects the permission gate in front of the service.
type PolicyConfig struct {
	Mode           string `env:"POLICY" envDefault:"allow_all"`
	DraftOnlyEdits bool   `env:"DRAFT_ONLY_EDITS" envDefault:"false"`
}

// TracingConfig enables OTLP/HTTP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"docflow"`
}

// Load parses DOCFLOW_* variables and validates the result.
func Load() (Config, error) {
	return load(env.Options{Prefix: "DOCFLOW_"})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements the tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
		if c.Storage.PostgresDriver != "pgx" && c.Storage.PostgresDriver != "postgres" {
			errs = append(errs, fmt.Errorf("unknown postgres driver %q", c.Storage.PostgresDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.Storage.SequenceBackend {
	case SequenceStore:
	case SequenceRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis sequence backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sequence backend %q", c.Storage.SequenceBackend))
	}
	if c.Storage.ConflictRetries < 1 {
		errs = append(errs, errors.New("CONFLICT_RETRIES must be at least 1"))
	}
	if c.Policy.Mode != PolicyAllowAll && c.Policy.Mode != PolicyStatic {
		errs = append(errs, fmt.Errorf("unknown policy %q", c.Policy.Mode))
	}
	if c.Blob.Endpoint != "" && (c.Blob.AccessKey == "" || c.Blob.SecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT"))
	}
	return errors.Join(errs...)
}
