// Package config loads runtime settings for the fsmtask binary from the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be decoded.
	ErrParsingConfig = errors.New("failed to parse configuration")
	// ErrUnknownStore is returned when StoreKind names no supported backend.
	ErrUnknownStore = errors.New("unknown store kind")
)

// Store kinds accepted by StoreKind.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// StoreKinds lists every supported store kind.
var StoreKinds = []string{StoreMemory, StoreFile, StoreRedis, StoreMongo, StorePostgres}

// Config holds every setting the CLI and servers read from the environment.
// Flags override the values loaded here.
type Config struct {
	StoreKind string `env:"FSMTASK_STORE" envDefault:"file"`
	Dir       string `env:"FSMTASK_DIR" envDefault:".fsmtask/tasks"`
	IDField   string `env:"FSMTASK_ID_FIELD" envDefault:"id"`
	HooksPath string `env:"FSMTASK_HOOKS" envDefault:"hooks.yaml"`
	LogLevel  string `env:"FSMTASK_LOG_LEVEL" envDefault:"info"`

	RedisAddr     string        `env:"FSMTASK_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"FSMTASK_REDIS_PASSWORD"`
	RedisDB       int           `env:"FSMTASK_REDIS_DB" envDefault:"0"`
	RedisTTL      time.Duration `env:"FSMTASK_REDIS_TTL" envDefault:"0s"`

	MongoURL        string `env:"FSMTASK_MONGODB_URL" envDefault:"mongodb://localhost:27017"`
	MongoDatabase   string `env:"FSMTASK_MONGODB_DATABASE" envDefault:"fsmtask"`
	MongoCollection string `env:"FSMTASK_MONGODB_COLLECTION" envDefault:"tasks"`

	PostgresConnString string `env:"FSMTASK_PG_CONN_URL" envDefault:"postgres://localhost:5432/fsmtask?sslmode=disable"`
	PostgresTable      string `env:"FSMTASK_PG_TABLE" envDefault:"fsmtask_tasks"`

	RetryAttempts int           `env:"FSMTASK_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"FSMTASK_RETRY_INTERVAL" envDefault:"2s"`

	HTTPAddr        string        `env:"FSMTASK_HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"FSMTASK_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	EntityLock bool          `env:"FSMTASK_ENTITY_LOCK" envDefault:"false"`
	LockTTL    time.Duration `env:"FSMTASK_LOCK_TTL" envDefault:"30s"`
	Metrics    bool          `env:"FSMTASK_METRICS" envDefault:"true"`
}

// Load reads the optional dotenv files and parses the environment into a Config.
// With no files given, ".env" in the working directory is tried. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// a missing .env is fine
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	if !slices.Contains(StoreKinds, c.StoreKind) {
		return fmt.Errorf("%w: %q (want one of %v)", ErrUnknownStore, c.StoreKind, StoreKinds)
	}
	if c.IDField == "" {
		return fmt.Errorf("%w: id field must not be empty", ErrParsingConfig)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1", ErrParsingConfig)
	}
	return nil
}
