// README: Config loader; env vars (optionally from .env) for HTTP, storage, Redis, models, Maps and turn settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
	StoreMongo    StoreDriver = "mongo"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

var ErrInvalid = errors.New("invalid configuration")

// minLockTTL keeps the turn lock's refresh period (a third of the TTL)
// comfortably above Redis round trips.
const minLockTTL = 3 * time.Second

type HTTPConfig struct {
	Addr            string        `env:"TRIPMATE_HTTP_ADDR" envDefault:":8080"`
	CORSOrigins     []string      `env:"TRIPMATE_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout time.Duration `env:"TRIPMATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type StoreConfig struct {
	Driver        StoreDriver `env:"TRIPMATE_STORE_DRIVER" envDefault:"memory"`
	DSN           string      `env:"TRIPMATE_DB_DSN"`
	MongoURI      string      `env:"TRIPMATE_MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string      `env:"TRIPMATE_MONGO_DATABASE" envDefault:"travel_agent"`
}

type RedisConfig struct {
	// Addr enables the shared turn lock; empty keeps locking in-process.
	Addr string `env:"TRIPMATE_REDIS_ADDR"`
	// LockTTL bounds how long a crashed holder blocks a session. Live
	// holders keep extending it, so it need not cover a whole turn.
	LockTTL time.Duration `env:"TRIPMATE_TURN_LOCK_TTL" envDefault:"2m"`
}

type AIConfig struct {
	Provider      LLMProvider `env:"TRIPMATE_LLM_PROVIDER" envDefault:"openai"`
	OpenAIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string      `env:"OPENAI_BASE_URL"`
	OpenAIModel   string      `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	GeminiKey     string      `env:"GEMINI_API_KEY"`
	GeminiModel   string      `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
}

type MapsConfig struct {
	// APIKey switches place lookups to Google Places when set.
	APIKey string `env:"GOOGLE_MAPS_API_KEY"`
	Region string `env:"TRIPMATE_MAPS_REGION" envDefault:"in"`
}

type EventsConfig struct {
	HeartbeatInterval time.Duration `env:"TRIPMATE_HEARTBEAT_INTERVAL" envDefault:"30s"`
	// QueueLimit caps undelivered events per subscriber; 0 is unbounded.
	QueueLimit int `env:"TRIPMATE_EVENT_QUEUE_LIMIT" envDefault:"0"`
}

type AgentConfig struct {
	ContextMessages int           `env:"TRIPMATE_CONTEXT_MESSAGES" envDefault:"10"`
	TurnTimeout     time.Duration `env:"TRIPMATE_TURN_TIMEOUT" envDefault:"3m"`
	DefaultOrigin   string        `env:"TRIPMATE_DEFAULT_ORIGIN" envDefault:"Delhi"`
}

type LogConfig struct {
	Level  string `env:"TRIPMATE_LOG_LEVEL" envDefault:"info"`
	Format string `env:"TRIPMATE_LOG_FORMAT" envDefault:"text"`
}

type Config struct {
	HTTP   HTTPConfig
	Store  StoreConfig
	Redis  RedisConfig
	AI     AIConfig
	Maps   MapsConfig
	Events EventsConfig
	Agent  AgentConfig
	Log    LogConfig
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: TRIPMATE_DB_DSN is required for the postgres store", ErrInvalid)
		}
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("%w: TRIPMATE_MONGO_URI is required for the mongo store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}

	switch c.AI.Provider {
	case ProviderOpenAI:
		if c.AI.OpenAIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrInvalid)
		}
	case ProviderGemini:
		if c.AI.GeminiKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown LLM provider %q", ErrInvalid, c.AI.Provider)
	}

	if c.Redis.Addr != "" && c.Redis.LockTTL < minLockTTL {
		return fmt.Errorf("%w: TRIPMATE_TURN_LOCK_TTL must be at least %s", ErrInvalid, minLockTTL)
	}
	if c.Agent.TurnTimeout <= 0 {
		return fmt.Errorf("%w: TRIPMATE_TURN_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Agent.ContextMessages <= 0 {
		return fmt.Errorf("%w: TRIPMATE_CONTEXT_MESSAGES must be positive", ErrInvalid)
	}
	if c.Events.QueueLimit < 0 {
		return fmt.Errorf("%w: TRIPMATE_EVENT_QUEUE_LIMIT must not be negative", ErrInvalid)
	}
	return nil
}
