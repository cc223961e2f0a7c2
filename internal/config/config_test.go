package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "travel_agent", cfg.Store.MongoDatabase)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 30*time.Second, cfg.Events.HeartbeatInterval)
	assert.Equal(t, 10, cfg.Agent.ContextMessages)
	assert.Equal(t, "Delhi", cfg.Agent.DefaultOrigin)
	assert.Equal(t, 2*time.Minute, cfg.Redis.LockTTL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TRIPMATE_LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-test")
	t.Setenv("TRIPMATE_STORE_DRIVER", "postgres")
	t.Setenv("TRIPMATE_DB_DSN", "postgres://localhost/tripmate")
	t.Setenv("TRIPMATE_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("TRIPMATE_CORS_ORIGINS", "http://localhost:3000,https://tripmate.app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Events.HeartbeatInterval)
	assert.Equal(t, []string{"http://localhost:3000", "https://tripmate.app"}, cfg.HTTP.CORSOrigins)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Store: StoreConfig{Driver: StoreMemory},
			AI:    AIConfig{Provider: ProviderOpenAI, OpenAIKey: "k"},
			Agent: AgentConfig{ContextMessages: 10, TurnTimeout: 3 * time.Minute},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"missing openai key": func(c *Config) { c.AI.OpenAIKey = "" },
		"missing gemini key": func(c *Config) { c.AI.Provider = ProviderGemini },
		"unknown provider":   func(c *Config) { c.AI.Provider = "claude" },
		"postgres no dsn":    func(c *Config) { c.Store.Driver = StorePostgres },
		"unknown driver":     func(c *Config) { c.Store.Driver = "sqlite" },
		"zero context":       func(c *Config) { c.Agent.ContextMessages = 0 },
		"negative queue":     func(c *Config) { c.Events.QueueLimit = -1 },
		"zero turn timeout":  func(c *Config) { c.Agent.TurnTimeout = 0 },
		"tiny lock ttl": func(c *Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.LockTTL = time.Second
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidateLockTTLShorterThanTurn(t *testing.T) {
	cfg := Config{
		Store: StoreConfig{Driver: StoreMemory},
		AI:    AIConfig{Provider: ProviderOpenAI, OpenAIKey: "k"},
		Redis: RedisConfig{Addr: "localhost:6379", LockTTL: 2 * time.Minute},
		Agent: AgentConfig{ContextMessages: 10, TurnTimeout: 3 * time.Minute},
	}
	// The lock is refreshed while a turn runs, so a TTL below the turn
	// timeout is valid.
	assert.NoError(t, cfg.Validate())
}
