package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Gateway    GatewayConfig
	Realtime   RealtimeConfig
	Poller     PollerConfig
	Cache      CacheConfig
	Credential CredentialConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// GatewayConfig holds settings for the backend of record's REST API
type GatewayConfig struct {
	BaseURL        string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
}

// RealtimeConfig holds push channel settings
type RealtimeConfig struct {
	// Driver selects the push transport: "redis" or "rabbitmq"
	Driver        string `validate:"oneof=redis rabbitmq"`
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	Redis         RedisConfig
	Rabbit        RabbitConfig
}

// RedisConfig holds Redis connection settings for the pub/sub transport
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RabbitConfig holds RabbitMQ connection settings for the topic transport
type RabbitConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Exchange string
}

// URL returns the amqp connection URL
func (c RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

// PollerConfig holds reconciliation poller settings
type PollerConfig struct {
	Interval     time.Duration `validate:"gt=0"`
	FetchTimeout time.Duration `validate:"gt=0"`
	// Jitter spreads tick timing across clients; zero disables it
	Jitter time.Duration `validate:"gte=0"`
}

// CacheConfig holds local snapshot cache settings
type CacheConfig struct {
	Enabled bool
	// Path is the sqlite database file; ":memory:" for ephemeral
	Path string
}

// CredentialConfig selects the credential provider strategy
type CredentialConfig struct {
	// Provider is "static" or "jwt"
	Provider string `validate:"oneof=static jwt"`
	// Role and OwnerID identify the session for the static provider
	Role    string
	OwnerID string
	// Token is the opaque credential; for the jwt provider the role and
	// owner are parsed out of its claims instead
	Token string
	// Secret verifies jwt signatures
	Secret string
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with ORDERSYNC_ prefix (e.g. ORDERSYNC_GATEWAY_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ordersync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Gateway: GatewayConfig{
			BaseURL:        v.GetString("gateway.base_url"),
			RequestTimeout: v.GetDuration("gateway.request_timeout"),
		},
		Realtime: RealtimeConfig{
			Driver:        v.GetString("realtime.driver"),
			ReconnectBase: v.GetDuration("realtime.reconnect_base"),
			ReconnectMax:  v.GetDuration("realtime.reconnect_max"),
			Redis: RedisConfig{
				Host:     v.GetString("realtime.redis.host"),
				Port:     v.GetInt("realtime.redis.port"),
				Password: v.GetString("realtime.redis.password"),
				DB:       v.GetInt("realtime.redis.db"),
			},
			Rabbit: RabbitConfig{
				Host:     v.GetString("realtime.rabbitmq.host"),
				Port:     v.GetInt("realtime.rabbitmq.port"),
				User:     v.GetString("realtime.rabbitmq.user"),
				Password: v.GetString("realtime.rabbitmq.password"),
				Exchange: v.GetString("realtime.rabbitmq.exchange"),
			},
		},
		Poller: PollerConfig{
			Interval:     v.GetDuration("poller.interval"),
			FetchTimeout: v.GetDuration("poller.fetch_timeout"),
			Jitter:       v.GetDuration("poller.jitter"),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			Path:    v.GetString("cache.path"),
		},
		Credential: CredentialConfig{
			Provider: v.GetString("credential.provider"),
			Role:     v.GetString("credential.role"),
			OwnerID:  v.GetString("credential.owner_id"),
			Token:    v.GetString("credential.token"),
			Secret:   v.GetString("credential.secret"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ordersync")
	v.SetDefault("app.env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("gateway.base_url", "http://localhost:8080")
	v.SetDefault("gateway.request_timeout", 10*time.Second)

	v.SetDefault("realtime.driver", "redis")
	v.SetDefault("realtime.reconnect_base", 1*time.Second)
	v.SetDefault("realtime.reconnect_max", 30*time.Second)
	v.SetDefault("realtime.redis.host", "localhost")
	v.SetDefault("realtime.redis.port", 6379)
	v.SetDefault("realtime.redis.db", 0)
	v.SetDefault("realtime.rabbitmq.host", "localhost")
	v.SetDefault("realtime.rabbitmq.port", 5672)
	v.SetDefault("realtime.rabbitmq.user", "guest")
	v.SetDefault("realtime.rabbitmq.password", "guest")
	v.SetDefault("realtime.rabbitmq.exchange", "orders.push")

	v.SetDefault("poller.interval", 10*time.Second)
	v.SetDefault("poller.fetch_timeout", 5*time.Second)
	v.SetDefault("poller.jitter", time.Duration(0))

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "ordersync.db")

	v.SetDefault("credential.provider", "static")
	v.SetDefault("credential.role", "customer")
}
