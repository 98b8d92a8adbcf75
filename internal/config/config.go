package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendQueue  int           `mapstructure:"send_queue"`
	Secret     string        `mapstructure:"secret"`
	JWTTTL     time.Duration `mapstructure:"jwt_ttl"`

	CORS        CORSConfig        `mapstructure:"cors"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Assistant   AssistantConfig   `mapstructure:"assistant"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AuthConfig struct {
	UserInfoURL string `mapstructure:"userinfo_url"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
}

type AssistantConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	History  int           `mapstructure:"history"`
	Fallback string        `mapstructure:"fallback"`
}

type RateLimitConfig struct {
	JoinLimit       int           `mapstructure:"join_limit"`
	JoinInterval    time.Duration `mapstructure:"join_interval"`
	MessageLimit    int           `mapstructure:"message_limit"`
	MessageInterval time.Duration `mapstructure:"message_interval"`
}

type CoordinatorConfig struct {
	Queue int `mapstructure:"queue"`
	// Policy is "kick" or "tolerate".
	Policy string `mapstructure:"policy"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("ROOMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("db", cfg.Database.Driver).Bool("redis", cfg.Redis.Enabled).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5001)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_queue", 64)
	v.SetDefault("secret", "dev-secret-change")
	v.SetDefault("jwt_ttl", "24h")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("auth.userinfo_url", "https://www.googleapis.com/oauth2/v3/userinfo")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "roomchat.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("assistant.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "gpt-4o-mini")
	v.SetDefault("assistant.timeout", "30s")
	v.SetDefault("assistant.history", 20)
	v.SetDefault("assistant.fallback", "Sorry, I couldn't come up with a reply right now.")
	v.SetDefault("ratelimit.join_limit", 20)
	v.SetDefault("ratelimit.join_interval", "10s")
	v.SetDefault("ratelimit.message_limit", 30)
	v.SetDefault("ratelimit.message_interval", "1m")
	v.SetDefault("coordinator.queue", 1024)
	v.SetDefault("coordinator.policy", "kick")
}

func (c *Config) validate() error {
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)", c.PingPeriod, c.PongWait)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Coordinator.Policy {
	case "kick", "tolerate":
	default:
		return fmt.Errorf("unsupported coordinator policy %q", c.Coordinator.Policy)
	}
	return nil
}
