package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML file read before the environment.
const ConfigFileEnv = "RETAILPULSE_CONFIG"

type Config struct {
	Port                    string
	AllowedOrigin           string
	LogLevel                string
	LogFormat               string
	DatabaseURL             string
	SQLitePath              string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	ForecastCacheSize       int
	ForecastCacheTTLSeconds int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	OpenAIAPIKey            string
	OpenAIBaseURL           string
	OpenAIModel             string
	NarrativeTimeoutSeconds int
	FetchChunkDays          int
	FetchConcurrency        int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.url", "")
	v.SetDefault("sqlite.path", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("forecast_cache.size", 256)
	v.SetDefault("forecast_cache.ttl_seconds", 3600)
	v.SetDefault("auth.secret", "")
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("narrative.timeout_seconds", 30)
	v.SetDefault("fetch.chunk_days", 7)
	v.SetDefault("fetch.concurrency", 4)
}

// Load reads defaults, then the optional file at path (or $RETAILPULSE_CONFIG),
// then the environment. Nested keys map to env names with dots replaced by
// underscores, so database.url is DATABASE_URL.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigFileEnv))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:                    v.GetString("port"),
		AllowedOrigin:           v.GetString("allowed_origin"),
		LogLevel:                v.GetString("log.level"),
		LogFormat:               v.GetString("log.format"),
		DatabaseURL:             strings.TrimSpace(v.GetString("database.url")),
		SQLitePath:              strings.TrimSpace(v.GetString("sqlite.path")),
		RedisAddr:               strings.TrimSpace(v.GetString("redis.addr")),
		RedisPassword:           v.GetString("redis.password"),
		RedisDB:                 v.GetInt("redis.db"),
		ForecastCacheSize:       positive(v.GetInt("forecast_cache.size"), 256),
		ForecastCacheTTLSeconds: positive(v.GetInt("forecast_cache.ttl_seconds"), 3600),
		AuthSecret:              strings.TrimSpace(v.GetString("auth.secret")),
		AccessTokenTTLMinutes:   positive(v.GetInt("access_token_ttl_minutes"), 480),
		OpenAIAPIKey:            strings.TrimSpace(v.GetString("openai.api_key")),
		OpenAIBaseURL:           strings.TrimSpace(v.GetString("openai.base_url")),
		OpenAIModel:             strings.TrimSpace(v.GetString("openai.model")),
		NarrativeTimeoutSeconds: positive(v.GetInt("narrative.timeout_seconds"), 30),
		FetchChunkDays:          positive(v.GetInt("fetch.chunk_days"), 7),
		FetchConcurrency:        positive(v.GetInt("fetch.concurrency"), 4),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ForecastCacheTTL() time.Duration {
	return time.Duration(c.ForecastCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) NarrativeTimeout() time.Duration {
	return time.Duration(c.NarrativeTimeoutSeconds) * time.Second
}

func positive(value int, fallback int) int {
	if value < 1 {
		return fallback
	}
	return value
}
