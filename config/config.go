// Package config читает конфигурацию из переменных окружения.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Whatsapp WhatsappConfig
	AI       AIConfig
	Search   SearchConfig
	Admin    AdminConfig
}

// AdminConfig — учётка, заводимая при старте для привязки действий и
// парольной проверки каскадного удаления.
type AdminConfig struct {
	Username string
	Password string
}

type ServerConfig struct {
	Addr   string
	AppEnv string
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type PostgresConfig struct {
	ConnString string
}

type WhatsappConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type SearchConfig struct {
	WebBaseURL        string
	WebAPIKey         string
	RegionalBaseURL   string
	RegionalAPIKey    string
	AggregatorBaseURL string
	AggregatorAPIKey  string
	Timeout           time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:   getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
			AppEnv: getEnv("APP_ENV", "dev"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOGGER_LEVEL", "debug"),
			Encoding: getEnv("LOGGER_ENCODING", "console"),
		},
		Postgres: PostgresConfig{
			ConnString: getEnv("POSTGRES_CONN", ""),
		},
		Whatsapp: WhatsappConfig{
			BaseURL: getEnv("WHATSAPP_BASE_URL", ""),
			Token:   getEnv("WHATSAPP_TOKEN", ""),
			Timeout: getEnvDuration("WHATSAPP_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("AI_API_KEY", ""),
			Model:   getEnv("AI_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("AI_TIMEOUT", 60*time.Second),
		},
		Search: SearchConfig{
			WebBaseURL:        getEnv("SEARCH_WEB_BASE_URL", ""),
			WebAPIKey:         getEnv("SEARCH_WEB_API_KEY", ""),
			RegionalBaseURL:   getEnv("SEARCH_REGIONAL_BASE_URL", ""),
			RegionalAPIKey:    getEnv("SEARCH_REGIONAL_API_KEY", ""),
			AggregatorBaseURL: getEnv("SEARCH_AGGREGATOR_BASE_URL", ""),
			AggregatorAPIKey:  getEnv("SEARCH_AGGREGATOR_API_KEY", ""),
			Timeout:           getEnvDuration("SEARCH_TIMEOUT", 60*time.Second),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	return def
}
