package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Client  ClientConfig
	Storage StorageConfig
	DevAPI  DevAPIConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
}

type ClientConfig struct {
	APIBaseURL      string
	WebSocketURL    string
	HTTPTimeout     time.Duration
	PollingInterval time.Duration
	PushEnabled     bool
}

type StorageConfig struct {
	Driver    string // "file", "redis" or "memory"
	StateDir  string
	RedisURL  string
	KeyPrefix string
}

type DevAPIConfig struct {
	Port               string
	JWTSecret          string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	LogFilePath        string
	OtelEnabled        bool
	OtelEndpoint       string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	apiBaseURL := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3000/api"), "/")

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", filepath.Join(defaultStateDir(), "client.log")),
		},
		Client: ClientConfig{
			APIBaseURL:      apiBaseURL,
			WebSocketURL:    getEnv("WS_URL", websocketURLFor(apiBaseURL)),
			HTTPTimeout:     time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
			PollingInterval: time.Duration(getEnvAsInt("NOTIFICATION_POLL_INTERVAL_MS", 120000)) * time.Millisecond,
			PushEnabled:     getEnvAsBool("PUSH_ENABLED", true),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "file"),
			StateDir:  getEnv("STATE_DIR", defaultStateDir()),
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379"),
			KeyPrefix: getEnv("STORAGE_KEY_PREFIX", "savings:"),
		},
		DevAPI: DevAPIConfig{
			Port:               getEnv("APP_PORT", "3000"),
			JWTSecret:          getEnv("JWT_SECRET", "default_secret"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("DEVAPI_REDIS_URL", ""),
			LogFilePath:        getEnv("DEVAPI_LOG_FILE_PATH", "logs/devapi.log"),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// websocketURLFor derives the push endpoint from the REST base URL
// (http://host/api -> ws://host/api/ws).
func websocketURLFor(apiBaseURL string) string {
	switch {
	case strings.HasPrefix(apiBaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiBaseURL, "https://") + "/ws"
	case strings.HasPrefix(apiBaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiBaseURL, "http://") + "/ws"
	}
	return apiBaseURL + "/ws"
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".savings-client"
	}
	return filepath.Join(home, ".savings-client")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
