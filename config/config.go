package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:":3000"`
	GrpcPort   string `envconfig:"GRPC_PORT"   default:":50051"`
	LogLevel   string `envconfig:"LOG_LEVEL"   default:"info"`

	DeepseekAPIKey  string        `envconfig:"DEEPSEEK_API_KEY"`
	DeepseekChatURL string        `envconfig:"DEEPSEEK_CHAT_URL" default:"https://api.deepseek.com/v1/chat/completions"`
	DeepseekModel   string        `envconfig:"DEEPSEEK_MODEL"    default:"deepseek-vision"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT"  default:"30s"`

	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoffUnit time.Duration `envconfig:"RETRY_BACKOFF_UNIT" default:"1s"`

	MaxImageBytes int64 `envconfig:"MAX_IMAGE_BYTES" default:"10485760"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	ImageBucket string `envconfig:"IMAGE_BUCKET"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// LoadConfig reads .env (if present) and the process environment. Invalid
// values are fatal; a missing upstream API key is not, since only the
// diagnosis endpoints depend on it.
func LoadConfig(logger *logrus.Logger) *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logger.Warnf("Error loading .env file (but continuing): %v", err)
	} else if err == nil {
		logger.Info("Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatalf("Failed to process configuration from environment variables: %v", err)
	}

	if cfg.DeepseekAPIKey == "" {
		cfg.DeepseekAPIKey = os.Getenv("VITE_DEEPSEEK_API_KEY")
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}

	logger.Infof("Configuration loaded: HTTP Port=%s, GRPC Port=%s, LogLevel=%s, Store=%s",
		cfg.ServerPort, cfg.GrpcPort, cfg.LogLevel, cfg.StoreBackend)
	if cfg.DeepseekAPIKey != "" {
		logger.Info("Configuration loaded: Deepseek API key is set")
	} else {
		logger.Warn("Configuration loaded: Deepseek API key not found, diagnosis endpoints will fail")
	}
	return &cfg
}
