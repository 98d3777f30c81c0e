package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ClientConfig is read by triagectl. Flags override it.
type ClientConfig struct {
	APIBaseURL  string        `envconfig:"API_BASE_URL"     default:"http://localhost:3000/api"`
	GrpcAddr    string        `envconfig:"TRIAGE_GRPC_ADDR"`
	Timeout     time.Duration `envconfig:"TRIAGE_TIMEOUT"   default:"2m"`
	Concurrency int           `envconfig:"TRIAGE_CONCURRENCY" default:"4"`
}

func LoadClientConfig() (*ClientConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing client environment: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &cfg, nil
}
