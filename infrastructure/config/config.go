package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends selectable through STORE_BACKEND
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress  string        `env:"SERVER_ADDRESS" envDefault:":8080"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// Storage
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	SQLiteDSN    string `env:"SQLITE_DSN" envDefault:"file:socialgraph.db"`

	// AWS configuration
	AWSRegion        string `env:"AWS_REGION" envDefault:"us-west-2"`
	DynamoDBTable    string `env:"DYNAMODB_TABLE" envDefault:"socialgraph"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"`
	EventBusName     string `env:"EVENT_BUS_NAME" envDefault:"socialgraph-events"`

	// Traversal
	ResolveCacheTTL      time.Duration `env:"RESOLVE_CACHE_TTL" envDefault:"5m"`
	ResolveCacheSize     int64         `env:"RESOLVE_CACHE_SIZE" envDefault:"100000"`
	TraversalConcurrency int           `env:"TRAVERSAL_CONCURRENCY" envDefault:"8"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Tracing
	OTLPEndpoint string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	TraceSample  float64 `env:"TRACE_SAMPLE_RATE" envDefault:"0.1"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Feature flags
	EnableEvents  bool `env:"ENABLE_EVENTS" envDefault:"false"`
	EnableMetrics bool `env:"ENABLE_METRICS" envDefault:"true"`
	EnableTracing bool `env:"ENABLE_TRACING" envDefault:"false"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("SQLITE_DSN is required for the sqlite backend")
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}
	if c.TraversalConcurrency < 1 {
		return fmt.Errorf("TRAVERSAL_CONCURRENCY must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.TraceSample < 0 || c.TraceSample > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be within [0, 1]")
	}

	if c.IsProduction() && c.StoreBackend == BackendMemory {
		return fmt.Errorf("the memory backend is not allowed in production")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
