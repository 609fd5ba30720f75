package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// User constraints
	MaxExternalIDLength  int
	MaxDisplayNameLength int

	// Traversal limits
	MaxSearchDepth int // 0 means unbounded

	// Caching
	ResolveCacheTTL time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxExternalIDLength:  128,
		MaxDisplayNameLength: 256,

		MaxSearchDepth: 0,

		ResolveCacheTTL: 5 * time.Minute,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.ResolveCacheTTL = 15 * time.Minute
	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.ResolveCacheTTL = 30 * time.Second
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxExternalIDLength <= 0 || c.MaxDisplayNameLength <= 0 {
		return fmt.Errorf("field length limits must be positive")
	}
	if c.MaxSearchDepth < 0 {
		return fmt.Errorf("MaxSearchDepth cannot be negative")
	}
	return nil
}
