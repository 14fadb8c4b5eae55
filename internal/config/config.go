package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the assurance engine.
type Config struct {
	// Scoring and gap analysis
	GapThreshold         float64
	TargetScore          float64
	MaxConcurrentScores  int
	ClarificationMinSim  float64
	CategoryWeights      map[string]float64 // optional weighted aggregation, empty = uniform

	// Notification routing
	NotifyTimeoutSeconds int
	NotifyMaxAttempts    int
	NotifyBackoffMS      int
	PrimaryChannel       string

	// Infrastructure
	StoreBackend string // memory | postgres | mysql | mongodb
	StoreDSN     string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	NatsURL      string
	HealthPort   string

	// Orchestration
	CycleIntervalSeconds int
}

// Load reads configuration from environment variables and .env file.
// Invalid values fail here, at startup - never at runtime.
func Load() (*Config, error) {
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		GapThreshold:        parseFloatOrDefault("GAP_THRESHOLD", 50.0),
		TargetScore:         parseFloatOrDefault("TARGET_SCORE", 100.0),
		MaxConcurrentScores: parseIntOrDefault("MAX_CONCURRENT_SCORES", 8),
		ClarificationMinSim: parseFloatOrDefault("CLARIFICATION_MIN_SIMILARITY", 0.95),
		CategoryWeights:     parseWeights(os.Getenv("CATEGORY_WEIGHTS")),

		NotifyTimeoutSeconds: parseIntOrDefault("NOTIFY_TIMEOUT_SECONDS", 10),
		NotifyMaxAttempts:    parseIntOrDefault("NOTIFY_MAX_ATTEMPTS", 2),
		NotifyBackoffMS:      parseIntOrDefault("NOTIFY_BACKOFF_MS", 500),
		PrimaryChannel:       getEnvOrDefault("PRIMARY_CHANNEL", "log"),

		StoreBackend: getEnvOrDefault("STORE_BACKEND", "memory"),
		StoreDSN:     os.Getenv("STORE_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      parseIntOrDefault("REDIS_DB", 0),
		NatsURL:      os.Getenv("NATS_URL"),
		HealthPort:   getEnvOrDefault("HEALTH_PORT", "8081"),

		CycleIntervalSeconds: parseIntOrDefault("CYCLE_INTERVAL_SECONDS", 3600),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks all value ranges. Returns a ConfigurationError on the
// first invalid field.
func (c *Config) Validate() error {
	if c.GapThreshold < 0 || c.GapThreshold > 100 {
		return &models.ConfigurationError{Field: "GAP_THRESHOLD", Reason: fmt.Sprintf("%.2f outside [0,100]", c.GapThreshold)}
	}
	if c.TargetScore < 0 || c.TargetScore > 100 {
		return &models.ConfigurationError{Field: "TARGET_SCORE", Reason: fmt.Sprintf("%.2f outside [0,100]", c.TargetScore)}
	}
	if c.MaxConcurrentScores < 1 {
		return &models.ConfigurationError{Field: "MAX_CONCURRENT_SCORES", Reason: "must be at least 1"}
	}
	if c.ClarificationMinSim < 0 || c.ClarificationMinSim > 1 {
		return &models.ConfigurationError{Field: "CLARIFICATION_MIN_SIMILARITY", Reason: "must be between 0 and 1"}
	}
	if c.NotifyMaxAttempts < 1 {
		return &models.ConfigurationError{Field: "NOTIFY_MAX_ATTEMPTS", Reason: "must be at least 1"}
	}
	if c.NotifyTimeoutSeconds < 1 {
		return &models.ConfigurationError{Field: "NOTIFY_TIMEOUT_SECONDS", Reason: "must be at least 1"}
	}
	if c.CycleIntervalSeconds < 1 {
		return &models.ConfigurationError{Field: "CYCLE_INTERVAL_SECONDS", Reason: "must be at least 1"}
	}

	switch c.StoreBackend {
	case "memory", "postgres", "mysql", "mongodb":
	default:
		return &models.ConfigurationError{Field: "STORE_BACKEND", Reason: fmt.Sprintf("unknown backend: %q", c.StoreBackend)}
	}

	for cat, w := range c.CategoryWeights {
		if w < 0 {
			return &models.ConfigurationError{Field: "CATEGORY_WEIGHTS", Reason: fmt.Sprintf("negative weight for %s", cat)}
		}
	}

	return nil
}

// parseWeights parses "governance=0.25,documentation=0.35" style weight lists.
// Malformed entries are skipped.
func parseWeights(raw string) map[string]float64 {
	if raw == "" {
		return nil
	}

	weights := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		var w float64
		if _, err := fmt.Sscanf(parts[1], "%f", &w); err != nil {
			continue
		}
		weights[parts[0]] = w
	}

	if len(weights) == 0 {
		return nil
	}
	return weights
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
