package config

import (
	"testing"

	"github.com/iraqaf/assurance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		GapThreshold:         50,
		TargetScore:          100,
		MaxConcurrentScores:  8,
		ClarificationMinSim:  0.95,
		NotifyTimeoutSeconds: 10,
		NotifyMaxAttempts:    2,
		NotifyBackoffMS:      500,
		PrimaryChannel:       "log",
		StoreBackend:         "memory",
		CycleIntervalSeconds: 3600,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err, "Defaults alone must form a valid configuration")

	assert.Equal(t, 50.0, cfg.GapThreshold)
	assert.Equal(t, 100.0, cfg.TargetScore)
	assert.Equal(t, 8, cfg.MaxConcurrentScores)
	assert.Equal(t, 0.95, cfg.ClarificationMinSim)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "log", cfg.PrimaryChannel)
	assert.Equal(t, 3600, cfg.CycleIntervalSeconds)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GAP_THRESHOLD", "65.5")
	t.Setenv("MAX_CONCURRENT_SCORES", "2")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("CATEGORY_WEIGHTS", "governance=0.5,audit=1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 65.5, cfg.GapThreshold)
	assert.Equal(t, 2, cfg.MaxConcurrentScores)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 0.5, cfg.CategoryWeights["governance"])
	assert.Equal(t, 1.5, cfg.CategoryWeights["audit"])
}

func TestValidate_Ranges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"threshold too high", func(c *Config) { c.GapThreshold = 101 }, "GAP_THRESHOLD"},
		{"negative target", func(c *Config) { c.TargetScore = -1 }, "TARGET_SCORE"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentScores = 0 }, "MAX_CONCURRENT_SCORES"},
		{"similarity above 1", func(c *Config) { c.ClarificationMinSim = 1.5 }, "CLARIFICATION_MIN_SIMILARITY"},
		{"zero attempts", func(c *Config) { c.NotifyMaxAttempts = 0 }, "NOTIFY_MAX_ATTEMPTS"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "cassandra" }, "STORE_BACKEND"},
		{"negative weight", func(c *Config) { c.CategoryWeights = map[string]float64{"audit": -1} }, "CATEGORY_WEIGHTS"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, models.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestParseWeights(t *testing.T) {
	weights := parseWeights("governance=0.25, documentation=0.35,broken,audit=abc")

	require.Len(t, weights, 2, "Malformed entries are skipped")
	assert.Equal(t, 0.25, weights["governance"])
	assert.Equal(t, 0.35, weights["documentation"])

	assert.Nil(t, parseWeights(""), "Empty weight list means uniform weighting")
}
