package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"SD_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"SD_DB_MAX_CONNS" default:"8"`

	// Duplicate classification thresholds. Zero values fall back to the
	// classifier defaults, so unset variables keep the shipped behaviour.
	MatchSimilarity             float64 `envconfig:"MATCH_SIMILARITY" default:"0"`
	MatchSimilarityWithCategory float64 `envconfig:"MATCH_SIMILARITY_WITH_CATEGORY" default:"0"`
	MatchCategoryOverlap        float64 `envconfig:"MATCH_CATEGORY_OVERLAP" default:"0"`

	MergeParallelism  int           `envconfig:"MERGE_PARALLELISM" default:"4"`
	MergeWriteTimeout time.Duration `envconfig:"MERGE_WRITE_TIMEOUT" default:"10s"`
	MergeWriteRetries int           `envconfig:"MERGE_WRITE_RETRIES" default:"2"`
	MergeRateLimit    float64       `envconfig:"MERGE_RATE_LIMIT" default:"0"`
	MergeTokenHash    string        `envconfig:"MERGE_TOKEN_HASH" default:""`

	HTTPListenAddr     string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("SD_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("SD_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("SD_DB_MIN_CONNS (%d) cannot exceed SD_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	for name, value := range map[string]float64{
		"MATCH_SIMILARITY":               c.MatchSimilarity,
		"MATCH_SIMILARITY_WITH_CATEGORY": c.MatchSimilarityWithCategory,
		"MATCH_CATEGORY_OVERLAP":         c.MatchCategoryOverlap,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.MergeParallelism < 1 {
		return fmt.Errorf("MERGE_PARALLELISM must be >= 1")
	}
	if c.MergeWriteTimeout < time.Second {
		return fmt.Errorf("MERGE_WRITE_TIMEOUT must be >= 1s")
	}
	if c.MergeWriteRetries < 0 {
		return fmt.Errorf("MERGE_WRITE_RETRIES must be >= 0")
	}
	if c.MergeRateLimit < 0 {
		return fmt.Errorf("MERGE_RATE_LIMIT must be >= 0")
	}
	if strings.TrimSpace(c.HTTPListenAddr) == "" {
		return fmt.Errorf("HTTP_LISTEN_ADDR is required")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
