package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sproutdir.app/sproutdir/internal/cli"
	"sproutdir.app/sproutdir/internal/config"
	"sproutdir.app/sproutdir/internal/db"
	"sproutdir.app/sproutdir/internal/dedupe"
	"sproutdir.app/sproutdir/internal/logging"
	"sproutdir.app/sproutdir/internal/match"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// runtime bundles the collaborators most commands need.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	pool    *db.Pool
	store   *db.CatalogStore
	service *dedupe.Service
}

func connectRuntime(timeout time.Duration, envLoader *cli.EnvLoader) (context.Context, context.CancelFunc, *runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := db.NewCatalogStore(pool)
	service := dedupe.NewService(store, store, classifierFromConfig(cfg), logger, executorOptionsFromConfig(cfg))

	return ctx, cancel, &runtime{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		store:   store,
		service: service,
	}, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func classifierFromConfig(cfg *config.Config) match.Classifier {
	return match.NewClassifier(match.Thresholds{
		Similarity:             cfg.MatchSimilarity,
		SimilarityWithCategory: cfg.MatchSimilarityWithCategory,
		CategoryOverlap:        cfg.MatchCategoryOverlap,
	})
}

func executorOptionsFromConfig(cfg *config.Config) dedupe.ExecutorOptions {
	return dedupe.ExecutorOptions{
		Parallelism:   cfg.MergeParallelism,
		WriteTimeout:  cfg.MergeWriteTimeout,
		WriteRetries:  cfg.MergeWriteRetries,
		RatePerSecond: cfg.MergeRateLimit,
	}
}

func confirmDangerousAction(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", strings.TrimSpace(prompt))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func parseCategoriesFlag(raw string) []string {
	parts := strings.Split(raw, ",")
	categories := make([]string, 0, len(parts))
	for _, part := range parts {
		if category := strings.TrimSpace(part); category != "" {
			categories = append(categories, category)
		}
	}
	return categories
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
