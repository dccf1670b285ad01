package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"sproutdir.app/sproutdir/internal/auth"
	"sproutdir.app/sproutdir/internal/dedupe"
	"sproutdir.app/sproutdir/internal/globaltime"
	"sproutdir.app/sproutdir/internal/match"
	programschema "sproutdir.app/sproutdir/schema"
)

const mergeTokenHeader = "X-Merge-Token"

// Directory is the dedup surface the API exposes; *dedupe.Service satisfies
// it, and handler tests swap in a fake.
type Directory interface {
	ScreenForDuplicates(ctx context.Context, name string, categories []string) ([]dedupe.Record, error)
	SweepForDuplicateGroups(ctx context.Context) ([]dedupe.Group, error)
	ResolveGroup(ctx context.Context, canonicalUUID string, variantUUIDs []string) (dedupe.Group, error)
	ConsolidateRecords(ctx context.Context, groups []dedupe.Group, opts dedupe.ConsolidateOptions) ([]dedupe.Outcome, error)
	ConsolidateValue(ctx context.Context, field, canonical string, variants []string, opts dedupe.ConsolidateOptions) ([]dedupe.Outcome, error)
	SuggestValueMerges(ctx context.Context, field string) ([]dedupe.ValueGroup, error)
}

type Options struct {
	ListenAddr      string
	AllowedOrigins  []string
	MergeTokenHash  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	directory Directory
	logger    zerolog.Logger
	opts      Options
}

func NewServer(directory Directory, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	return &Server{
		directory: directory,
		logger:    logger,
		opts:      opts,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.directory == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	httpServer := &http.Server{
		Addr:         s.opts.ListenAddr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", s.opts.ListenAddr).Msg("sproutdir admin api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("sproutdir admin api stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", mergeTokenHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/submissions/validate", s.handleValidateSubmission)
	api.POST("/screen", s.handleScreen)
	api.GET("/duplicate-groups", s.handleDuplicateGroups)
	api.GET("/value-suggestions", s.handleValueSuggestions)
	api.POST("/consolidate", s.handleConsolidate, s.requireMergeToken)
	api.POST("/consolidate-value", s.handleConsolidateValue, s.requireMergeToken)

	return e
}

// requireMergeToken gates the destructive routes. With no hash configured,
// consolidation over HTTP stays disabled; only the CLI path remains.
func (s *Server) requireMergeToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.TrimSpace(s.opts.MergeTokenHash) == "" {
			return fail(c, http.StatusForbidden, "Consolidation over HTTP is disabled", nil)
		}
		token := c.Request().Header.Get(mergeTokenHeader)
		if !auth.VerifyMergeToken(token, s.opts.MergeTokenHash) {
			return failUnauthorized(c, "Invalid merge token")
		}
		return next(c)
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "sproutdir",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleValidateSubmission(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	submission, err := programschema.ValidateProgramSubmission(body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}
	return success(c, map[string]any{
		"valid":      true,
		"name":       submission.Name,
		"categories": submission.Categories,
	})
}

type screenRequest struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

func (s *Server) handleScreen(c echo.Context) error {
	var req screenRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON body"})
	}

	matches, err := s.directory.ScreenForDuplicates(c.Request().Context(), req.Name, req.Categories)
	if err != nil {
		var inputErr *match.InputError
		if errors.As(err, &inputErr) {
			return failValidation(c, map[string]string{"name": inputErr.Reason})
		}
		s.logger.Error().Err(err).Msg("duplicate screen failed")
		return internalError(c, "Failed to screen submission")
	}

	return success(c, map[string]any{
		"matches": programSummaries(matches),
	})
}

func (s *Server) handleDuplicateGroups(c echo.Context) error {
	groups, err := s.directory.SweepForDuplicateGroups(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("duplicate sweep failed")
		return internalError(c, "Failed to sweep for duplicates")
	}

	items := make([]duplicateGroupItem, 0, len(groups))
	for _, group := range groups {
		items = append(items, duplicateGroupItem{
			Canonical: programSummary(group.Canonical),
			Variants:  programSummaries(group.Variants),
		})
	}
	return success(c, map[string]any{
		"groups": items,
	})
}

func (s *Server) handleValueSuggestions(c echo.Context) error {
	field := strings.TrimSpace(c.QueryParam("field"))
	if field == "" {
		return failValidation(c, map[string]string{"field": "field query parameter is required"})
	}

	groups, err := s.directory.SuggestValueMerges(c.Request().Context(), field)
	if err != nil {
		s.logger.Error().Err(err).Str("field", field).Msg("value suggestion failed")
		return internalError(c, "Failed to suggest value merges")
	}

	items := make([]valueGroupItem, 0, len(groups))
	for _, group := range groups {
		items = append(items, valueGroupItem{
			Canonical: group.Canonical,
			Variants:  group.Variants,
			Usage:     group.Usage,
		})
	}
	return success(c, map[string]any{
		"field":  field,
		"groups": items,
	})
}

type consolidateRequest struct {
	CanonicalUUID string   `json:"canonical_uuid"`
	VariantUUIDs  []string `json:"variant_uuids"`
	Mode          string   `json:"mode"`
	DryRun        bool     `json:"dry_run"`
}

func (s *Server) handleConsolidate(c echo.Context) error {
	var req consolidateRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON body"})
	}

	ctx := c.Request().Context()
	group, err := s.directory.ResolveGroup(ctx, req.CanonicalUUID, req.VariantUUIDs)
	if err != nil {
		return failValidation(c, map[string]string{"group": err.Error()})
	}

	if req.DryRun {
		return success(c, map[string]any{
			"dry_run":   true,
			"canonical": programSummary(group.Canonical),
			"variants":  programSummaries(group.Variants),
		})
	}

	outcomes, err := s.directory.ConsolidateRecords(ctx, []dedupe.Group{group}, dedupe.ConsolidateOptions{
		Mode:      dedupe.Mode(req.Mode),
		Confirmed: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("record consolidation failed")
		return internalError(c, "Failed to consolidate records")
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"outcomes": outcomes,
	})
}

type consolidateValueRequest struct {
	Field     string   `json:"field"`
	Canonical string   `json:"canonical"`
	Variants  []string `json:"variants"`
	Mode      string   `json:"mode"`
}

func (s *Server) handleConsolidateValue(c echo.Context) error {
	var req consolidateValueRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "invalid JSON body"})
	}
	if strings.TrimSpace(req.Field) == "" {
		return failValidation(c, map[string]string{"field": "field is required"})
	}

	outcomes, err := s.directory.ConsolidateValue(c.Request().Context(), req.Field, req.Canonical, req.Variants, dedupe.ConsolidateOptions{
		Mode:      dedupe.Mode(req.Mode),
		Confirmed: true,
	})
	if err != nil {
		if errors.Is(err, dedupe.ErrNotConfirmed) {
			return failUnauthorized(c, "Consolidation not confirmed")
		}
		s.logger.Error().Err(err).Str("field", req.Field).Msg("value consolidation failed")
		return internalError(c, "Failed to consolidate values")
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"outcomes": outcomes,
	})
}

type programSummaryItem struct {
	ProgramID   int64     `json:"program_id"`
	ProgramUUID string    `json:"program_uuid"`
	Name        string    `json:"name"`
	Categories  []string  `json:"categories,omitempty"`
	Richness    int       `json:"richness"`
	CreatedAt   time.Time `json:"created_at"`
}

type duplicateGroupItem struct {
	Canonical programSummaryItem   `json:"canonical"`
	Variants  []programSummaryItem `json:"variants"`
}

type valueGroupItem struct {
	Canonical string           `json:"canonical"`
	Variants  []string         `json:"variants"`
	Usage     map[string]int64 `json:"usage,omitempty"`
}

func programSummary(record dedupe.Record) programSummaryItem {
	return programSummaryItem{
		ProgramID:   record.ID,
		ProgramUUID: record.UUID,
		Name:        record.Name,
		Categories:  record.Categories,
		Richness:    dedupe.Richness(record),
		CreatedAt:   record.CreatedAt,
	}
}

func programSummaries(records []dedupe.Record) []programSummaryItem {
	items := make([]programSummaryItem, 0, len(records))
	for _, record := range records {
		items = append(items, programSummary(record))
	}
	return items
}

func readBody(c echo.Context) (json.RawMessage, error) {
	body := c.Request().Body
	if body == nil {
		return nil, fmt.Errorf("request body is required")
	}
	defer body.Close()

	var raw json.RawMessage
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	return raw, nil
}
