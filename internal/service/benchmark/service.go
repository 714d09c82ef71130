// Package benchmark ingests captures, analyses them and manages submitted runs.
package benchmark

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/internal/ws"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 10 * time.Minute
	defaultWorkers   = 4
	defaultListLimit = 50
	maxListLimit     = 500
)

var (
	// ErrUnauthorized indicates a missing or invalid upload token.
	ErrUnauthorized = errors.New("benchmark: unauthorized")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("benchmark: forbidden")
	// ErrNotConfigured indicates the service lacks storage or a token secret.
	ErrNotConfigured = errors.New("benchmark: not configured")
)

// Config tunes a Service. Zero values select defaults.
type Config struct {
	Options     analysis.Options
	Targets     []int
	TokenSecret string
	TokenTTL    time.Duration
	CacheSize   int
	CacheTTL    time.Duration
	Workers     int
}

// Service coordinates analysis, system registration and run storage.
type Service struct {
	games   repository.GameRepository
	systems repository.SystemRepository
	runs    repository.RunRepository
	hub     *ws.Hub
	cache   *expirable.LRU[uint64, analysis.Record]

	options     analysis.Options
	targets     []int
	tokenSecret string
	tokenTTL    time.Duration
	workers     int

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New constructs a Service. Repositories may be nil when only stateless
// analysis is needed.
func New(games repository.GameRepository, systems repository.SystemRepository, runs repository.RunRepository, hub *ws.Hub, logger *slog.Logger, cfg Config) *Service {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 90 * 24 * time.Hour
	}
	if cfg.Targets == nil {
		cfg.Targets = analysis.DefaultTargets
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		games:       games,
		systems:     systems,
		runs:        runs,
		hub:         hub,
		cache:       expirable.NewLRU[uint64, analysis.Record](cfg.CacheSize, nil, cfg.CacheTTL),
		options:     cfg.Options.Normalize(),
		targets:     slices.Clone(cfg.Targets),
		tokenSecret: cfg.TokenSecret,
		tokenTTL:    cfg.TokenTTL,
		workers:     cfg.Workers,
		logger:      logger.With("component", "benchmark"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Options returns the normalized analysis options in use.
func (s *Service) Options() analysis.Options {
	return s.options
}

// Targets returns the FPS targets evaluated for results.
func (s *Service) Targets() []int {
	return slices.Clone(s.targets)
}

// Hub exposes the run feed for websocket and SSE consumers.
func (s *Service) Hub() *ws.Hub {
	if s == nil {
		return nil
	}
	return s.hub
}

func (s *Service) stateful() error {
	if s == nil || s.games == nil || s.systems == nil || s.runs == nil {
		return fmt.Errorf("%w: no storage", ErrNotConfigured)
	}
	return nil
}
