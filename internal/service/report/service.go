// Package report compares systems that ran the same game at the same
// resolution.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

const (
	digestCompression = 100
	maxRunsPerReport  = 1000
)

// Distribution summarises frame durations pooled across runs, in
// milliseconds.
type Distribution struct {
	Frames int             `json:"frames"`
	P50MS  analysis.Metric `json:"p50_ms"`
	P90MS  analysis.Metric `json:"p90_ms"`
	P99MS  analysis.Metric `json:"p99_ms"`
	P999MS analysis.Metric `json:"p99_9_ms"`
}

// RunRef points at one run inside an entry.
type RunRef struct {
	ID         string          `json:"id"`
	RunNumber  int             `json:"run_number"`
	Label      string          `json:"label,omitempty"`
	AverageFPS float64         `json:"average_fps"`
	Low1       analysis.Metric `json:"low_1_percent"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Entry is the aggregated result of one system.
type Entry struct {
	System       domain.System             `json:"-"`
	Summary      analysis.Summary          `json:"summary"`
	Targets      analysis.TargetEvaluation `json:"targets"`
	Distribution Distribution              `json:"distribution"`
	Runs         []RunRef                  `json:"runs"`
}

// Report ranks systems for a game and resolution by average FPS.
type Report struct {
	Game        domain.Game `json:"-"`
	Resolution  string      `json:"resolution"`
	GeneratedAt time.Time   `json:"generated_at"`
	Entries     []Entry     `json:"entries"`
}

// Service builds comparison reports.
type Service struct {
	games   repository.GameRepository
	systems repository.SystemRepository
	runs    repository.RunRepository
	targets []int
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a report Service. Nil targets selects analysis.DefaultTargets.
func New(games repository.GameRepository, systems repository.SystemRepository, runs repository.RunRepository, targets []int, logger *slog.Logger) *Service {
	if targets == nil {
		targets = analysis.DefaultTargets
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		games:   games,
		systems: systems,
		runs:    runs,
		targets: slices.Clone(targets),
		logger:  logger.With("component", "report"),
		now:     time.Now,
	}
}

// Compare aggregates every run of gameID at resolution, one entry per system.
func (s *Service) Compare(ctx context.Context, gameID, resolution string) (*Report, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("%w: game_id required", domain.ErrInvalidInput)
	}
	resolution = domain.NormalizeResolution(resolution)
	if resolution == "" {
		return nil, fmt.Errorf("%w: resolution required", domain.ErrInvalidInput)
	}
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	runs, err := s.runs.ListRuns(ctx, domain.RunFilter{
		GameID:         gameID,
		Resolution:     resolution,
		Limit:          maxRunsPerReport,
		WithFrametimes: true,
	})
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.Run)
	var order []string
	for _, run := range runs {
		if _, ok := grouped[run.SystemID]; !ok {
			order = append(order, run.SystemID)
		}
		grouped[run.SystemID] = append(grouped[run.SystemID], run)
	}

	report := &Report{Game: *game, Resolution: resolution, GeneratedAt: s.now().UTC()}
	for _, systemID := range order {
		system, err := s.systems.GetSystemByID(ctx, systemID)
		if err != nil {
			return nil, fmt.Errorf("load system %s: %w", systemID, err)
		}
		report.Entries = append(report.Entries, s.buildEntry(*system, grouped[systemID]))
	}
	sort.SliceStable(report.Entries, func(i, j int) bool {
		a, b := report.Entries[i].Summary.AverageFPS, report.Entries[j].Summary.AverageFPS
		if a != b {
			return a > b
		}
		return report.Entries[i].System.ID < report.Entries[j].System.ID
	})
	s.logger.Debug("report built", "game_id", gameID, "resolution", resolution, "systems", len(report.Entries), "runs", len(runs))
	return report, nil
}

func (s *Service) buildEntry(system domain.System, runs []domain.Run) Entry {
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunNumber < runs[j].RunNumber })
	records := make([]analysis.Record, 0, len(runs))
	refs := make([]RunRef, 0, len(runs))
	digest := tdigest.NewWithCompression(digestCompression)
	frames := 0
	for _, run := range runs {
		records = append(records, run.Metrics)
		refs = append(refs, RunRef{
			ID:         run.ID,
			RunNumber:  run.RunNumber,
			Label:      run.Label,
			AverageFPS: run.Metrics.AverageFPS,
			Low1:       run.Metrics.Low1,
			RecordedAt: run.RecordedAt,
		})
		for _, d := range run.Frametimes {
			digest.Add(d, 1)
			frames++
		}
	}
	summary := analysis.Aggregate(records)
	return Entry{
		System:       system,
		Summary:      summary,
		Targets:      analysis.EvaluateTargets(summary.AverageFPS, summary.Low1, s.targets),
		Distribution: distribution(digest, frames),
		Runs:         refs,
	}
}

func distribution(digest *tdigest.TDigest, frames int) Distribution {
	dist := Distribution{Frames: frames}
	if frames == 0 {
		return dist
	}
	dist.P50MS = analysis.Value(digest.Quantile(0.5))
	dist.P90MS = analysis.Value(digest.Quantile(0.9))
	dist.P99MS = analysis.Value(digest.Quantile(0.99))
	dist.P999MS = analysis.Value(digest.Quantile(0.999))
	return dist
}
