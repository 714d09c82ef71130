package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

// SubmitInput describes a run upload.
type SubmitInput struct {
	GameName   string
	SteamAppID int
	Resolution string
	Label      string
	RecordedAt time.Time
	Capture    CaptureInput
}

// Submit analyses a capture and stores it as a run of the calling system.
func (s *Service) Submit(ctx context.Context, systemID string, in SubmitInput) (*domain.Run, error) {
	if err := s.stateful(); err != nil {
		return nil, err
	}
	systemID = strings.TrimSpace(systemID)
	if systemID == "" {
		return nil, ErrUnauthorized
	}
	name := domain.NormalizeGameName(in.GameName)
	if name == "" {
		return nil, fmt.Errorf("%w: game required", domain.ErrInvalidInput)
	}
	resolution := domain.NormalizeResolution(in.Resolution)
	if resolution == "" {
		return nil, fmt.Errorf("%w: resolution required", domain.ErrInvalidInput)
	}
	if in.SteamAppID < 0 {
		return nil, fmt.Errorf("%w: steam app id must not be negative", domain.ErrInvalidInput)
	}
	if _, err := s.systems.GetSystemByID(ctx, systemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown system", ErrUnauthorized)
		}
		return nil, err
	}

	capture, err := s.Ingest(in.Capture)
	if err != nil {
		return nil, err
	}
	record, err := s.analyzeCapture(capture)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	game := domain.Game{ID: s.newID(), Name: name, SteamAppID: in.SteamAppID, CreatedAt: now}
	if err := s.games.UpsertGame(ctx, &game); err != nil {
		return nil, fmt.Errorf("store game: %w", err)
	}

	recordedAt := in.RecordedAt.UTC()
	if in.RecordedAt.IsZero() {
		recordedAt = now
	}
	run := &domain.Run{
		ID:         s.newID(),
		GameID:     game.ID,
		SystemID:   systemID,
		Resolution: resolution,
		Label:      strings.TrimSpace(in.Label),
		RecordedAt: recordedAt,
		CreatedAt:  now,
		Metrics:    record,
		Frametimes: capture.Samples,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	s.logger.Info("run stored",
		"run_id", run.ID,
		"game", game.Name,
		"system_id", systemID,
		"resolution", resolution,
		"run_number", run.RunNumber,
		"average_fps", record.AverageFPS,
		"stutter", record.Stutter.String(),
	)
	s.broadcast(run, game)
	return run, nil
}

// ListRuns returns runs matching filter without frametimes.
func (s *Service) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.Run, error) {
	if err := s.stateful(); err != nil {
		return nil, err
	}
	filter.GameID = strings.TrimSpace(filter.GameID)
	filter.SystemID = strings.TrimSpace(filter.SystemID)
	if filter.Resolution != "" {
		filter.Resolution = domain.NormalizeResolution(filter.Resolution)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	filter.WithFrametimes = false
	return s.runs.ListRuns(ctx, filter)
}

// GetRun fetches a single run.
func (s *Service) GetRun(ctx context.Context, id string, withFrametimes bool) (*domain.Run, error) {
	if err := s.stateful(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: run id required", domain.ErrInvalidInput)
	}
	return s.runs.GetRun(ctx, id, withFrametimes)
}

// DeleteRun removes a run owned by systemID.
func (s *Service) DeleteRun(ctx context.Context, systemID, id string) error {
	run, err := s.GetRun(ctx, id, false)
	if err != nil {
		return err
	}
	if run.SystemID != systemID {
		return ErrForbidden
	}
	if err := s.runs.DeleteRun(ctx, run.ID); err != nil {
		return err
	}
	s.logger.Info("run deleted", "run_id", run.ID, "system_id", systemID)
	return nil
}

// ListGames returns all known games.
func (s *Service) ListGames(ctx context.Context) ([]domain.Game, error) {
	if err := s.stateful(); err != nil {
		return nil, err
	}
	return s.games.ListGames(ctx)
}

func (s *Service) broadcast(run *domain.Run, game domain.Game) {
	if s.hub == nil {
		return
	}
	payload := RunPayload(*run)
	payload["game"] = game.Name
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal run event", "error", err)
		return
	}
	s.hub.Broadcast(run.GameID, data)
}

// RunPayload renders a run for JSON clients. Frametimes are included only
// when loaded.
func RunPayload(run domain.Run) map[string]any {
	payload := map[string]any{
		"id":          run.ID,
		"game_id":     run.GameID,
		"system_id":   run.SystemID,
		"resolution":  run.Resolution,
		"label":       run.Label,
		"run_number":  run.RunNumber,
		"recorded_at": run.RecordedAt.UTC().Format(time.RFC3339Nano),
		"created_at":  run.CreatedAt.UTC().Format(time.RFC3339Nano),
		"metrics":     run.Metrics,
	}
	if run.Frametimes != nil {
		payload["frametimes"] = run.Frametimes
	}
	return payload
}

// TargetsFor evaluates the configured FPS targets for a record.
func (s *Service) TargetsFor(rec analysis.Record) analysis.TargetEvaluation {
	return analysis.EvaluateRecordTargets(rec, s.targets)
}
