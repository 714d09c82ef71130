// Package memory keeps games, systems and runs in process memory. It backs
// tests and single-node deployments without PostgreSQL.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
)

// Repository implements the repository interfaces with maps.
type Repository struct {
	mu             sync.RWMutex
	games          map[string]domain.Game
	gamesByName    map[string]string
	systems        map[string]domain.System
	systemsByPrint map[string]string
	runs           map[string]domain.Run
}

var (
	_ repository.GameRepository   = (*Repository)(nil)
	_ repository.SystemRepository = (*Repository)(nil)
	_ repository.RunRepository    = (*Repository)(nil)
)

// New returns an empty Repository.
func New() *Repository {
	return &Repository{
		games:          make(map[string]domain.Game),
		gamesByName:    make(map[string]string),
		systems:        make(map[string]domain.System),
		systemsByPrint: make(map[string]string),
		runs:           make(map[string]domain.Run),
	}
}

func (r *Repository) UpsertGame(_ context.Context, game *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.gamesByName[game.Name]; ok {
		existing := r.games[id]
		if game.SteamAppID > 0 {
			existing.SteamAppID = game.SteamAppID
			r.games[id] = existing
		}
		*game = existing
		return nil
	}
	r.games[game.ID] = *game
	r.gamesByName[game.Name] = game.ID
	return nil
}

func (r *Repository) GetGameByID(_ context.Context, id string) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	game, ok := r.games[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &game, nil
}

func (r *Repository) ListGames(_ context.Context) ([]domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	games := make([]domain.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}

func (r *Repository) UpsertSystem(_ context.Context, system *domain.System) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.systemsByPrint[system.Fingerprint]; ok {
		existing := r.systems[id]
		existing.Info.Kernel = system.Info.Kernel
		existing.Info.GPUDriver = system.Info.GPUDriver
		existing.Info.RAMGB = system.Info.RAMGB
		r.systems[id] = existing
		*system = existing
		return nil
	}
	r.systems[system.ID] = *system
	r.systemsByPrint[system.Fingerprint] = system.ID
	return nil
}

func (r *Repository) GetSystemByID(_ context.Context, id string) (*domain.System, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	system, ok := r.systems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &system, nil
}

func (r *Repository) CreateRun(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[run.GameID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.systems[run.SystemID]; !ok {
		return repository.ErrNotFound
	}
	next := 1
	for _, existing := range r.runs {
		if existing.GameID == run.GameID && existing.SystemID == run.SystemID && existing.Resolution == run.Resolution && existing.RunNumber >= next {
			next = existing.RunNumber + 1
		}
	}
	run.RunNumber = next
	stored := *run
	stored.Frametimes = slices.Clone(run.Frametimes)
	stored.Metrics = run.Metrics.Clone()
	r.runs[run.ID] = stored
	return nil
}

func (r *Repository) GetRun(_ context.Context, id string, withFrametimes bool) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyRun(run, withFrametimes)
	return &out, nil
}

func (r *Repository) ListRuns(_ context.Context, filter domain.RunFilter) ([]domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var runs []domain.Run
	for _, run := range r.runs {
		if filter.GameID != "" && run.GameID != filter.GameID {
			continue
		}
		if filter.SystemID != "" && run.SystemID != filter.SystemID {
			continue
		}
		if filter.Resolution != "" && run.Resolution != filter.Resolution {
			continue
		}
		runs = append(runs, copyRun(run, filter.WithFrametimes))
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].RecordedAt.Equal(runs[j].RecordedAt) {
			return runs[i].RecordedAt.After(runs[j].RecordedAt)
		}
		return runs[i].RunNumber > runs[j].RunNumber
	})
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func (r *Repository) DeleteRun(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.runs, id)
	return nil
}

func copyRun(run domain.Run, withFrametimes bool) domain.Run {
	run.Metrics = run.Metrics.Clone()
	if withFrametimes {
		run.Frametimes = slices.Clone(run.Frametimes)
	} else {
		run.Frametimes = nil
	}
	return run
}
