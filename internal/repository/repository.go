package repository

import (
	"context"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
)

// GameRepository persists benchmarked titles.
type GameRepository interface {
	// UpsertGame inserts the game or loads the existing one with the same
	// name, filling ID and CreatedAt.
	UpsertGame(ctx context.Context, game *domain.Game) error
	GetGameByID(ctx context.Context, id string) (*domain.Game, error)
	ListGames(ctx context.Context) ([]domain.Game, error)
}

// SystemRepository persists registered machines.
type SystemRepository interface {
	// UpsertSystem inserts the system or refreshes the stored info of the one
	// with the same fingerprint, filling ID and CreatedAt.
	UpsertSystem(ctx context.Context, system *domain.System) error
	GetSystemByID(ctx context.Context, id string) (*domain.System, error)
}

// RunRepository persists analysed runs.
type RunRepository interface {
	// CreateRun stores the run and assigns RunNumber and CreatedAt.
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string, withFrametimes bool) (*domain.Run, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.Run, error)
	DeleteRun(ctx context.Context, id string) error
}
