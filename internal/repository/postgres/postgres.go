package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.GameRepository   = (*Repository)(nil)
	_ repository.SystemRepository = (*Repository)(nil)
	_ repository.RunRepository    = (*Repository)(nil)
)

// UpsertGame inserts a game keyed by name.
func (r *Repository) UpsertGame(ctx context.Context, game *domain.Game) error {
	const query = `INSERT INTO games (id, name, steam_app_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET steam_app_id = CASE
			WHEN EXCLUDED.steam_app_id > 0 THEN EXCLUDED.steam_app_id
			ELSE games.steam_app_id END
		RETURNING id, steam_app_id, created_at`
	row := r.pool.QueryRow(ctx, query, game.ID, game.Name, game.SteamAppID, game.CreatedAt)
	if err := row.Scan(&game.ID, &game.SteamAppID, &game.CreatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

// GetGameByID fetches a game.
func (r *Repository) GetGameByID(ctx context.Context, id string) (*domain.Game, error) {
	const query = `SELECT id, name, steam_app_id, created_at FROM games WHERE id = $1`
	var g domain.Game
	if err := r.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &g.SteamAppID, &g.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &g, nil
}

// ListGames returns all games ordered by name.
func (r *Repository) ListGames(ctx context.Context) ([]domain.Game, error) {
	const query = `SELECT id, name, steam_app_id, created_at FROM games ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		if err := rows.Scan(&g.ID, &g.Name, &g.SteamAppID, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// UpsertSystem inserts a system keyed by fingerprint.
func (r *Repository) UpsertSystem(ctx context.Context, system *domain.System) error {
	const query = `INSERT INTO systems (id, fingerprint, os, kernel, gpu, gpu_driver, cpu, ram_gb, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fingerprint) DO UPDATE SET
			kernel = EXCLUDED.kernel,
			gpu_driver = EXCLUDED.gpu_driver,
			ram_gb = EXCLUDED.ram_gb
		RETURNING id, created_at`
	info := system.Info
	row := r.pool.QueryRow(ctx, query, system.ID, system.Fingerprint, info.OS, info.Kernel, info.GPU, info.GPUDriver, info.CPU, info.RAMGB, system.CreatedAt)
	if err := row.Scan(&system.ID, &system.CreatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

// GetSystemByID fetches a system.
func (r *Repository) GetSystemByID(ctx context.Context, id string) (*domain.System, error) {
	const query = `SELECT id, fingerprint, os, kernel, gpu, gpu_driver, cpu, ram_gb, created_at
		FROM systems WHERE id = $1`
	var s domain.System
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.Fingerprint, &s.Info.OS, &s.Info.Kernel, &s.Info.GPU, &s.Info.GPUDriver, &s.Info.CPU, &s.Info.RAMGB, &s.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02":
			return fmt.Errorf("%w: %s", repository.ErrInvalidArgument, pgErr.Message)
		}
	}
	return err
}
