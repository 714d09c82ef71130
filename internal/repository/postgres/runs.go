package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

const runColumns = `id, game_id, system_id, resolution, label, run_number, recorded_at, created_at,
	fps_avg, fps_min, fps_max, fps_median, fps_std_dev, fps_1low, fps_01low,
	frame_count, discarded_count, duration_ms,
	stutter_rating, stutter_event_count, stutter_sequence_count, stutter_rate,
	consistency_rating, cv_percent, fps_stability, warnings`

// CreateRun stores a run and assigns the next run number of its
// game, system and resolution group.
func (r *Repository) CreateRun(ctx context.Context, run *domain.Run) error {
	archive, err := frametime.Compress(run.Frametimes)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	group := run.GameID + "|" + run.SystemID + "|" + run.Resolution
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, group); err != nil {
		return err
	}

	const nextQuery = `SELECT COALESCE(MAX(run_number), 0) + 1 FROM runs
		WHERE game_id = $1 AND system_id = $2 AND resolution = $3`
	var next int
	if err := tx.QueryRow(ctx, nextQuery, run.GameID, run.SystemID, run.Resolution).Scan(&next); err != nil {
		return mapError(err)
	}

	m := run.Metrics
	const insert = `INSERT INTO runs (` + runColumns + `, frametimes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)`
	_, err = tx.Exec(ctx, insert,
		run.ID, run.GameID, run.SystemID, run.Resolution, run.Label, next, run.RecordedAt, run.CreatedAt,
		m.AverageFPS, m.MinFPS, m.MaxFPS, m.MedianFPS, m.StdDevFPS, m.Low1.Ptr(), m.Low01.Ptr(),
		m.SampleCount, m.Discarded, m.DurationMS,
		m.Stutter.String(), m.StutterEvents, m.StutterSequences, m.StutterRate.Ptr(),
		m.Consistency.String(), m.CVPercent.Ptr(), m.Stability.Ptr(), warningsToStrings(m.Warnings),
		archive,
	)
	if err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	run.RunNumber = next
	return nil
}

// GetRun fetches a run, optionally with its frametimes.
func (r *Repository) GetRun(ctx context.Context, id string, withFrametimes bool) (*domain.Run, error) {
	query := `SELECT ` + selectColumns(withFrametimes) + ` FROM runs WHERE id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (r *Repository) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.Run, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.GameID != "" {
		add("game_id = $%d", filter.GameID)
	}
	if filter.SystemID != "" {
		add("system_id = $%d", filter.SystemID)
	}
	if filter.Resolution != "" {
		add("resolution = $%d", filter.Resolution)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectColumns(filter.WithFrametimes))
	b.WriteString(" FROM runs")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY recorded_at DESC, run_number DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return runs, nil
}

// DeleteRun removes a run.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func selectColumns(withFrametimes bool) string {
	if withFrametimes {
		return runColumns + ", frametimes"
	}
	return runColumns + ", NULL::bytea"
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run                        domain.Run
		low1, low01                sql.NullFloat64
		stutterRate, cv, stability sql.NullFloat64
		stutterRating, consistency string
		warnings                   []string
		archive                    []byte
	)
	m := &run.Metrics
	err := row.Scan(
		&run.ID, &run.GameID, &run.SystemID, &run.Resolution, &run.Label, &run.RunNumber, &run.RecordedAt, &run.CreatedAt,
		&m.AverageFPS, &m.MinFPS, &m.MaxFPS, &m.MedianFPS, &m.StdDevFPS, &low1, &low01,
		&m.SampleCount, &m.Discarded, &m.DurationMS,
		&stutterRating, &m.StutterEvents, &m.StutterSequences, &stutterRate,
		&consistency, &cv, &stability, &warnings,
		&archive,
	)
	if err != nil {
		return nil, err
	}
	m.Low1 = metricFromNull(low1)
	m.Low01 = metricFromNull(low01)
	m.StutterRate = metricFromNull(stutterRate)
	m.CVPercent = metricFromNull(cv)
	m.Stability = metricFromNull(stability)
	m.Stutter = ratingOrUnavailable(stutterRating)
	m.Consistency = ratingOrUnavailable(consistency)
	for _, w := range warnings {
		m.Warnings = append(m.Warnings, analysis.Warning(w))
	}
	if len(archive) > 0 {
		samples, err := frametime.Decompress(archive)
		if err != nil {
			return nil, err
		}
		run.Frametimes = samples
	}
	return &run, nil
}

func metricFromNull(v sql.NullFloat64) analysis.Metric {
	if !v.Valid {
		return analysis.Unavailable()
	}
	return analysis.Value(v.Float64)
}

func ratingOrUnavailable(raw string) analysis.Rating {
	rating, err := analysis.ParseRating(raw)
	if err != nil {
		return analysis.RatingUnavailable
	}
	return rating
}

func warningsToStrings(warnings []analysis.Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, string(w))
	}
	return out
}
