package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/pkg/metrics"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) StartRun(ctx context.Context, run domain.RunRecord) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PipelineStepDuration.WithLabelValues("history_start"))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (id, month, status, started_at)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.Month, string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("erro ao registrar execução: %w", err)
	}
	return nil
}

func (r *RunRepository) FinishRun(ctx context.Context, run domain.RunRecord) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PipelineStepDuration.WithLabelValues("history_finish"))

	_, err := r.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET report_id = $2, raw_key = $3, transformed_key = $4,
		    rows_in = $5, rows_out = $6, status = $7, error = $8, finished_at = $9
		WHERE id = $1`,
		run.ID, int64(run.ReportID), run.RawKey, run.TransformedKey,
		run.RowsIn, run.RowsOut, string(run.Status), run.Error, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("erro ao finalizar execução: %w", err)
	}
	return nil
}

func (r *RunRepository) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 50
	}

	query := `
		SELECT id, month, report_id, raw_key, transformed_key,
		       rows_in, rows_out, status, error, started_at, finished_at
		FROM pipeline_runs
	`
	args := []interface{}{}
	if filter.Month != "" {
		args = append(args, filter.Month)
		query += fmt.Sprintf(" WHERE month = $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar execuções: %w", err)
	}
	defer rows.Close()

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("erro ao escanear execuções: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.CollectableRow) (domain.RunRecord, error) {
	var run domain.RunRecord
	var reportID int64
	var status string

	err := row.Scan(
		&run.ID,
		&run.Month,
		&reportID,
		&run.RawKey,
		&run.TransformedKey,
		&run.RowsIn,
		&run.RowsOut,
		&status,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	run.ReportID = domain.ReportID(reportID)
	run.Status = domain.RunStatus(status)
	return run, err
}
