package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeovahfialho/t212-digrin/internal/report"
	"github.com/jeovahfialho/t212-digrin/internal/transform"
)

// BulkLoader archives transformed report rows with COPY.
type BulkLoader struct {
	pool *pgxpool.Pool
}

func NewBulkLoader(pool *pgxpool.Pool) *BulkLoader {
	return &BulkLoader{pool: pool}
}

func (l *BulkLoader) LoadRows(ctx context.Context, runID, month string, table *report.Table) (int64, error) {
	if len(table.Rows) == 0 {
		return 0, nil
	}

	columns := []string{
		"run_id",
		"month",
		"position",
		"action",
		"ticker",
		"payload",
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"report_rows"},
		columns,
		newRowSource(runID, month, table),
	)
	if err != nil {
		return 0, fmt.Errorf("erro no COPY: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("erro no commit: %w", err)
	}

	return copyCount, nil
}

type rowSource struct {
	runID     string
	month     string
	table     *report.Table
	actionCol int
	tickerCol int
	index     int
	err       error
}

func newRowSource(runID, month string, table *report.Table) *rowSource {
	return &rowSource{
		runID:     runID,
		month:     month,
		table:     table,
		actionCol: table.Index(transform.ColumnAction),
		tickerCol: table.Index(transform.ColumnTicker),
	}
}

func (rs *rowSource) Next() bool {
	rs.index++
	return rs.err == nil && rs.index <= len(rs.table.Rows)
}

func (rs *rowSource) Values() ([]interface{}, error) {
	if rs.index > len(rs.table.Rows) {
		return nil, nil
	}

	row := rs.table.Rows[rs.index-1]
	payload := make(map[string]string, len(rs.table.Columns))
	for i, c := range rs.table.Columns {
		if i < len(row) && !row[i].Null {
			payload[c.Name] = row[i].String()
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		rs.err = err
		return nil, err
	}

	return []interface{}{
		rs.runID,
		rs.month,
		rs.index - 1,
		rs.cell(row, rs.actionCol),
		rs.cell(row, rs.tickerCol),
		data,
	}, nil
}

func (rs *rowSource) cell(row report.Row, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col].String()
}

func (rs *rowSource) Err() error {
	return rs.err
}
